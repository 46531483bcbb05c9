package persistence

import "fmt"

// DefaultFactory builds a GraphStore from a Config.
type DefaultFactory struct{}

// NewDefaultFactory creates a new default persistence factory.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{}
}

// CreateGraphStore creates a GraphStore instance based on configuration.
func (f *DefaultFactory) CreateGraphStore(cfg Config) (GraphStore, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid persistence configuration: %w", err)
	}

	switch cfg.Type {
	case Memory:
		return NewMemoryGraphStore(), nil
	case Bolt:
		return NewBoltGraphStore(cfg.Path)
	case Badger:
		return NewBadgerGraphStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
