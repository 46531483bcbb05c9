package persistence

import "fmt"

// Type identifies a GraphStore backend.
type Type string

const (
	Memory Type = "memory"
	Bolt   Type = "bolt"
	Badger Type = "badger"
)

// Config holds configuration for a GraphStore.
type Config struct {
	// Type of persistence backend.
	Type Type `json:"type" yaml:"type"`

	// Path to the database file (bolt) or directory (badger). Unused for
	// memory.
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns an in-memory configuration, suitable when no
// persistence flags are supplied.
func DefaultConfig() Config {
	return Config{Type: Memory}
}

// Validate rejects a config that names a file-backed store without a path.
func Validate(cfg Config) error {
	switch cfg.Type {
	case Memory:
		return nil
	case Bolt, Badger:
		if cfg.Path == "" {
			return fmt.Errorf("path is required for %s persistence", cfg.Type)
		}
		return nil
	default:
		return fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
