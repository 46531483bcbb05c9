package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nndescent/nndescent/api"
	"github.com/nndescent/nndescent/core"
	"github.com/nndescent/nndescent/persistence"
	"gopkg.in/yaml.v3"
)

// Config represents the complete nndescent configuration.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Persistence configuration
	Persistence persistence.Config `yaml:"persistence" json:"persistence"`

	// Default build parameters; see BuildConfig for where they are used
	Build BuildConfig `yaml:"build" json:"build"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BuildConfig holds default NN-Descent build parameters. ToBuildParams
// converts them, with zero values falling back to core.DefaultBuildParams().
// The HTTP build handler does not read them: it starts from
// core.DefaultBuildParams() and applies only the request's own fields.
type BuildConfig struct {
	Metric        string  `yaml:"metric" json:"metric"`
	NIters        int     `yaml:"n_iters" json:"n_iters"`
	MaxCandidates int     `yaml:"max_candidates" json:"max_candidates"`
	Delta         float32 `yaml:"delta" json:"delta"`
	Rho           float32 `yaml:"rho" json:"rho"`
	NThreads      int     `yaml:"n_threads" json:"n_threads"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// LoadConfig loads configuration from various sources with the following
// precedence, highest first:
//  1. Environment variables
//  2. Configuration file (~/.nndescent.yml or the supplied path)
//  3. Default values
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(homeDir, ".nndescent.yml")
		}
	}

	if configPath != "" {
		if err := loadConfigFromFile(configPath, config); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	loadConfigFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a YAML file.
func loadConfigFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// loadConfigFromEnv loads configuration from environment variables,
// all under the NNDESCENT_ prefix.
func loadConfigFromEnv(config *Config) {
	if host := os.Getenv("NNDESCENT_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("NNDESCENT_PORT"); port != "" {
		if p, err := parsePort(port); err == nil {
			config.Server.Port = p
		}
	}

	if backend := os.Getenv("NNDESCENT_PERSISTENCE_BACKEND"); backend != "" {
		config.Persistence.Type = persistence.Type(backend)
	}
	if path := os.Getenv("NNDESCENT_PERSISTENCE_PATH"); path != "" {
		config.Persistence.Path = path
	}

	if metric := os.Getenv("NNDESCENT_BUILD_METRIC"); metric != "" {
		config.Build.Metric = metric
	}
	if level := os.Getenv("NNDESCENT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	bp := core.DefaultBuildParams()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Persistence: persistence.DefaultConfig(),
		Build: BuildConfig{
			Metric:        core.Euclidean.String(),
			NIters:        bp.NIters,
			MaxCandidates: bp.MaxCandidates,
			Delta:         bp.Delta,
			Rho:           bp.Rho,
			NThreads:      0, // 0 means "let the builder pick runtime.GOMAXPROCS(0)"
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}

	if err := persistence.Validate(c.Persistence); err != nil {
		return fmt.Errorf("persistence config validation failed: %w", err)
	}

	if _, err := core.ParseMetric(c.Build.Metric); err != nil {
		return fmt.Errorf("build config validation failed: %w", err)
	}

	return nil
}

// ToBuildParams converts the default build configuration to core.BuildParams.
func (b *BuildConfig) ToBuildParams() (core.BuildParams, error) {
	metric, err := core.ParseMetric(b.Metric)
	if err != nil {
		return core.BuildParams{}, err
	}
	params := core.DefaultBuildParams()
	params.Metric = metric
	if b.NIters > 0 {
		params.NIters = b.NIters
	}
	if b.MaxCandidates > 0 {
		params.MaxCandidates = b.MaxCandidates
	}
	if b.Delta > 0 {
		params.Delta = b.Delta
	}
	if b.Rho > 0 {
		params.Rho = b.Rho
	}
	if b.NThreads > 0 {
		params.NThreads = b.NThreads
	}
	return params, nil
}

// ToServerConfig converts to api.ServerConfig.
func (s *ServerConfig) ToServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Host:            s.Host,
		Port:            s.Port,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		IdleTimeout:     s.IdleTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
	}
}

// parsePort parses a port string to int.
func parsePort(s string) (int, error) {
	var port int
	_, err := fmt.Sscanf(s, "%d", &port)
	return port, err
}
