// Package config loads the mist server configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Storage    StorageConfig     `yaml:"storage"`
	Log        LogConfig         `yaml:"log"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Templates  TemplatesConfig   `yaml:"templates"`
	Components []ComponentConfig `yaml:"components"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	WSPath          string        `yaml:"ws_path"`
	QUICAddr        string        `yaml:"quic_addr,omitempty"`
	Welcome         string        `yaml:"welcome"`
	ReadLimit       int64         `yaml:"read_limit"`
	OutboxSize      int           `yaml:"outbox_size"`
	// WriteTimeout bounds one frame write to a peer. Zero disables it.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path,omitempty"`
	PoolSize int    `yaml:"pool_size,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type TemplatesConfig struct {
	// Dir holds <name>.html template files.
	Dir string `yaml:"dir,omitempty"`
}

// ComponentConfig declares a component backed by document entity types.
type ComponentConfig struct {
	Name        string   `yaml:"name"`
	EntityTypes []string `yaml:"entity_types"`
	// Template is inline template text registered under Name.
	Template string `yaml:"template,omitempty"`
	// TemplateFile names a file under Templates.Dir.
	TemplateFile string `yaml:"template_file,omitempty"`
	// Actions lists built-in actions to expose ("delete").
	Actions []string `yaml:"actions,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			WSPath:          "/mist/ws",
			Welcome:         "Server Welcome Message",
			ReadLimit:       64 << 10,
			OutboxSize:      64,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{Driver: DriverMemory},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "mist"},
	}
}

// Load reads and validates a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first problem that would prevent serving.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("%w: server.listen_addr is required", ErrInvalidConfig)
	}
	if c.Server.WSPath == "" || c.Server.WSPath[0] != '/' {
		return fmt.Errorf("%w: server.ws_path must start with /", ErrInvalidConfig)
	}
	if c.Server.OutboxSize < 1 {
		return fmt.Errorf("%w: server.outbox_size must be positive", ErrInvalidConfig)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("%w: server.write_timeout must not be negative", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	seen := make(map[string]bool, len(c.Components))
	for i, comp := range c.Components {
		if comp.Name == "" {
			return fmt.Errorf("%w: components[%d]: name is required", ErrInvalidConfig, i)
		}
		if seen[comp.Name] {
			return fmt.Errorf("%w: component %s is declared twice", ErrInvalidConfig, comp.Name)
		}
		seen[comp.Name] = true
		if len(comp.EntityTypes) == 0 {
			return fmt.Errorf("%w: component %s: entity_types is required", ErrInvalidConfig, comp.Name)
		}
		if comp.Template != "" && comp.TemplateFile != "" {
			return fmt.Errorf("%w: component %s: template and template_file are exclusive", ErrInvalidConfig, comp.Name)
		}
		for _, a := range comp.Actions {
			if a != ActionDelete {
				return fmt.Errorf("%w: component %s: unknown action %q", ErrInvalidConfig, comp.Name, a)
			}
		}
	}
	return nil
}

// ActionDelete removes the entity from every backing type.
const ActionDelete = "delete"
