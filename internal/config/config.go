// Package config loads the listbind configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"listbind/internal/domain"
	"listbind/internal/etl"
	_ "listbind/internal/etl/sources" // register all sources via init()
	"listbind/internal/secret"
)

// Environment variables read by Load.
const (
	EnvConfig = "LISTBIND_CONFIG"
	EnvDB     = "LISTBIND_DB"
	EnvAddr   = "LISTBIND_ADDR"
)

// Config represents the complete listbind configuration.
type Config struct {
	// DBPath is the SQLite file holding the local lists.
	DBPath  string        `yaml:"db_path"`
	Server  ServerConfig  `yaml:"server"`
	Forms   FormsConfig   `yaml:"forms"`
	Secrets SecretsConfig `yaml:"secrets"`
	MCP     MCPConfig     `yaml:"mcp"`
	// Sources are external databases that import jobs can mirror lists from.
	Sources []domain.DatabaseConnection `yaml:"sources"`
	Imports []etl.Job                   `yaml:"imports"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// OriginPatterns are the cross-origin hosts allowed to open WebSocket
	// streams, e.g. "localhost:5173".
	OriginPatterns []string `yaml:"origin_patterns"`
}

// FormsConfig configures where form definitions are read from.
type FormsConfig struct {
	Dir string `yaml:"dir"`
	// Watch reloads definitions when files in Dir change.
	Watch bool `yaml:"watch"`
}

// SecretsConfig configures how source passwords are resolved.
type SecretsConfig struct {
	// Backend is "env" or "keychain".
	Backend string `yaml:"backend"`
	// EnvPrefix is prepended to a source's password_key to form the
	// environment variable name.
	EnvPrefix       string `yaml:"env_prefix"`
	KeychainService string `yaml:"keychain_service"`
}

// MCPConfig configures the MCP stdio server.
type MCPConfig struct {
	// ApprovalTimeout bounds how long a destructive tool waits for a decision.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "listbind")
	}
	return &Config{
		DBPath: filepath.Join(dataDir, "listbind.db"),
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Forms: FormsConfig{
			Dir:   "forms",
			Watch: true,
		},
		Secrets: SecretsConfig{
			Backend:         secret.BackendEnv,
			EnvPrefix:       "LISTBIND_SECRET_",
			KeychainService: secret.DefaultKeychainService,
		},
		MCP: MCPConfig{
			ApprovalTimeout: 2 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Relative paths in the file are relative to the file itself.
	base := filepath.Dir(path)
	cfg.Forms.Dir = resolvePath(base, cfg.Forms.Dir)
	for i := range cfg.Sources {
		if cfg.Sources[i].Driver == domain.DatabaseDriverSQLite {
			cfg.Sources[i].Host = resolvePath(base, cfg.Sources[i].Host)
		}
	}
	return cfg, nil
}

// Load resolves the config path (argument, then LISTBIND_CONFIG), loads it
// if one is set, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Secrets.Backend {
	case secret.BackendEnv, secret.BackendKeychain:
	default:
		return fmt.Errorf("secrets.backend: unsupported backend %q", c.Secrets.Backend)
	}

	sources := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources: name is required")
		}
		if sources[s.Name] {
			return fmt.Errorf("sources: duplicate name %q", s.Name)
		}
		switch s.Driver {
		case domain.DatabaseDriverSQLite, domain.DatabaseDriverMySQL,
			domain.DatabaseDriverPostgres, domain.DatabaseDriverMongoDB:
		default:
			return fmt.Errorf("sources %s: unsupported driver %q", s.Name, s.Driver)
		}
		sources[s.Name] = true
	}

	jobs := make(map[string]bool, len(c.Imports))
	for i := range c.Imports {
		job := &c.Imports[i]
		if err := job.Validate(); err != nil {
			return err
		}
		if jobs[job.Name] {
			return fmt.Errorf("imports: duplicate name %q", job.Name)
		}
		jobs[job.Name] = true

		if job.SourceType == "list" {
			name, _ := job.SourceCfg["source"].(string)
			if !sources[name] {
				return fmt.Errorf("import job %s: unknown source %q", job.Name, name)
			}
		}
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
