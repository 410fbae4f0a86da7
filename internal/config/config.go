// Package config loads and manages the agent's YAML configuration file.
// The file is created with defaults on first run, and an API key is generated
// automatically when none is configured yet.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when no path is given.
const DefaultPath = "agent.yaml"

// EnvPath is the environment variable that overrides the config file path
// when no explicit path is supplied.
const EnvPath = "AGENT_CONFIG"

// ResolvePath returns the config path to use absent an explicit one:
// $AGENT_CONFIG when set, otherwise DefaultPath.
func ResolvePath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// apiKeyPrefix marks keys issued by this agent.
const apiKeyPrefix = "gta_"

// DatabaseConfig holds the ODBC connection settings.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	ReadOnly     bool   `yaml:"readonly"`
	Timeout      int    `yaml:"timeout"`       // connect timeout, seconds
	QueryTimeout int    `yaml:"query_timeout"` // per-statement timeout, seconds
}

// AgentConfig holds the HTTP surface and query-engine settings.
type AgentConfig struct {
	Port           int      `yaml:"port"`
	APIKeyHash     string   `yaml:"api_key_hash"`
	TestQuery      string   `yaml:"test_query"`
	AllowedTables  []string `yaml:"allowed_tables"`
	LogLevel       string   `yaml:"log_level"`
	CoerceNumerics bool     `yaml:"coerce_numerics"`
}

// Config is the full agent configuration. It is immutable once loaded except
// for explicit API-key regeneration, which rewrites the file.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Agent    AgentConfig    `yaml:"agent"`

	path      string
	newAPIKey string
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:          "LIVE",
			ReadOnly:     true,
			Timeout:      30,
			QueryTimeout: 60,
		},
		Agent: AgentConfig{
			Port:      8001,
			TestQuery: "SELECT 1",
			AllowedTables: []string{
				"customer",
				"customer_contacts",
				"delivery_routes",
				"sales_orders_headers",
				"sales_order_detail",
				"so_processing",
				"processing_charges",
			},
			LogLevel: "info",
		},
	}
}

// Load reads the config file at path, creating it with defaults if missing.
// When no API key hash is stored yet a key is generated, its bcrypt hash is
// saved, and the plain key is retrievable exactly once via NewAPIKey.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ResolvePath()
	}

	cfg := defaults()
	cfg.path = path

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	switch {
	case os.IsNotExist(err):
		if err := cfg.save(); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()

	if cfg.Agent.APIKeyHash == "" {
		key, err := cfg.generateAPIKey()
		if err != nil {
			return nil, err
		}
		cfg.newAPIKey = key
	}

	return cfg, nil
}

// applyDefaults fills in zero values after a partial file load.
func (c *Config) applyDefaults() {
	def := defaults()
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = def.Database.Timeout
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = def.Database.QueryTimeout
	}
	if c.Agent.Port == 0 {
		c.Agent.Port = def.Agent.Port
	}
	if c.Agent.TestQuery == "" {
		c.Agent.TestQuery = def.Agent.TestQuery
	}
	if len(c.Agent.AllowedTables) == 0 {
		c.Agent.AllowedTables = def.Agent.AllowedTables
	}
	if c.Agent.LogLevel == "" {
		c.Agent.LogLevel = def.Agent.LogLevel
	}
}

func (c *Config) save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// generateAPIKey creates a fresh key, stores its bcrypt hash in the config
// file, and returns the plain key.
func (c *Config) generateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	key := apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	c.Agent.APIKeyHash = string(hash)

	if err := c.save(); err != nil {
		return "", fmt.Errorf("save api key hash: %w", err)
	}
	return key, nil
}

// RegenerateAPIKey replaces the stored key hash and returns the new plain
// key. This is the only chance to see it.
func (c *Config) RegenerateAPIKey() (string, error) {
	return c.generateAPIKey()
}

// NewAPIKey returns the key generated on first run, if any, and clears it so
// the plain key is surfaced only once.
func (c *Config) NewAPIKey() string {
	key := c.newAPIKey
	c.newAPIKey = ""
	return key
}

// VerifyAPIKey checks a presented key against the stored hash. A missing
// hash rejects every key.
func (c *Config) VerifyAPIKey(key string) bool {
	if c.Agent.APIKeyHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Agent.APIKeyHash), []byte(key)) == nil
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.Timeout) * time.Second
}

// QueryTimeout returns the per-statement timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Database.QueryTimeout) * time.Second
}

// SlogLevel maps the configured log level to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Agent.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
