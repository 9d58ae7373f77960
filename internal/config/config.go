// Package config loads the minted configuration: a YAML file, an optional
// .env file and MINTED_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Log     Log     `yaml:"log"`
	Storage Storage `yaml:"storage"`
	Codec   Codec   `yaml:"codec"`
	Issuer  Issuer  `yaml:"issuer"`
	Ingest  Ingest  `yaml:"ingest"`
}

type Log struct {
	// dev | prod
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type Storage struct {
	// memory | file | redis | postgres
	Driver string `yaml:"driver"`

	// Dir is the root of the file driver.
	Dir string `yaml:"dir"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Postgres struct {
		DSN      string `yaml:"dsn"`
		MaxConns int    `yaml:"max_conns"`
		Table    string `yaml:"table"`
	} `yaml:"postgres"`
}

type Codec struct {
	BaseURL string `yaml:"base_url"`
}

type Issuer struct {
	// KeyFile is the private JWK used to sign new mints.
	KeyFile        string `yaml:"key_file"`
	ValidityMonths int    `yaml:"validity_months"`
}

type Ingest struct {
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path (if non-empty), applies defaults and MINTED_* overrides
// and validates the result. A missing file is an error only when path was
// given explicitly.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaultDataDir()
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "minted:"
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "mints"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 4
	}
	if c.Codec.BaseURL == "" {
		c.Codec.BaseURL = "https://minted.app/m"
	}
	if c.Issuer.KeyFile == "" {
		c.Issuer.KeyFile = filepath.Join(c.Storage.Dir, "issuer.jwk")
	}
	if c.Issuer.ValidityMonths == 0 {
		c.Issuer.ValidityMonths = 12
	}
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = 4
	}
}

// applyEnvOverrides lets MINTED_* variables replace file values.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("MINTED_LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MINTED_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if v, ok := getEnvStr("MINTED_STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MINTED_DATA_DIR"); ok {
		c.Storage.Dir = v
	}
	if v, ok := getEnvStr("MINTED_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvStr("MINTED_REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("MINTED_REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("MINTED_POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvInt("MINTED_POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	if v, ok := getEnvStr("MINTED_CODEC_BASE_URL"); ok {
		c.Codec.BaseURL = v
	}
	if v, ok := getEnvStr("MINTED_ISSUER_KEY_FILE"); ok {
		c.Issuer.KeyFile = v
	}
	if v, ok := getEnvInt("MINTED_ISSUER_VALIDITY_MONTHS"); ok {
		c.Issuer.ValidityMonths = v
	}
	if v, ok := getEnvInt("MINTED_INGEST_CONCURRENCY"); ok {
		c.Ingest.Concurrency = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Log.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("log.env must be dev or prod, got %q", c.Log.Env)
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	u, err := url.Parse(c.Codec.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("codec.base_url must be an absolute URL, got %q", c.Codec.BaseURL)
	}

	if c.Issuer.ValidityMonths < 1 {
		return fmt.Errorf("issuer.validity_months must be positive, got %d", c.Issuer.ValidityMonths)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be positive, got %d", c.Ingest.Concurrency)
	}
	if c.Storage.Postgres.MaxConns < 1 {
		return fmt.Errorf("storage.postgres.max_conns must be positive, got %d", c.Storage.Postgres.MaxConns)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minted"
	}
	return filepath.Join(home, ".minted")
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
