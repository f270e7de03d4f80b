package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ligustah/csvsync/internal/progress"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the csvsync job.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Progress bool           `yaml:"progress"`
}

// ServiceConfig identifies the running service in logs.
type ServiceConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// DatabaseConfig selects the database client and record model.
type DatabaseConfig struct {
	Client string `yaml:"client"` // postgres | clickhouse | sqlite
	Model  string `yaml:"model"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds identity provider credentials.
type AuthConfig struct {
	TokenURL     string   `yaml:"token_url"`
	BaseURL      string   `yaml:"base_url"`
	Realm        string   `yaml:"realm"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Scopes       []string `yaml:"scopes"`
}

// HTTPConfig configures the download transport.
type HTTPConfig struct {
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	Retry                 RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// LoggingConfig selects the log format and level.
type LoggingConfig struct {
	Format string `yaml:"format"` // json | text
	Level  string `yaml:"level"`  // debug | info | warn | error
}

// ArchiveConfig enables copying the raw download into object storage.
// An empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	BufferSize int64  `yaml:"buffer_size"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name: "csvsync",
			Env:  "development",
		},
		Database: DatabaseConfig{
			Client: "postgres",
			Model:  "cepr",
		},
		HTTP: HTTPConfig{
			MaxIdleConnsPerHost:   4,
			ResponseHeaderTimeout: 30 * time.Second,
			Retry: RetryConfig{
				Attempts:   0,
				Backoff:    time.Second,
				MaxBackoff: 30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		Archive: ArchiveConfig{
			Prefix:     "exports/",
			BufferSize: 8 * 1024 * 1024, // 8MiB
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     struct {
		MaxIdleConnsPerHost   int    `yaml:"max_idle_conns_per_host"`
		ResponseHeaderTimeout string `yaml:"response_header_timeout"`
		Retry                 struct {
			Attempts   *int   `yaml:"attempts"`
			Backoff    string `yaml:"backoff"`
			MaxBackoff string `yaml:"max_backoff"`
		} `yaml:"retry"`
	} `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Archive struct {
		Bucket     string `yaml:"bucket"`
		Prefix     string `yaml:"prefix"`
		BufferSize string `yaml:"buffer_size"`
	} `yaml:"archive"`
	Progress bool `yaml:"progress"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		Service:  yc.Service,
		Database: yc.Database,
		Auth:     yc.Auth,
		Logging:  yc.Logging,
		Progress: yc.Progress,
	}
	override.HTTP.MaxIdleConnsPerHost = yc.HTTP.MaxIdleConnsPerHost
	override.Archive.Bucket = yc.Archive.Bucket
	override.Archive.Prefix = yc.Archive.Prefix

	if yc.HTTP.ResponseHeaderTimeout != "" {
		d, err := time.ParseDuration(yc.HTTP.ResponseHeaderTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.response_header_timeout: %w", err)
		}
		override.HTTP.ResponseHeaderTimeout = d
	}
	if yc.HTTP.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.HTTP.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.retry.backoff: %w", err)
		}
		override.HTTP.Retry.Backoff = d
	}
	if yc.HTTP.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.HTTP.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.retry.max_backoff: %w", err)
		}
		override.HTTP.Retry.MaxBackoff = d
	}
	if yc.Archive.BufferSize != "" {
		size, err := progress.ParseBytes(yc.Archive.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse archive.buffer_size: %w", err)
		}
		override.Archive.BufferSize = size
	}

	cfg := Default().Merge(override)
	// Zero is a meaningful attempt count, so it bypasses Merge.
	if yc.HTTP.Retry.Attempts != nil {
		cfg.HTTP.Retry.Attempts = *yc.HTTP.Retry.Attempts
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CSVSYNC_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"CSVSYNC_SERVICE_NAME", &c.Service.Name},
		{"CSVSYNC_ENV", &c.Service.Env},
		{"CSVSYNC_DB_CLIENT", &c.Database.Client},
		{"CSVSYNC_DB_MODEL", &c.Database.Model},
		{"CSVSYNC_DB_DSN", &c.Database.DSN},
		{"CSVSYNC_AUTH_TOKEN_URL", &c.Auth.TokenURL},
		{"CSVSYNC_AUTH_BASE_URL", &c.Auth.BaseURL},
		{"CSVSYNC_AUTH_REALM", &c.Auth.Realm},
		{"CSVSYNC_AUTH_CLIENT_ID", &c.Auth.ClientID},
		{"CSVSYNC_AUTH_CLIENT_SECRET", &c.Auth.ClientSecret},
		{"CSVSYNC_AUTH_USERNAME", &c.Auth.Username},
		{"CSVSYNC_AUTH_PASSWORD", &c.Auth.Password},
		{"CSVSYNC_LOG_FORMAT", &c.Logging.Format},
		{"CSVSYNC_LOG_LEVEL", &c.Logging.Level},
		{"CSVSYNC_ARCHIVE_BUCKET", &c.Archive.Bucket},
		{"CSVSYNC_ARCHIVE_PREFIX", &c.Archive.Prefix},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("CSVSYNC_AUTH_SCOPES"); v != "" {
		c.Auth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	if v := os.Getenv("CSVSYNC_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("CSVSYNC_HTTP_MAX_IDLE_CONNS_PER_HOST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_HTTP_MAX_IDLE_CONNS_PER_HOST: %w", err)
		}
		c.HTTP.MaxIdleConnsPerHost = n
	}
	if v := os.Getenv("CSVSYNC_HTTP_RESPONSE_HEADER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_HTTP_RESPONSE_HEADER_TIMEOUT: %w", err)
		}
		c.HTTP.ResponseHeaderTimeout = d
	}
	if v := os.Getenv("CSVSYNC_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_RETRY_ATTEMPTS: %w", err)
		}
		c.HTTP.Retry.Attempts = n
	}
	if v := os.Getenv("CSVSYNC_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_RETRY_BACKOFF: %w", err)
		}
		c.HTTP.Retry.Backoff = d
	}
	if v := os.Getenv("CSVSYNC_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_RETRY_MAX_BACKOFF: %w", err)
		}
		c.HTTP.Retry.MaxBackoff = d
	}
	if v := os.Getenv("CSVSYNC_ARCHIVE_BUFFER_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse CSVSYNC_ARCHIVE_BUFFER_SIZE: %w", err)
		}
		c.Archive.BufferSize = size
	}

	return nil
}

// TokenEndpoint returns the configured token endpoint, deriving the Keycloak
// endpoint from base URL and realm when no explicit URL is set.
func (a AuthConfig) TokenEndpoint() string {
	if a.TokenURL != "" {
		return a.TokenURL
	}
	if a.BaseURL == "" || a.Realm == "" {
		return ""
	}
	return strings.TrimSuffix(a.BaseURL, "/") + "/realms/" + a.Realm + "/protocol/openid-connect/token"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("config: service name is required")
	}
	if c.Database.Client == "" {
		return errors.New("config: database client is required")
	}
	if c.Database.Model == "" {
		return errors.New("config: database model is required")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn is required")
	}
	if c.Auth.TokenEndpoint() == "" {
		return errors.New("config: auth token_url or base_url and realm are required")
	}
	if c.Auth.ClientID == "" {
		return errors.New("config: auth client_id is required")
	}
	if c.Auth.Username != "" && c.Auth.Password == "" {
		return errors.New("config: auth password is required with username")
	}
	if c.HTTP.Retry.Attempts < 0 {
		return errors.New("config: retry attempts must not be negative")
	}
	if c.Archive.Bucket != "" && c.Archive.BufferSize < 0 {
		return errors.New("config: archive buffer_size must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	mergeString(&c.Service.Name, override.Service.Name)
	mergeString(&c.Service.Env, override.Service.Env)
	mergeString(&c.Database.Client, override.Database.Client)
	mergeString(&c.Database.Model, override.Database.Model)
	mergeString(&c.Database.DSN, override.Database.DSN)
	mergeString(&c.Auth.TokenURL, override.Auth.TokenURL)
	mergeString(&c.Auth.BaseURL, override.Auth.BaseURL)
	mergeString(&c.Auth.Realm, override.Auth.Realm)
	mergeString(&c.Auth.ClientID, override.Auth.ClientID)
	mergeString(&c.Auth.ClientSecret, override.Auth.ClientSecret)
	mergeString(&c.Auth.Username, override.Auth.Username)
	mergeString(&c.Auth.Password, override.Auth.Password)
	mergeString(&c.Logging.Format, override.Logging.Format)
	mergeString(&c.Logging.Level, override.Logging.Level)
	mergeString(&c.Archive.Bucket, override.Archive.Bucket)
	mergeString(&c.Archive.Prefix, override.Archive.Prefix)

	if len(override.Auth.Scopes) > 0 {
		c.Auth.Scopes = override.Auth.Scopes
	}
	if override.HTTP.MaxIdleConnsPerHost != 0 {
		c.HTTP.MaxIdleConnsPerHost = override.HTTP.MaxIdleConnsPerHost
	}
	if override.HTTP.ResponseHeaderTimeout != 0 {
		c.HTTP.ResponseHeaderTimeout = override.HTTP.ResponseHeaderTimeout
	}
	if override.HTTP.Retry.Attempts != 0 {
		c.HTTP.Retry.Attempts = override.HTTP.Retry.Attempts
	}
	if override.HTTP.Retry.Backoff != 0 {
		c.HTTP.Retry.Backoff = override.HTTP.Retry.Backoff
	}
	if override.HTTP.Retry.MaxBackoff != 0 {
		c.HTTP.Retry.MaxBackoff = override.HTTP.Retry.MaxBackoff
	}
	if override.Archive.BufferSize != 0 {
		c.Archive.BufferSize = override.Archive.BufferSize
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	return c
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
