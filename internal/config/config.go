// Package config loads service settings from an optional YAML file with
// environment overrides for secrets and deploy knobs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	// ExposeErrors puts internal error text in 500 bodies. Development only.
	ExposeErrors bool `yaml:"expose_errors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // sqlite or postgres
	SQLitePath string `yaml:"sqlite_path"`
	URL        string `yaml:"url"`
}

type AnalysisConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`

	// Optional client-credentials grant used when a request carries no token.
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

type StorageConfig struct {
	Driver   string    `yaml:"driver"` // local, s3 or gcs
	LocalDir string    `yaml:"local_dir"`
	S3       S3Config  `yaml:"s3"`
	GCS      GCSConfig `yaml:"gcs"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type EventsConfig struct {
	Driver    string   `yaml:"driver"` // log or kafka
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Workers   int      `yaml:"workers"`
	QueueSize int      `yaml:"queue_size"`
}

// Load reads path when it is non-empty, fills defaults, then applies
// environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 50 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "songform.db"
	}
	if c.Analysis.URL == "" {
		c.Analysis.URL = "http://localhost:8001"
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 120 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "data/audio"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "log"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "songform.events"
	}
	if c.Events.Workers == 0 {
		c.Events.Workers = 2
	}
	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = 100
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, "SONGFORM_ADDR")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Auth.JWTSecret, "SONGFORM_JWT_SECRET")
	set(&c.Database.Driver, "STORAGE_DRIVER")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Analysis.URL, "ANALYSIS_SERVICE_URL")
	set(&c.Analysis.ClientSecret, "ANALYSIS_CLIENT_SECRET")
	set(&c.Storage.Driver, "BLOB_DRIVER")
	set(&c.Storage.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	set(&c.Storage.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	set(&c.Events.Driver, "EVENTS_DRIVER")
	if v := strings.TrimSpace(getenv("KAFKA_BROKERS")); v != "" {
		c.Events.Brokers = splitList(v)
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Auth.JWTSecret == "" {
		add("auth.jwt_secret is required (or SONGFORM_JWT_SECRET)")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Server.MaxUploadBytes < 0 {
		add("server.max_upload_bytes must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			add("database.url is required for the postgres driver")
		}
	default:
		add("unknown database driver %q", c.Database.Driver)
	}

	if u, err := url.Parse(c.Analysis.URL); err != nil || u.Scheme == "" || u.Host == "" {
		add("analysis.url must be an absolute URL, got %q", c.Analysis.URL)
	}
	if c.Analysis.Timeout < 0 {
		add("analysis.timeout must be positive")
	}
	if c.Analysis.ClientID != "" && (c.Analysis.ClientSecret == "" || c.Analysis.TokenURL == "") {
		add("analysis.client_secret and analysis.token_url are required with analysis.client_id")
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			add("storage.s3.bucket is required for the s3 driver")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			add("storage.gcs.bucket is required for the gcs driver")
		}
	default:
		add("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Events.Driver {
	case "log":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			add("events.brokers is required for the kafka driver")
		}
	default:
		add("unknown events driver %q", c.Events.Driver)
	}
	if c.Events.Workers < 0 || c.Events.QueueSize < 0 {
		add("events.workers and events.queue_size must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Level))
	return lvl, err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
