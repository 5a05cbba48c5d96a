package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "songform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  expose_errors: true
  cors_origins: ["http://localhost:3000"]
log:
  level: debug
  format: text
auth:
  jwt_secret: from-file
database:
  driver: postgres
  url: postgres://songform@localhost/songform
analysis:
  url: http://analysis:8001
  timeout: 30s
storage:
  driver: s3
  s3:
    bucket: audio
    endpoint: http://minio:9000
events:
  driver: kafka
  brokers: [kafka:9092]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.ExposeErrors)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "songform.events", cfg.Events.Topic)

	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SONGFORM_ADDR", "STORAGE_DRIVER", "ANALYSIS_SERVICE_URL", "BLOB_DRIVER", "EVENTS_DRIVER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "http://localhost:8001", cfg.Analysis.URL)
	assert.Equal(t, 120*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "log", cfg.Events.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SONGFORM_JWT_SECRET", "from-env")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/songform")
	t.Setenv("ANALYSIS_SERVICE_URL", "http://other:8001")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load(writeConfig(t, "auth:\n  jwt_secret: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://db/songform", cfg.Database.URL)
	assert.Equal(t, "http://other:8001", cfg.Analysis.URL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{Auth: AuthConfig{JWTSecret: "s"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, "database.url"},
		{"unknown db", func(c *Config) { c.Database.Driver = "mongo" }, "unknown database driver"},
		{"relative analysis url", func(c *Config) { c.Analysis.URL = "analysis:8001" }, "analysis.url"},
		{"client id without secret", func(c *Config) { c.Analysis.ClientID = "svc" }, "client_secret"},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = "s3" }, "storage.s3.bucket"},
		{"gcs without bucket", func(c *Config) { c.Storage.Driver = "gcs" }, "storage.gcs.bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "ftp" }, "unknown storage driver"},
		{"kafka without brokers", func(c *Config) { c.Events.Driver = "kafka" }, "events.brokers"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	t.Setenv("SONGFORM_JWT_SECRET", "example")

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 120*time.Second, cfg.Analysis.Timeout)
}
