package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_dsn":        "file:vault.db",
		"nats_url":            "nats://127.0.0.1:4222",
		"nats_subject_prefix": "kc",
		"request_timeout":     "10s",
		"auto_lock":           "5m",
		"s3_access_key":       "user",
		"s3_secret_key":       "password",
		"s3_bucket":           "bucket",
		"s3_region":           "region",
		"s3_base_endpoint":    "base_endpoint",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "file:vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
		assert.Equal(t, "kc", cfg.NATSSubjectPrefix)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 5*time.Minute, cfg.AutoLock)
		assert.Equal(t, "user", cfg.S3AccessKey)
		assert.Equal(t, "password", cfg.S3SecretKey)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			DatabaseDSN:       "file:other.db",
			NATSSubjectPrefix: "other",
			RequestTimeout:    2 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "file:other.db", cfg.DatabaseDSN)
		assert.Equal(t, "other", cfg.NATSSubjectPrefix)
		assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
