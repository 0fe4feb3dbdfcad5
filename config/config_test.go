package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvalue/ods-adapter/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, StorageModeMemory, cfg.Storage.Mode)
	assert.Equal(t, 5, cfg.Publisher.Retries)
	assert.Equal(t, 5*time.Second, cfg.Publisher.Backoff)
	assert.Equal(t, 30*time.Second, cfg.HTTPFetch.Timeout)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
nats:
  url: nats://broker:4222
storage:
  mode: kv
publisher:
  retries: 2
  backoff: 1s
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, StorageModeKV, cfg.Storage.Mode)
	assert.Equal(t, 2, cfg.Publisher.Retries)
	assert.Equal(t, time.Second, cfg.Publisher.Backoff)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "ods-adapter", cfg.NATS.Name)
}

func TestLoadRejectsUnknownStorageMode(t *testing.T) {
	path := writeConfig(t, `
storage:
  mode: postgres
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "storage.mode")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "nats: [broken")

	_, err := Load(path)

	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")

	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.NATS.URL = ""
	cfg.Storage.Mode = "bogus"
	cfg.Publisher.Retries = -1

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 problem(s)")
}
