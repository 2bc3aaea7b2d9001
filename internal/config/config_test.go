package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "qwen-plus", cfg.Model)
	assert.Equal(t, 10*time.Millisecond, cfg.ChunkDelay)
	assert.True(t, cfg.EnableCORS)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestLoad_JSONCFile(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "concierge.jsonc")
	content := `{
		// local overrides
		"addr": ":9090",
		"model": "qwen-turbo",
		"chunkDelayMs": 0,
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "qwen-turbo", cfg.Model)
	assert.Equal(t, time.Duration(0), cfg.ChunkDelay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")
	t.Setenv("MODEL_ID", "qwen-max")
	t.Setenv("CHUNK_DELAY_MS", "25")

	path := filepath.Join(t.TempDir(), "concierge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":"qwen-turbo"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen-max", cfg.Model)
	assert.Equal(t, 25*time.Millisecond, cfg.ChunkDelay)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "concierge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": }`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
