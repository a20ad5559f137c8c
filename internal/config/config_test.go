package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/detailing.db", cfg.DatabaseDSN())
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, DefaultAssignments(), cfg.LLM.Assignments)
	assert.Len(t, cfg.LLM.Backends, len(DefaultBackends()))
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
database:
  in_memory: true
llm:
  timeout: 5s
  backends:
    - id: primary
      kind: http
      endpoint: http://llm.local/generate
      enabled: true
  assignments:
    chat: primary
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.DatabaseDSN())
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	require.Len(t, cfg.LLM.Backends, 1)
	assert.Equal(t, "primary", cfg.LLM.Backends[0].ID)
	assert.Equal(t, map[string]string{"chat": "primary"}, cfg.LLM.Assignments)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DatabaseDSN())
	assert.Equal(t, 7070, cfg.Server.Port)
	for _, b := range cfg.LLM.Backends {
		assert.Equal(t, "sk-test", b.APIKey, b.ID)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8080}, Database: DatabaseConfig{Path: "x.db"}}
	assert.NoError(t, cfg.Validate())

	cfg.Auth.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Auth = AuthConfig{}

	cfg.LLM.Backends = []BackendConfig{{ID: "a"}, {ID: "a"}}
	assert.Error(t, cfg.Validate())
}
