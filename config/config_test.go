package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TOKEN_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("STORE_DRIVER", "badger")
	t.Setenv("BADGER_DIR", "/tmp/ffinder")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", cfg.Auth.TokenSecret)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "/tmp/ffinder", cfg.Store.BadgerDir)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "auth:\n  token_secret: from-file\nserver:\n  public_url: https://ffinder.example\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.TokenSecret)
	assert.Equal(t, "https://ffinder.example", cfg.Server.PublicURL)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.Error(t, cfg.Validate(), "missing secret")

	cfg.Auth.TokenSecret = "secret"
	require.NoError(t, cfg.Validate())

	cfg.Store.Driver = "postgres"
	require.Error(t, cfg.Validate())

	cfg.Store.Driver = "mongo"
	cfg.SMTP.Host = "smtp.example.com"
	require.Error(t, cfg.Validate(), "smtp without from")
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
