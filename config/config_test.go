package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := writeConfig(t, "jwt:\n  secret_key: "+testSecret+"\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.Equal(t, "auth-service", cfg.JWT.Issuer)
	assert.True(t, cfg.JWT.RotationEnabled)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, DirectoryDriverHTTP, cfg.Directory.Driver)
	assert.Equal(t, 5*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Store.Retention)
}

func TestLoadConfig_FileValues(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  secret_key: `+testSecret+`
  key_id: k2
  verify_keys:
    k1: abcdefabcdefabcdefabcdefabcdefab
  access_token_ttl: 900s
  refresh_token_ttl: 48h
  issuer: fiapx
  rotation_enabled: false
store:
  driver: redis
  retention: 2h
directory:
  driver: postgres
  timeout: 2s
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "k2", cfg.JWT.KeyID)
	assert.Equal(t, "abcdefabcdefabcdefabcdefabcdefab", cfg.JWT.VerifyKeys["k1"])
	assert.Equal(t, 900*time.Second, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.Equal(t, "fiapx", cfg.JWT.Issuer)
	assert.False(t, cfg.JWT.RotationEnabled)
	assert.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Store.Retention)
	assert.Equal(t, DirectoryDriverPostgres, cfg.Directory.Driver)
	assert.Equal(t, 2*time.Second, cfg.Directory.Timeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := writeConfig(t, "jwt:\n  secret_key: "+testSecret+"\n")
	t.Setenv("JWT_ISSUER", "from-env")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Issuer)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWT.SecretKey)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.JWT.SecretKey = testSecret
		cfg.JWT.AccessTokenTTL = time.Minute
		cfg.JWT.RefreshTokenTTL = time.Hour
		cfg.JWT.Issuer = "auth-service"
		cfg.Store.Driver = StoreDriverPostgres
		cfg.Store.Retention = time.Hour
		cfg.Directory.Driver = DirectoryDriverHTTP
		cfg.Directory.Timeout = time.Second
		cfg.Hasher.Timeout = time.Second
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("short secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.SecretKey = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive access ttl", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.AccessTokenTTL = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown store driver", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Driver = "mongo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero retention with redis store", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Driver = StoreDriverRedis
		cfg.Store.Retention = 0
		assert.EqualError(t, cfg.Validate(), "store.retention must be positive")
	})

	t.Run("zero retention with postgres store", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Retention = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative purge interval", func(t *testing.T) {
		cfg := valid()
		cfg.Store.PurgeInterval = -time.Minute
		assert.Error(t, cfg.Validate())
	})

	t.Run("short verify key", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.VerifyKeys = map[string]string{"old": "tiny"}
		assert.Error(t, cfg.Validate())
	})
}
