package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetApplicationConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SECRET", "jwt-secret")

	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "conversation-api", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.PostgresConfig.Driver)
	assert.Equal(t, 5432, cfg.PostgresConfig.Port)
	assert.Equal(t, "local", cfg.AssetStoreConfig.StorageType)
	assert.Equal(t, "audio-recordings", cfg.AssetStoreConfig.StoragePathPrefix)
	assert.Equal(t, 2000, cfg.RecordingConfig.ChunkDurationMs)
	assert.Equal(t, 0, cfg.RecordingConfig.MaxUploadAttempts)
	assert.True(t, cfg.RecordingConfig.RemoveLocalAfterUpload)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestGetApplicationConfig_EnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "SECRET=from-file\n" +
		"PORT=8080\n" +
		"POSTGRES__DRIVER=sqlite\n" +
		"POSTGRES__DB_NAME=/tmp/shira.db\n" +
		"RECORDING__CHUNK_DURATION_MS=5000\n" +
		"ASSET_STORE__STORAGE_TYPE=s3\n" +
		"ASSET_STORE__AUTH__REGION=eu-west-1\n" +
		"CORS_ALLOWED_ORIGINS=https://a.example,https://b.example\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv("ENV_PATH", envFile)

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Secret)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.PostgresConfig.Driver)
	assert.Equal(t, "/tmp/shira.db", cfg.PostgresConfig.DBName)
	assert.Equal(t, 5000, cfg.RecordingConfig.ChunkDurationMs)
	assert.Equal(t, "s3", cfg.AssetStoreConfig.StorageType)
	assert.Equal(t, "eu-west-1", cfg.AssetStoreConfig.Auth.Region)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestGetApplicationConfig_MissingSecretFailsValidation(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SECRET", "")

	v, err := InitConfig()
	require.NoError(t, err)

	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}
