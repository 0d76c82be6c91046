package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BUCKET", "images")
	t.Setenv("REDIS_ADDRESS", "localhost")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, MetadataRedis, cfg.MetadataDriver)
	assert.Equal(t, StorageMinio, cfg.StorageDriver)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, "https://images.s3.amazonaws.com", cfg.StoragePublicBase)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_LegacyNames(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("TOKEN_ACCESSSECRET", "legacy")
	t.Setenv("S3_BUCKET", "legacy-bucket")
	t.Setenv("REDIS_ADDRESS", "redis.local")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.JWTSecret)
	assert.Equal(t, "legacy-bucket", cfg.StorageBucket)
	assert.Equal(t, "redis.local:6380", cfg.RedisAddr())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TOKEN_ACCESSSECRET", "")
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("REDIS_ADDRESS", "")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORAGE_BUCKET")
	assert.Contains(t, err.Error(), "REDIS_ADDRESS")
}

func TestLoad_PostgresNeedsDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("METADATA_DRIVER", MetadataPostgres)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidMaxFileSize(t *testing.T) {
	setRequired(t)

	t.Setenv("MAX_FILE_SIZE", "ten")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MAX_FILE_SIZE", "0")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("MAX_FILE_SIZE", "2048")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
}

func TestLoad_PathStylePublicBase(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("STORAGE_USE_SSL", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/images", cfg.StoragePublicBase)
}
