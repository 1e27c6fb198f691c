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
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "order-events", cfg.KafkaTopic)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20*time.Second, cfg.BlobTimeout)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.True(t, cfg.IsTest())
	assert.Same(t, cfg, GetConfig())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid postgres", Config{DatabaseDriver: "postgres", DatabaseURL: "postgres://x", RequestTimeout: time.Second, BlobTimeout: time.Second}, false},
		{"unknown driver", Config{DatabaseDriver: "oracle", DatabaseURL: "x", RequestTimeout: time.Second, BlobTimeout: time.Second}, true},
		{"zero timeout", Config{DatabaseDriver: "mysql", DatabaseURL: "x", BlobTimeout: time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModeHelpers(t *testing.T) {
	cfg := &Config{GoEnv: "production", JWTSecret: "s3cret", AWSS3Bucket: "b", AWSAccessKeyID: "id", AWSSecretAccessKey: "key"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.UsesLocalTokens())
	assert.True(t, cfg.S3Enabled())

	cfg.AWSAccessKeyID = ""
	assert.False(t, cfg.S3Enabled())
}

func TestLoadDotEnv_ReportsLoadedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GO_ENV", "staging")

	assert.Equal(t, "", LoadDotEnv())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.staging"), []byte("MANUORDER_DOTENV_CHECK=1\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MANUORDER_DOTENV_CHECK") })
	assert.Equal(t, ".env.staging", LoadDotEnv())
	assert.Equal(t, "1", os.Getenv("MANUORDER_DOTENV_CHECK"))
}
