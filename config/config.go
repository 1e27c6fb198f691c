package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseDriver     string
	DatabaseURL        string
	Port               string
	GoEnv              string
	ServiceName        string
	Auth0Domain        string
	Auth0Audience      string
	JWTSecret          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSS3Endpoint      string
	UploadDir          string
	LogLevel           string
	RedisURL           string
	KafkaBrokers       []string
	KafkaTopic         string
	SentryDSN          string
	OTLPEndpoint       string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	BlobTimeout        time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	EnvFile            string
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	envFile := LoadDotEnv()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		DatabaseDriver:     strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		Port:               v.GetString("PORT"),
		GoEnv:              v.GetString("GO_ENV"),
		ServiceName:        v.GetString("SERVICE_NAME"),
		Auth0Domain:        v.GetString("AUTH0_DOMAIN"),
		Auth0Audience:      v.GetString("AUTH0_AUDIENCE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		AWSRegion:          v.GetString("AWS_REGION"),
		AWSS3Bucket:        v.GetString("AWS_S3_BUCKET"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		AWSS3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		RedisURL:           v.GetString("REDIS_URL"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		SentryDSN:          v.GetString("SENTRY_DSN"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		BlobTimeout:        v.GetDuration("BLOB_TIMEOUT"),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		EnvFile:            envFile,
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	SetConfig(config)
	return config, nil
}

// LoadDotEnv loads .env.<GO_ENV>, or .env when that file is missing, into
// the process environment. Variables already set are kept. It returns the
// file that was loaded, or "" when only the system environment is used.
// Nothing is logged here since it runs before the logger is built.
func LoadDotEnv() string {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err == nil {
		return envFile
	}
	if err := godotenv.Load(); err == nil {
		return ".env"
	}
	// In production environment variables are set directly
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("SERVICE_NAME", "manuorder-api")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_S3_BUCKET", "manuorder-files")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_TOPIC", "order-events")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BLOB_TIMEOUT", "20s")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.RequestTimeout <= 0 || c.BlobTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and BLOB_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// UsesLocalTokens reports whether tokens are verified with JWT_SECRET instead of Auth0
func (c *Config) UsesLocalTokens() bool {
	return c.JWTSecret != ""
}

// S3Enabled reports whether AWS credentials are present for the primary blob store
func (c *Config) S3Enabled() bool {
	return c.AWSS3Bucket != "" && c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// GetConfig returns the most recently loaded configuration
func GetConfig() *Config {
	return current
}

// SetConfig replaces the process-wide configuration (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
