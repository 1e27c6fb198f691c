package config

import (
	"fmt"
	"time"

	"github.com/kendall-kelly/manuorder-api/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectDatabase opens the database selected by DATABASE_DRIVER
func ConnectDatabase(cfg *Config) error {
	dialector, err := Dialector(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, GormConfig(logLevel))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; funnel everything through one connection
	if cfg.DatabaseDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	DB = db
	logger.Info("database connection established", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

// Dialector maps a driver name onto its gorm dialector
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// GormConfig is shared by the server and the tests so timestamps and
// constraint errors behave the same everywhere.
func GormConfig(level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// gormWriter routes gorm's printf-style output into the zap logger
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.L().Sugar().Infof(format, args...)
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
