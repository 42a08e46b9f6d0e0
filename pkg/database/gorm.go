package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig bounds the connection pool. Zero fields fall back to the defaults.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// Quiet drops per-query SQL logging and keeps slow queries and errors.
	Quiet bool
}

var defaultPool = PoolConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultPool.MaxIdleConns
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultPool.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultPool.ConnMaxLifetime
	}
	return c
}

func logLevel(quiet bool) logger.LogLevel {
	if quiet {
		return logger.Warn
	}
	return logger.Info
}

func getLogger(quiet bool) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel(quiet),
			IgnoreRecordNotFoundError: true,
			// Row values are user data; keep them out of the SQL log.
			ParameterizedQueries: true,
			Colorful:             !quiet,
		},
	)
}

func configureConnectionPool(db *gorm.DB, cfg PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return nil
}

// Open connects to postgres with the given pool settings.
func Open(dsn string, cfg PoolConfig) (*gorm.DB, error) {
	cfg = cfg.withDefaults()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: getLogger(cfg.Quiet),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

func NewGormDBFromDSN(dsn string) (*gorm.DB, error) {
	return Open(dsn, PoolConfig{})
}
