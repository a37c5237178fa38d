package config

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/report-evaluator/internal/models"
)

// History writes are one insert and one update per request, so a small pool is enough.
const (
	historyMaxOpenConns    = 10
	historyMaxIdleConns    = 2
	historyConnMaxLifetime = 30 * time.Minute
)

// InitDatabase opens the postgres evaluation history and makes sure the
// evaluations table matches models.Evaluation.
func InitDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(historyLogLevel(cfg.Server.Env)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s@%s: %w", cfg.Database.DBName, cfg.Database.Host, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get history connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(historyMaxOpenConns)
	sqlDB.SetMaxIdleConns(historyMaxIdleConns)
	sqlDB.SetConnMaxLifetime(historyConnMaxLifetime)

	if err := db.AutoMigrate(&models.Evaluation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate evaluations table: %w", err)
	}

	log.Printf("✅ History database ready (%s)\n", cfg.Database.DBName)
	return db, nil
}

func historyLogLevel(env string) logger.LogLevel {
	if env == "development" {
		return logger.Warn
	}
	return logger.Silent
}
