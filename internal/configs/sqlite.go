package config

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timer-tracker.com/timer-tracker/internal/kv"
)

func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db open failed: %w", err)
	}

	if err := db.AutoMigrate(&kv.Entry{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}
