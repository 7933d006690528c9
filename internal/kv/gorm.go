package kv

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the kv_entries table.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	var entry Entry
	err := s.db.WithContext(ctx).First(&entry, "entry_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return []byte(entry.Value), true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := &Entry{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	return s.db.WithContext(ctx).Delete(&Entry{}, "entry_key = ?", key).Error
}
