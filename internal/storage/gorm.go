package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/imi-storefront/internal/models"
)

// GormStorage keeps entries in the local_storage_entries table. It has no
// change notifications; the auth observer's poll covers it.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (s *GormStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var entry models.LocalStorageEntry
	if err := s.db.Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("database error: %w", err)
	}
	return entry.Value, true, nil
}

func (s *GormStorage) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := models.LocalStorageEntry{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to store %q: %w", key, err)
	}
	return nil
}

func (s *GormStorage) Remove(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.db.Where("key = ?", key).Delete(&models.LocalStorageEntry{}).Error; err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}
