// internal/models/storage_entry.go
package models

import "time"

// LocalStorageEntry backs the postgres storage driver; one row per key.
type LocalStorageEntry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (LocalStorageEntry) TableName() string {
	return "local_storage_entries"
}
