// internal/config/storage.go
package config

import (
	"fmt"
)

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// StorageKey prefixes key with the configured namespace.
func (s *StorageConfig) StorageKey(key string) string {
	return s.Namespace + ":" + key
}
