package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "retain-failed", cfg.Cart.MergePolicy)
	assert.Equal(t, 30, cfg.Auth.PollInterval)
	assert.Equal(t, "storefront:cart", cfg.Storage.StorageKey("cart"))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CART_MERGE_POLICY", "clear-always")
	t.Setenv("AUTH_POLL_INTERVAL", "5")
	t.Setenv("SERVER_ALLOW_ORIGINS", "https://shop.example.com, https://m.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "clear-always", cfg.Cart.MergePolicy)
	assert.Equal(t, 5, cfg.Auth.PollInterval)
	assert.Equal(t, []string{"https://shop.example.com", "https://m.example.com"}, cfg.Server.AllowOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver"},
		{"unknown policy", func(c *Config) { c.Cart.MergePolicy = "merge-later" }, "unknown cart merge policy"},
		{"poll too fast", func(c *Config) { c.Auth.PollInterval = 0 }, "poll interval"},
		{"poll too slow", func(c *Config) { c.Auth.PollInterval = 3600 }, "poll interval"},
		{"production api", func(c *Config) { c.Environment = "production" }, "API base URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Environment: "development",
				API:         APIConfig{BaseURL: "http://localhost:8000/api"},
				Storage:     StorageConfig{Driver: StorageDriverFile, Namespace: "storefront"},
				Auth:        AuthConfig{PollInterval: 30},
				Cart:        CartConfig{MergePolicy: "retain-failed"},
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
