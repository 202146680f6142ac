// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	API         APIConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Cart        CartConfig
	RateLimit   RateLimitConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	AllowOrigins []string
}

// APIConfig points at the remote storefront REST backend.
type APIConfig struct {
	BaseURL string
	Timeout int // in seconds
}

type StorageConfig struct {
	Driver    string // file, postgres or memory
	Dir       string
	Namespace string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type AuthConfig struct {
	TokenKey     string
	PollInterval int // in seconds
	JWTSecret    string
}

type CartConfig struct {
	MergePolicy string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Enabled           bool
}

type I18nConfig struct {
	DefaultLocale string
}

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	minPollInterval = 1
	maxPollInterval = 300
)

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowOrigins: getEnvAsList("SERVER_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8000/api"),
			Timeout: getEnvAsInt("API_TIMEOUT", 15),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", StorageDriverFile),
			Dir:       getEnv("STORAGE_DIR", "./.storefront"),
			Namespace: getEnv("STORAGE_NAMESPACE", "storefront"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "storefront"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Auth: AuthConfig{
			TokenKey:     getEnv("AUTH_TOKEN_KEY", "token"),
			PollInterval: getEnvAsInt("AUTH_POLL_INTERVAL", 30),
			JWTSecret:    getEnv("JWT_SECRET", ""),
		},
		Cart: CartConfig{
			MergePolicy: getEnv("CART_MERGE_POLICY", "retain-failed"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverFile, StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Namespace == "" {
		return fmt.Errorf("storage namespace is required")
	}

	if c.Cart.MergePolicy != "retain-failed" && c.Cart.MergePolicy != "clear-always" {
		return fmt.Errorf("unknown cart merge policy %q", c.Cart.MergePolicy)
	}

	if c.Auth.PollInterval < minPollInterval || c.Auth.PollInterval > maxPollInterval {
		return fmt.Errorf("auth poll interval must be between %d and %d seconds", minPollInterval, maxPollInterval)
	}

	if c.Database.Password == "" && c.Storage.Driver == StorageDriverPostgres && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if strings.HasPrefix(c.API.BaseURL, "http://localhost") && c.Environment == "production" {
		return fmt.Errorf("API base URL must be set in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
