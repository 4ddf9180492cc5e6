package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Env      string
	LogLevel string

	// Remote API (client side)
	APIBaseURL   string
	APITimeout   time.Duration
	APIRateLimit float64 // requests per second, 0 disables throttling
	APIRateBurst int

	// Local storage mirror
	StorageDriver        string
	StorageDir           string
	StorageWatchInterval time.Duration
	RedisURL             string
	RedisAddr            string
	RedisPassword        string
	RedisChannel         string
	CartStorageKey       string
	SessionStorageKey    string

	// Development backend
	Port               string
	AllowedOrigin      string
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	CacheCartTTL       time.Duration
	ServerRateLimit    float64
	ServerRateBurst    int
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// AdminEmail and AdminPassword seed an admin account at startup when both are set.
	AdminEmail    string
	AdminPassword string

	// Business Rules
	MaxCartQuantity int
	// CartFailOpen marks the cart as backend-loaded even when the login
	// reconciliation fetch fails.
	CartFailOpen bool
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		}
	} else {
		// 2. Default fallback: .env is optional, system env vars win either way
		_ = godotenv.Load()
	}

	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:   getEnv("API_BASE_URL", "http://localhost:8080"),
		APITimeout:   getDurationEnv("API_TIMEOUT", 10*time.Second),
		APIRateLimit: getFloatEnv("API_RATE_LIMIT", 10),
		APIRateBurst: getIntEnv("API_RATE_BURST", 20),

		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
		StorageDir:           getEnv("STORAGE_DIR", defaultStorageDir()),
		StorageWatchInterval: getDurationEnv("STORAGE_WATCH_INTERVAL", 500*time.Millisecond),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisChannel:         getEnv("REDIS_CHANNEL", "storefront:storage"),
		CartStorageKey:       getEnv("CART_STORAGE_KEY", "cart"),
		SessionStorageKey:    getEnv("SESSION_STORAGE_KEY", "auth"),

		Port:               getEnv("PORT", "8080"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		JWTSecret:          getEnv("JWT_SECRET", "default_secret_CHANGE_ME"),
		AccessTokenExpiry:  getDurationEnv("ACCESS_TOKEN_EXPIRY", 24*time.Hour),
		CacheCartTTL:       getDurationEnv("CACHE_CART_TTL", 30*24*time.Hour),
		ServerRateLimit:    getFloatEnv("SERVER_RATE_LIMIT", 50),
		ServerRateBurst:    getIntEnv("SERVER_RATE_BURST", 100),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),

		// Business rules: 1000 max cart quantity
		MaxCartQuantity: getIntEnv("MAX_CART_QUANTITY", 1000),
		CartFailOpen:    getBoolEnv("CART_FAIL_OPEN", true),
	}
}

// Validate checks combinations that cannot work. It does not exit, callers decide.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageFile:
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the file storage driver")
		}
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" && c.RedisAddr == "" {
			return fmt.Errorf("REDIS_URL or REDIS_ADDR is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.CartStorageKey == c.SessionStorageKey {
		return fmt.Errorf("CART_STORAGE_KEY and SESSION_STORAGE_KEY must differ")
	}
	if c.MaxCartQuantity < 0 {
		return fmt.Errorf("MAX_CART_QUANTITY must not be negative")
	}
	return nil
}

// ValidateServer checks the settings only the development backend needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "default_secret_CHANGE_ME" && c.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTSecret == "default_secret_CHANGE_ME" {
		log.Println("WARNING: Using default JWT secret.")
	}
	return nil
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "storefront"
	}
	return ".storefront"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}
