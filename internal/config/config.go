// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultMaxFileSize is the upload limit applied when MAX_FILE_SIZE is unset.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Metadata store drivers.
const (
	MetadataRedis    = "redis"
	MetadataPostgres = "postgres"
)

// Blob store drivers.
const (
	StorageMinio  = "minio"
	StorageMemory = "memory"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port        string
	AppEnv      string
	LogLevel    string
	JWTSecret   string
	MaxFileSize int64

	// Metadata store
	MetadataDriver string
	RedisAddress   string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DatabaseURL    string

	// Object storage (any S3-compatible provider)
	StorageDriver     string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageRegion     string
	StorageBucket     string
	StorageUseSSL     bool
	StoragePublicBase string // browser-accessible base URL, e.g. "https://images.s3.amazonaws.com"
}

// Load reads configuration from a .env file (if present) and environment variables.
// Every missing required setting is reported in the returned error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: getEnv("JWT_SECRET", os.Getenv("TOKEN_ACCESSSECRET")),

		MetadataDriver: getEnv("METADATA_DRIVER", MetadataRedis),
		RedisAddress:   os.Getenv("REDIS_ADDRESS"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		StorageDriver:     getEnv("STORAGE_DRIVER", StorageMinio),
		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "s3.amazonaws.com"),
		StorageAccessKey:  os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:  os.Getenv("STORAGE_SECRET_KEY"),
		StorageRegion:     os.Getenv("STORAGE_REGION"),
		StorageBucket:     getEnv("STORAGE_BUCKET", os.Getenv("S3_BUCKET")),
		StorageUseSSL:     getEnv("STORAGE_USE_SSL", "true") == "true",
		StoragePublicBase: os.Getenv("STORAGE_PUBLIC_BASE"),
	}

	var errs []error

	var err error
	if cfg.MaxFileSize, err = getInt64("MAX_FILE_SIZE", DefaultMaxFileSize); err != nil {
		errs = append(errs, err)
	} else if cfg.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	redisPort, err := getInt64("REDIS_PORT", 6379)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RedisPort = int(redisPort)
	redisDB, err := getInt64("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RedisDB = int(redisDB)

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable required"))
	}
	if cfg.StorageBucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET environment variable required"))
	}

	switch cfg.MetadataDriver {
	case MetadataRedis:
		if cfg.RedisAddress == "" {
			errs = append(errs, errors.New("REDIS_ADDRESS environment variable required"))
		}
	case MetadataPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported METADATA_DRIVER %q", cfg.MetadataDriver))
	}

	switch cfg.StorageDriver {
	case StorageMinio, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.StoragePublicBase == "" {
		cfg.StoragePublicBase = defaultPublicBase(cfg.StorageEndpoint, cfg.StorageBucket, cfg.StorageUseSSL)
	}

	return cfg, nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RedisAddr returns the host:port pair for the redis client.
func (c *Config) RedisAddr() string {
	if strings.Contains(c.RedisAddress, ":") {
		return c.RedisAddress
	}
	return fmt.Sprintf("%s:%d", c.RedisAddress, c.RedisPort)
}

// defaultPublicBase mirrors how S3 serves public objects: virtual-hosted style on AWS,
// path style on everything else (MinIO, ArvanCloud, ...).
func defaultPublicBase(endpoint, bucket string, useSSL bool) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	if endpoint == "s3.amazonaws.com" {
		return fmt.Sprintf("%s://%s.%s", scheme, bucket, endpoint)
	}
	return fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
