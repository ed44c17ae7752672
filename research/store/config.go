package store

import (
	"os"
	"strconv"
	"time"
)

// RedisConfigFromEnv loads Redis store configuration from environment
// variables, falling back to defaults.
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("DEEPRESEARCH_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("DEEPRESEARCH_REDIS_PASSWORD", ""),
		DB:       getEnvInt("DEEPRESEARCH_REDIS_DB", 0),
		Prefix:   getEnv("DEEPRESEARCH_REDIS_PREFIX", defaultRedisPrefix),
		TTL:      getEnvDuration("DEEPRESEARCH_REDIS_TTL", 0),
	}
}

// MongoConfigFromEnv loads MongoDB store configuration from environment
// variables, falling back to defaults.
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:        getEnv("DEEPRESEARCH_MONGO_URI", "mongodb://localhost:27017"),
		Database:   getEnv("DEEPRESEARCH_MONGO_DB", "deepresearch"),
		Collection: getEnv("DEEPRESEARCH_MONGO_COLLECTION", "sessions"),
		Timeout:    getEnvDuration("DEEPRESEARCH_MONGO_TIMEOUT", 10*time.Second),
	}
}

// PostgresConfigFromEnv loads PostgreSQL store configuration from environment
// variables, falling back to defaults.
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("DEEPRESEARCH_POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("DEEPRESEARCH_POSTGRES_PORT", 5432),
		User:     getEnv("DEEPRESEARCH_POSTGRES_USER", "postgres"),
		Password: getEnv("DEEPRESEARCH_POSTGRES_PASSWORD", ""),
		DBName:   getEnv("DEEPRESEARCH_POSTGRES_DB", "deepresearch"),
		SSLMode:  getEnv("DEEPRESEARCH_POSTGRES_SSLMODE", "disable"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
