package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Delivery pipeline
	Platform          string
	DedupTTL          time.Duration
	DeliveryTimeout   time.Duration
	MaxAttempts       int
	WorkerConcurrency int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	JobLease          time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "hookrelay"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		Platform:          getEnv("WEBHOOK_PLATFORM", "whatsapp"),
		DedupTTL:          getEnvAsDuration("DEDUP_TTL", 60*time.Second),
		DeliveryTimeout:   getEnvAsDuration("DELIVERY_TIMEOUT", 8*time.Second),
		MaxAttempts:       getEnvAsInt("DELIVERY_MAX_ATTEMPTS", 5),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 16),
		BackoffInitial:    getEnvAsDuration("BACKOFF_INITIAL", 5*time.Second),
		BackoffMax:        getEnvAsDuration("BACKOFF_MAX", 10*time.Minute),
		JobLease:          getEnvAsDuration("JOB_LEASE", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
