package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

type StorageConfig struct {
	Bucket string
	Region string
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

func NewConfig() *Config {
	environment := getEnv("SERVER_ENVIRONMENT", "development")

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "3001"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  environment,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			Name:         getEnv("DB_NAME", "civicdesk"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", "development-secret-do-not-use"),
			TokenTTL:      getEnvDuration("AUTH_TOKEN_TTL", 30*24*time.Hour),
			BcryptCost:    getEnvInt("AUTH_BCRYPT_COST", 10),
			AdminName:     getEnv("AUTH_ADMIN_NAME", "admin"),
			AdminEmail:    getEnv("AUTH_ADMIN_EMAIL", "admin@gmail.com"),
			AdminPassword: getEnv("AUTH_ADMIN_PASSWORD", "admin"),
		},
		Storage: StorageConfig{
			Bucket: getEnv("STORAGE_S3_BUCKET", "civicdesk-uploads"),
			Region: getEnv("STORAGE_S3_REGION", "eu-west-1"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("TELEMETRY_EXPORTER_URL", ""),
			ServiceName:    getEnv("TELEMETRY_SERVICE_NAME", "civicdesk"),
			ServiceVersion: getEnv("TELEMETRY_SERVICE_VERSION", "dev"),
			Environment:    environment,
			SamplingRatio:  getEnvFloat("TELEMETRY_SAMPLING_RATIO", 1.0),
		},
	}
}

// URL builds the postgres connection string used by both the pgx pool and
// the migration CLI.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
