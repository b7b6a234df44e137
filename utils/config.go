package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvPath is read when present; a missing default file is not an error
const DefaultEnvPath = ".env"

// ErrNoInput means neither an input file nor piped stdin was supplied
var ErrNoInput = errors.New("no input: provide a JSON/NDJSON file or pipe one in")

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Parser   ParserConfig
	Database DatabaseConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// ParserConfig holds pipeline defaults
type ParserConfig struct {
	Format           string
	FallbackPlatform string
	CanonicalIDs     bool
	PlatformsFile    string
	Timezone         string
	PreviewRecords   int
}

// DatabaseConfig holds database configuration; an empty path disables the archive
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                 int
	MaxRequestsPerMinute int
	BodyLimit            string
	StatsRefreshInterval int
}

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = DefaultEnvPath
	}

	if err := godotenv.Load(envPath); err != nil {
		if envPath != DefaultEnvPath || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.WithField("file", envPath).Debug("No .env file, using environment only")
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ZS Parser"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Parser: ParserConfig{
			Format:           strings.ToLower(getEnv("OUTPUT_FORMAT", "json")),
			FallbackPlatform: getEnv("FALLBACK_PLATFORM", "facebook"),
			CanonicalIDs:     getEnvAsBool("CANONICAL_IDS", false),
			PlatformsFile:    getEnv("PLATFORMS_FILE", ""),
			Timezone:         getEnv("TIMEZONE", ""),
			PreviewRecords:   getEnvAsInt("PREVIEW_RECORDS", 0),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", ""),
		},
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			MaxRequestsPerMinute: getEnvAsInt("SERVER_MAX_REQUESTS_PER_MINUTE", 60),
			BodyLimit:            getEnv("SERVER_BODY_LIMIT", "64M"),
			StatsRefreshInterval: getEnvAsInt("STATS_REFRESH_INTERVAL", 30),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Debug("Config loaded successfully")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Parser.Format != "csv" && config.Parser.Format != "json" {
		return fmt.Errorf("OUTPUT_FORMAT must be csv or json, got %q", config.Parser.Format)
	}
	if config.Parser.PreviewRecords < 0 {
		return fmt.Errorf("PREVIEW_RECORDS must not be negative")
	}
	if config.Parser.Timezone != "" {
		if _, err := time.LoadLocation(config.Parser.Timezone); err != nil {
			return fmt.Errorf("TIMEZONE is invalid: %w", err)
		}
	}
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if config.Server.MaxRequestsPerMinute < 1 {
		return fmt.Errorf("SERVER_MAX_REQUESTS_PER_MINUTE must be positive")
	}

	// if we are storing the db in a nested directory, create the directory
	if config.Database.Path != "" {
		dbDir := filepath.Dir(config.Database.Path)
		if dbDir != "." && dbDir != "" {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	return nil
}

// ApplyTimezone makes creation times render in the named zone
func ApplyTimezone(timezone string, log *logrus.Logger) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	time.Local = loc
	log.WithField("timezone", timezone).Debug("Timezone configured")
	return nil
}
