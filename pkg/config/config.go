package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	Sources     SourcesConfig
	Search      SearchConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled    bool
	URL        string
	APIKey     string
	Collection string
}

// GeolocationConfig holds geocoder configuration
type GeolocationConfig struct {
	Provider          string
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	CacheTTL          time.Duration
	WarmLocations     []string
	WarmInterval      time.Duration
}

// SourcesConfig holds facility source configuration
type SourcesConfig struct {
	CSVPath          string
	CSVTimeout       time.Duration
	PostgresTimeout  time.Duration
	TypesenseTimeout time.Duration
	PlacesEnabled    bool
	PlacesURL        string
	PlacesAPIKey     string
	PlacesTimeout    time.Duration
	PlacesRate       float64
	MaxRecords       int
}

// SearchConfig holds search engine configuration
type SearchConfig struct {
	DuplicateRadiusMiles float64
	BulkOnlyRoles        []string
	SessionTTL           time.Duration
	SessionCapacity      int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables, after an optional .env file
func Load() (*Config, error) {
	if path := getEnv("ENV_FILE", ".env"); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "healthproassist"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled:    getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "care_facilities"),
		},
		Geolocation: GeolocationConfig{
			Provider:          getEnv("GEOLOCATION_PROVIDER", "static"),
			APIKey:            getEnv("GEOLOCATION_API_KEY", ""),
			BaseURL:           getEnv("GEOLOCATION_BASE_URL", ""),
			RequestsPerSecond: getEnvAsFloat("GEOLOCATION_RPS", 10),
			CacheTTL:          getEnvAsDuration("GEOLOCATION_CACHE_TTL", 30*24*time.Hour),
			WarmLocations:     getEnvAsList("GEOLOCATION_WARM_LOCATIONS", []string{"Phoenix", "Scottsdale", "Tempe", "Mesa", "Tucson"}),
			WarmInterval:      getEnvAsDuration("GEOLOCATION_WARM_INTERVAL", 24*time.Hour),
		},
		Sources: SourcesConfig{
			CSVPath:          getEnv("FACILITY_CSV_PATH", ""),
			CSVTimeout:       getEnvAsDuration("FACILITY_CSV_TIMEOUT", 2*time.Second),
			PostgresTimeout:  getEnvAsDuration("FACILITY_DB_TIMEOUT", 10*time.Second),
			TypesenseTimeout: getEnvAsDuration("FACILITY_TYPESENSE_TIMEOUT", 10*time.Second),
			PlacesEnabled:    getEnvAsBool("PLACES_ENABLED", false),
			PlacesURL:        getEnv("PLACES_URL", ""),
			PlacesAPIKey:     getEnv("PLACES_API_KEY", ""),
			PlacesTimeout:    getEnvAsDuration("PLACES_TIMEOUT", 10*time.Second),
			PlacesRate:       getEnvAsFloat("PLACES_RPS", 5),
			MaxRecords:       getEnvAsInt("FACILITY_MAX_RECORDS", 500),
		},
		Search: SearchConfig{
			DuplicateRadiusMiles: getEnvAsFloat("SEARCH_DUPLICATE_RADIUS_MILES", 0.05),
			BulkOnlyRoles:        getEnvAsList("SEARCH_BULK_ONLY_ROLES", []string{"family", "basic"}),
			SessionTTL:           getEnvAsDuration("SEARCH_SESSION_TTL", 15*time.Minute),
			SessionCapacity:      getEnvAsInt("SEARCH_SESSION_CAPACITY", 10000),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "healthproassist-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the search engine cannot run with
func (c *Config) Validate() error {
	if c.Sources.MaxRecords <= 0 {
		return fmt.Errorf("FACILITY_MAX_RECORDS must be positive, got %d", c.Sources.MaxRecords)
	}
	if c.Search.DuplicateRadiusMiles < 0 {
		return fmt.Errorf("SEARCH_DUPLICATE_RADIUS_MILES must not be negative")
	}
	if c.Sources.PlacesEnabled && c.Sources.PlacesAPIKey == "" {
		return fmt.Errorf("PLACES_API_KEY is required when PLACES_ENABLED is set")
	}
	for name, d := range map[string]time.Duration{
		"FACILITY_CSV_TIMEOUT":       c.Sources.CSVTimeout,
		"FACILITY_DB_TIMEOUT":        c.Sources.PostgresTimeout,
		"FACILITY_TYPESENSE_TIMEOUT": c.Sources.TypesenseTimeout,
		"PLACES_TIMEOUT":             c.Sources.PlacesTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
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
