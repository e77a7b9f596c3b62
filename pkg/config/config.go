package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Typesense  TypesenseConfig
	Simulation SimulationConfig
	Directory  DirectoryConfig
	OpenAI     OpenAIConfig
	MLService  MLServiceConfig
	Twilio     TwilioConfig
	OTEL       OTELConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	UpstreamTimeout time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration. An empty URL disables the
// search index and the in-memory matcher is used instead.
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// SimulationConfig controls the queue simulator and the seed roster.
type SimulationConfig struct {
	Interval   time.Duration
	Seed       uint64
	RosterPath string
	Timezone   string
}

// DirectoryConfig holds the Google Places settings used to augment the roster.
type DirectoryConfig struct {
	APIKey    string
	BaseURL   string
	RadiusM   int
	PerCity   int
	CacheTTL  time.Duration
	RateLimit float64
}

// OpenAIConfig holds chat completion configuration. Health and education
// conversations use separate keys.
type OpenAIConfig struct {
	HealthAPIKey    string
	EducationAPIKey string
	Model           string
	BaseURL         string
	MaxTokens       int
}

// MLServiceConfig points at the prediction service.
type MLServiceConfig struct {
	URL  string
	Port int
}

// TwilioConfig holds SMS gateway credentials.
type TwilioConfig struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
	FromNumber   string
	BaseURL      string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level       string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 5000)),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", ""),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "hospitals"),
		},
		Simulation: SimulationConfig{
			Interval:   getEnvAsDuration("SIM_INTERVAL", 10*time.Second),
			Seed:       uint64(getEnvAsInt("SIM_SEED", 0)),
			RosterPath: getEnv("SEED_ROSTER_PATH", ""),
			Timezone:   getEnv("SIM_TIMEZONE", "Local"),
		},
		Directory: DirectoryConfig{
			APIKey:    getEnv("GOOGLE_MAPS_API_KEY", getEnv("VITE_GOOGLE_MAPS_API_KEY", "")),
			BaseURL:   getEnv("GOOGLE_PLACES_URL", "https://maps.googleapis.com/maps/api/place/nearbysearch/json"),
			RadiusM:   getEnvAsInt("DIRECTORY_RADIUS_M", 10000),
			PerCity:   getEnvAsInt("DIRECTORY_PER_CITY", 5),
			CacheTTL:  getEnvAsDuration("DIRECTORY_CACHE_TTL", 24*time.Hour),
			RateLimit: getEnvAsFloat("DIRECTORY_RATE_LIMIT", 5),
		},
		OpenAI: OpenAIConfig{
			HealthAPIKey:    getEnv("HEALTH_OPENAI_API_KEY", getEnv("OPENAI_API_KEY", "")),
			EducationAPIKey: getEnv("EDU_OPENAI_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:           getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			MaxTokens:       getEnvAsInt("OPENAI_MAX_TOKENS", 500),
		},
		MLService: MLServiceConfig{
			URL:  getEnv("ML_SERVICE_URL", "http://localhost:8000"),
			Port: getEnvAsInt("ML_SERVICE_PORT", 8000),
		},
		Twilio: TwilioConfig{
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			APIKeySID:    getEnv("TWILIO_API_KEY_SID", ""),
			APIKeySecret: getEnv("TWILIO_API_KEY_SECRET", ""),
			FromNumber:   getEnv("TWILIO_PHONE_NUMBER", ""),
			BaseURL:      getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medqueue-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", getEnv("OTEL_ENDPOINT", "")),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Simulation.Interval <= 0 {
		return fmt.Errorf("SIM_INTERVAL must be positive, got %s", c.Simulation.Interval)
	}
	if c.Server.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.Server.UpstreamTimeout)
	}
	if c.Directory.PerCity < 0 {
		return fmt.Errorf("DIRECTORY_PER_CITY must not be negative")
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DirectoryEnabled reports whether the configured key looks like a Google API key.
func (c *DirectoryConfig) DirectoryEnabled() bool {
	return strings.HasPrefix(c.APIKey, "AIza")
}

// Configured reports whether SMS credentials are complete.
func (c *TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.APIKeySID != "" && c.APIKeySecret != "" && c.FromNumber != ""
}

// Location resolves the simulator timezone, falling back to the process zone.
func (c *SimulationConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
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
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
