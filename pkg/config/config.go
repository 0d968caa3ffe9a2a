package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Env      string         `env:"APP_ENV" envDefault:"development"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Gemini   GeminiConfig   `envPrefix:"GEMINI_"`
	Agent    AgentConfig    `envPrefix:"AGENT_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	OTEL     OTELConfig     `envPrefix:"OTEL_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string   `env:"HOST" envDefault:"0.0.0.0"`
	Port           int      `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Database string `env:"NAME" envDefault:"swasthya"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxOpen  int    `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdle  int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// GeminiConfig holds the external embedding and chat model configuration.
// An empty APIKey disables every model-backed feature.
type GeminiConfig struct {
	APIKey         string        `env:"API_KEY"`
	BaseURL        string        `env:"BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ChatModel      string        `env:"CHAT_MODEL" envDefault:"gemini-2.0-flash"`
	EmbeddingModel string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	RateLimitRPM   int           `env:"RATE_LIMIT_RPM" envDefault:"60"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// AgentConfig holds conversational agent limits
type AgentConfig struct {
	MaxToolRounds int           `env:"MAX_TOOL_ROUNDS" envDefault:"5"`
	QueryCacheTTL time.Duration `env:"QUERY_CACHE_TTL" envDefault:"10m"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER"`
	DevMode       bool   `env:"DEV_MODE" envDefault:"false"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"swasthya-hms"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	Endpoint       string `env:"ENDPOINT"`
	Enabled        bool   `env:"ENABLED" envDefault:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Agent.MaxToolRounds <= 0 {
		return nil, fmt.Errorf("AGENT_MAX_TOOL_ROUNDS must be positive, got %d", cfg.Agent.MaxToolRounds)
	}
	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrationURL returns the URL form of the connection string used by golang-migrate
func (c *DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasCredentials reports whether a model API key is configured
func (c *GeminiConfig) HasCredentials() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
