package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Mongo      MongoConfig
	Audit      AuditDBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Query      QueryConfig
	SelfHosted bool
}

// MongoConfig holds document store connection settings.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    int
}

// AuditDBConfig holds PostgreSQL settings for the audit log.
type AuditDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis settings for the policy cache.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds settings for verifying caller identity tokens. The service
// never issues tokens; it only consumes them.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT verification secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RatePerSec   float64
	RateBurst    int
}

// QueryConfig holds query-shaping settings for the data access layer.
type QueryConfig struct {
	MaxLimit       int
	DefaultLimit   int
	PolicyCacheTTL time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	mongoTimeout, err := getEnvDuration("DATAGATE_MONGO_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	mongoPool, err := getEnvInt("DATAGATE_MONGO_MAX_POOL", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	auditPort, err := getEnvInt("DATAGATE_AUDIT_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	auditMaxConns, err := getEnvInt("DATAGATE_AUDIT_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("DATAGATE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("DATAGATE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("DATAGATE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ratePerSec, err := getEnvFloat("DATAGATE_SERVER_RATE_PER_SEC", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("DATAGATE_SERVER_RATE_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxLimit, err := getEnvInt("DATAGATE_QUERY_MAX_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	defaultLimit, err := getEnvInt("DATAGATE_QUERY_DEFAULT_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cacheTTL, err := getEnvDuration("DATAGATE_POLICY_CACHE_TTL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("DATAGATE_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("DATAGATE_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Mongo: MongoConfig{
			URI:            getEnv("DATAGATE_MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("DATAGATE_MONGO_DATABASE", "datagate_dev"),
			ConnectTimeout: mongoTimeout,
			MaxPoolSize:    mongoPool,
		},
		Audit: AuditDBConfig{
			Host:     getEnv("DATAGATE_AUDIT_DB_HOST", "localhost"),
			Port:     auditPort,
			User:     getEnv("DATAGATE_AUDIT_DB_USER", "datagate"),
			Password: getEnv("DATAGATE_AUDIT_DB_PASSWORD", ""),
			DBName:   getEnv("DATAGATE_AUDIT_DB_NAME", "datagate_audit_dev"),
			SSLMode:  getEnv("DATAGATE_AUDIT_DB_SSLMODE", "disable"),
			MaxConns: auditMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("DATAGATE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("DATAGATE_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("DATAGATE_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("DATAGATE_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			RatePerSec:   ratePerSec,
			RateBurst:    rateBurst,
		},
		Query: QueryConfig{
			MaxLimit:       maxLimit,
			DefaultLimit:   defaultLimit,
			PolicyCacheTTL: cacheTTL,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("DATAGATE_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("DATAGATE_JWT_SECRET must be at least 32 characters")
	}

	if c.Audit.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("DATAGATE_AUDIT_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	if c.Mongo.URI == "" {
		return errors.New("DATAGATE_MONGO_URI is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("DATAGATE_MONGO_DATABASE is required")
	}
	if c.Mongo.MaxPoolSize < 1 {
		return fmt.Errorf("DATAGATE_MONGO_MAX_POOL must be >= 1, got %d", c.Mongo.MaxPoolSize)
	}
	if c.Audit.Port < 1 || c.Audit.Port > 65535 {
		return fmt.Errorf("DATAGATE_AUDIT_DB_PORT must be 1-65535, got %d", c.Audit.Port)
	}
	if c.Audit.MaxConns < 1 {
		return fmt.Errorf("DATAGATE_AUDIT_DB_MAX_CONNS must be >= 1, got %d", c.Audit.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("DATAGATE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("DATAGATE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RatePerSec <= 0 {
		return fmt.Errorf("DATAGATE_SERVER_RATE_PER_SEC must be positive, got %g", c.Server.RatePerSec)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("DATAGATE_SERVER_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Query.MaxLimit < 1 {
		return fmt.Errorf("DATAGATE_QUERY_MAX_LIMIT must be >= 1, got %d", c.Query.MaxLimit)
	}
	if c.Query.DefaultLimit < 1 || c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("DATAGATE_QUERY_DEFAULT_LIMIT must be in [1, %d], got %d", c.Query.MaxLimit, c.Query.DefaultLimit)
	}
	if c.Query.PolicyCacheTTL < 0 {
		return fmt.Errorf("DATAGATE_POLICY_CACHE_TTL must not be negative, got %s", c.Query.PolicyCacheTTL)
	}

	return nil
}

// DSN returns the PostgreSQL connection string for the audit database.
func (c *AuditDBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
