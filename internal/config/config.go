// Package config читает настройки сервера и клиента из .env и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/cache"
	"github.com/UkralStul/commentsync/internal/paging"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
)

type ServerConfig struct {
	Port         string
	Storage      string
	DatabaseURL  string
	JWTSecret    string
	TokenTTL     time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

type ClientConfig struct {
	ServerURL      string
	PageSize       int
	ReplyPageSize  int
	RedisURL       string
	CacheSize      int
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	Debug          bool
}

// DevJWTSecret используется, если JWT_SECRET не задан.
const DevJWTSecret = "commentsync-dev-secret"

func LoadServer() (*ServerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:         getEnv("PORT", "8080"),
		Storage:      getEnv("STORAGE", StorageInMemory),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecret:    getEnv("JWT_SECRET", DevJWTSecret),
		TokenTTL:     getEnvDuration("TOKEN_TTL", 24*time.Hour),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		Debug:        getEnvBool("DEBUG", false),
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек. Вызывается повторно после флагов командной строки.
func (c *ServerConfig) Validate() error {
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q (in-memory or postgres)", c.Storage)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		ServerURL:      getEnv("COMMENTS_SERVER_URL", "http://localhost:8080"),
		PageSize:       getEnvInt("COMMENTS_PAGE_SIZE", paging.DefaultPageSize),
		ReplyPageSize:  getEnvInt("COMMENTS_REPLY_PAGE_SIZE", paging.DefaultReplyPageSize),
		RedisURL:       os.Getenv("REDIS_URL"),
		CacheSize:      getEnvInt("COMMENTS_CACHE_SIZE", cache.DefaultSize),
		CacheTTL:       getEnvDuration("COMMENTS_CACHE_TTL", cache.DefaultTTL),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		Debug:          getEnvBool("DEBUG", false),
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid COMMENTS_SERVER_URL %q, must start with http:// or https://", cfg.ServerURL)
	}
	if cfg.PageSize <= 0 || cfg.ReplyPageSize <= 0 {
		return nil, errors.New("page sizes must be positive")
	}
	return cfg, nil
}

// NewLogger собирает zap-логгер: development-формат в режиме отладки, иначе production.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
