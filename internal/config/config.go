package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	DBDSN       string
	HTTPAddr    string

	// Адрес, по которому шлюз вызывает IPN и возвращает браузер
	PublicBaseURL string
	FrontendURL   string

	MigrationsPath string

	SSLCommerzStoreID       string
	SSLCommerzStorePassword string
	SSLCommerzSandbox       bool
	SSLCommerzVerifySign    bool

	TelegramToken string

	KafkaBrokers []string
	KafkaTopic   string

	CascadeSweepInterval time.Duration
	RatingSweepInterval  time.Duration
	SweepBatchSize       int
}

// ConfigurationError is returned at startup when required settings are missing or malformed.
type ConfigurationError struct {
	Missing []string
	Invalid map[string]string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	for key, reason := range e.Invalid {
		parts = append(parts, fmt.Sprintf("invalid %s: %s", key, reason))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения
func FromEnv() (*Config, error) {
	cfgErr := &ConfigurationError{Invalid: map[string]string{}}

	cfg := &Config{
		Environment:             getEnv("ENV", "development"),
		DBDSN:                   os.Getenv("DB_DSN"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		PublicBaseURL:           strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		FrontendURL:             os.Getenv("FRONTEND_URL"),
		MigrationsPath:          getEnv("MIGRATIONS_PATH", "migrations"),
		SSLCommerzStoreID:       os.Getenv("SSLCOMMERZ_STORE_ID"),
		SSLCommerzStorePassword: os.Getenv("SSLCOMMERZ_STORE_PASSWORD"),
		SSLCommerzSandbox:       getBool("SSLCOMMERZ_SANDBOX", true, cfgErr),
		SSLCommerzVerifySign:    getBool("SSLCOMMERZ_VERIFY_SIGN", true, cfgErr),
		TelegramToken:           os.Getenv("TELEGRAM_TOKEN"),
		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:              getEnv("KAFKA_NOTIFICATIONS_TOPIC", "marketplace.notifications"),
		CascadeSweepInterval:    getDuration("CASCADE_SWEEP_INTERVAL", time.Minute, cfgErr),
		RatingSweepInterval:     getDuration("RATING_SWEEP_INTERVAL", time.Hour, cfgErr),
		SweepBatchSize:          getInt("SWEEP_BATCH_SIZE", 100, cfgErr),
	}

	// Проверяем обязательные поля
	required := []struct{ key, value string }{
		{"DB_DSN", cfg.DBDSN},
		{"PUBLIC_BASE_URL", cfg.PublicBaseURL},
		{"SSLCOMMERZ_STORE_ID", cfg.SSLCommerzStoreID},
		{"SSLCOMMERZ_STORE_PASSWORD", cfg.SSLCommerzStorePassword},
	}
	for _, r := range required {
		if r.value == "" {
			cfgErr.Missing = append(cfgErr.Missing, r.key)
		}
	}

	if cfg.FrontendURL == "" {
		cfg.FrontendURL = cfg.PublicBaseURL
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return nil, cfgErr
	}

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool, cfgErr *ConfigurationError) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		cfgErr.Invalid[key] = "expected a boolean"
		return def
	}
	return b
}

func getInt(key string, def int, cfgErr *ConfigurationError) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		cfgErr.Invalid[key] = "expected a positive integer"
		return def
	}
	return n
}

func getDuration(key string, def time.Duration, cfgErr *ConfigurationError) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		cfgErr.Invalid[key] = "expected a positive duration like 30s or 5m"
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
