package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTTPAddr string

	// Scrape tuning. A run is strictly sequential across models and
	// sources; these knobs bound how hard each adapter hits its site.
	Sources       string
	SourceDelayMs int
	NavTimeoutSec int
	SettleDelayMs int
	ScrollCount   int
	MaxFragments  int

	ChromeBin string
	LogLevel  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tracker"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tracker123"),
		PostgresDB:       getEnv("POSTGRES_DB", "ev_prices"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),

		Sources:       getEnv("SOURCES", "cars.com,autotrader,cargurus"),
		SourceDelayMs: getEnvInt("SOURCE_DELAY_MS", 100),
		NavTimeoutSec: getEnvInt("NAV_TIMEOUT_SEC", 45),
		SettleDelayMs: getEnvInt("SETTLE_DELAY_MS", 2500),
		ScrollCount:   getEnvInt("SCROLL_COUNT", 2),
		MaxFragments:  getEnvInt("MAX_FRAGMENTS", 30),

		ChromeBin: getEnv("CHROME_BIN", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// NavTimeout is the hard ceiling for one adapter session, navigation and
// extraction included.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// SourceDelay is the pause inserted between adapter invocations.
func (c *Config) SourceDelay() time.Duration {
	return time.Duration(c.SourceDelayMs) * time.Millisecond
}

// SettleDelay is how long to wait after navigation for the page to render.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
