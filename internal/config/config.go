package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Scraper    ScraperConfig
	Browser    BrowserConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type ScraperConfig struct {
	Shop            string
	BaseURL         string
	CatalogURLs     []string
	Fetcher         string // browser or http
	FetchTimeout    time.Duration
	CardPauseMin    time.Duration
	CardPauseMax    time.Duration
	CatalogPauseMin time.Duration
	CatalogPauseMax time.Duration
	MaxProducts     int
	JournalFile     string
	UserAgents      []string
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	RelayInterval  time.Duration
	RelayBatchSize int
	StreamMaxLen   int64
}

// StorageConfig points at an S3 compatible object store (MinIO in the
// default setup).
type StorageConfig struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Enabled      bool
}

type ValidationConfig struct {
	MinTitleLen       int
	MaxTitleLen       int
	MaxPrice          int64
	MaxDescriptionLen int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment. Values from a .env file
// in the working directory are applied first without overriding variables
// that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(getIntOrDefault("SERVER_MAX_BODY_BYTES", 5<<20)),
		},
		Scraper: ScraperConfig{
			Shop:            getEnvOrDefault("SCRAPER_SHOP", "585zolotoy"),
			BaseURL:         getEnvOrDefault("SCRAPER_BASE_URL", "https://www.585zolotoy.ru"),
			CatalogURLs:     getStringSliceOrDefault("SCRAPER_CATALOG_URLS", defaultCatalogURLs()),
			Fetcher:         getEnvOrDefault("SCRAPER_FETCHER", "browser"),
			FetchTimeout:    getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 25*time.Second),
			CardPauseMin:    getDurationOrDefault("SCRAPER_CARD_PAUSE_MIN", 3*time.Second),
			CardPauseMax:    getDurationOrDefault("SCRAPER_CARD_PAUSE_MAX", 6*time.Second),
			CatalogPauseMin: getDurationOrDefault("SCRAPER_CATALOG_PAUSE_MIN", 6*time.Second),
			CatalogPauseMax: getDurationOrDefault("SCRAPER_CATALOG_PAUSE_MAX", 10*time.Second),
			MaxProducts:     getIntOrDefault("SCRAPER_MAX_PRODUCTS", 0),
			JournalFile:     getEnvOrDefault("SCRAPER_JOURNAL_FILE", "scrape_journal.json"),
			UserAgents:      getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:           getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:       getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:             getIntOrDefault("REDIS_DB", 0),
			RelayInterval:  getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
			RelayBatchSize: getIntOrDefault("RELAY_BATCH_SIZE", 100),
			StreamMaxLen:   getInt64OrDefault("REDIS_STREAM_MAX_LEN", 100_000),
		},
		Storage: StorageConfig{
			Endpoint:     getEnvOrDefault("S3_ENDPOINT", "http://localhost:9000"),
			Region:       getEnvOrDefault("S3_REGION", "us-east-1"),
			AccessKey:    getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
			SecretKey:    getEnvOrDefault("S3_SECRET_KEY", "minioadmin"),
			Bucket:       getEnvOrDefault("S3_BUCKET", "jewelry-images"),
			UsePathStyle: getBoolOrDefault("S3_USE_PATH_STYLE", true),
			Enabled:      getBoolOrDefault("S3_ENABLED", true),
		},
		Validation: ValidationConfig{
			MinTitleLen:       getIntOrDefault("VALIDATION_MIN_TITLE_LEN", 3),
			MaxTitleLen:       getIntOrDefault("VALIDATION_MAX_TITLE_LEN", 500),
			MaxPrice:          getInt64OrDefault("VALIDATION_MAX_PRICE", 10_000_000),
			MaxDescriptionLen: getIntOrDefault("VALIDATION_MAX_DESCRIPTION_LEN", 10000),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Scraper.BaseURL); err != nil {
		return fmt.Errorf("SCRAPER_BASE_URL is not a valid URL: %w", err)
	}

	if c.Scraper.Fetcher != "browser" && c.Scraper.Fetcher != "http" {
		return fmt.Errorf("SCRAPER_FETCHER must be browser or http, got %q", c.Scraper.Fetcher)
	}

	if c.Scraper.FetchTimeout <= 0 {
		return fmt.Errorf("SCRAPER_FETCH_TIMEOUT must be positive")
	}

	if c.Scraper.CardPauseMin > c.Scraper.CardPauseMax {
		return fmt.Errorf("SCRAPER_CARD_PAUSE_MIN cannot be greater than SCRAPER_CARD_PAUSE_MAX")
	}

	if c.Scraper.CatalogPauseMin > c.Scraper.CatalogPauseMax {
		return fmt.Errorf("SCRAPER_CATALOG_PAUSE_MIN cannot be greater than SCRAPER_CATALOG_PAUSE_MAX")
	}

	if c.Validation.MinTitleLen < 0 || c.Validation.MinTitleLen > c.Validation.MaxTitleLen {
		return fmt.Errorf("VALIDATION_MIN_TITLE_LEN must be between 0 and VALIDATION_MAX_TITLE_LEN")
	}

	// The cleaner truncates with a three character ellipsis.
	if c.Validation.MaxTitleLen <= 3 || c.Validation.MaxDescriptionLen <= 3 {
		return fmt.Errorf("VALIDATION_MAX_TITLE_LEN and VALIDATION_MAX_DESCRIPTION_LEN must be greater than 3")
	}

	if c.Validation.MaxPrice < 2 {
		return fmt.Errorf("VALIDATION_MAX_PRICE must be at least 2")
	}

	if c.Redis.RelayBatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED is true")
	}

	return nil
}

// DSN returns the postgres connection string for pgx.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(strings.ReplaceAll(value, "_", ""), 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func defaultCatalogURLs() []string {
	return []string{
		"https://www.585zolotoy.ru/catalog/sergi-kresty/",
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
