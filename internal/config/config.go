package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	AI        AIConfig
	Scheduler SchedulerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	MaxAttempts            int
	RetryBaseDelay         time.Duration
	TargetDelayMin         time.Duration
	TargetDelayMax         time.Duration
	LowConfidenceThreshold float64
}

type BrowserConfig struct {
	Headless       bool
	CaptureTimeout time.Duration
	SettleWait     time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	DebugDir       string
}

type AIConfig struct {
	UseVision bool
	APIKey    string
	Model     string
	Timeout   time.Duration
}

type SchedulerConfig struct {
	Enabled  bool
	Schedule string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			MaxAttempts:            getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 3),
			RetryBaseDelay:         getDurationOrDefault("SCRAPER_RETRY_BASE_DELAY", 1*time.Second),
			TargetDelayMin:         getDurationOrDefault("SCRAPER_TARGET_DELAY_MIN", 2*time.Second),
			TargetDelayMax:         getDurationOrDefault("SCRAPER_TARGET_DELAY_MAX", 5*time.Second),
			LowConfidenceThreshold: getFloatOrDefault("SCRAPER_LOW_CONFIDENCE_THRESHOLD", 0.5),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			CaptureTimeout: getDurationOrDefault("BROWSER_CAPTURE_TIMEOUT", 30*time.Second),
			SettleWait:     getDurationOrDefault("BROWSER_SETTLE_WAIT", 5*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1024),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-MY,en;q=0.9,ms;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kuala_Lumpur"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-MY"),
			DebugDir:       getEnvOrDefault("BROWSER_DEBUG_DIR", ""),
		},
		AI: AIConfig{
			UseVision: getBoolOrDefault("USE_AI_VISION", true),
			APIKey:    getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:     getEnvOrDefault("GEMINI_MODEL", "gemini-flash-latest"),
			Timeout:   getDurationOrDefault("GEMINI_TIMEOUT", 60*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getBoolOrDefault("SCHEDULER_ENABLED", true),
			Schedule: getEnvOrDefault("SCRAPE_SCHEDULE", "0 8 * * *"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "pricescout"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 10),
			MinConns: getIntOrDefault("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:price_scraped"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Scraper.LowConfidenceThreshold < 0 || c.Scraper.LowConfidenceThreshold > 1 {
		return fmt.Errorf("SCRAPER_LOW_CONFIDENCE_THRESHOLD must be between 0 and 1")
	}

	if c.Scraper.TargetDelayMin > c.Scraper.TargetDelayMax {
		return fmt.Errorf("SCRAPER_TARGET_DELAY_MIN cannot be greater than SCRAPER_TARGET_DELAY_MAX")
	}

	if c.AI.UseVision && c.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when USE_AI_VISION is enabled")
	}

	if c.Scheduler.Enabled && c.Scheduler.Schedule == "" {
		return fmt.Errorf("SCRAPE_SCHEDULE is required when SCHEDULER_ENABLED is set")
	}

	return nil
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

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
