package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the site.
type Config struct {
	Port         string
	Env          string
	DatabasePath string

	GitHubProfileFile string
	GitHubUsername    string

	WidgetPrimaryColor   string
	WidgetSecondaryColor string
	WidgetTheme          string
	WidgetIdleTTL        time.Duration

	RateLimitPerMinute int
	AdminToken         string
}

// Load reads configuration from the environment, loading .env first if it
// exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/portfolio.db"),
		GitHubProfileFile:    os.Getenv("GITHUB_PROFILE_FILE"),
		GitHubUsername:       os.Getenv("GITHUB_USERNAME"),
		WidgetPrimaryColor:   getEnv("WIDGET_PRIMARY_COLOR", "blue"),
		WidgetSecondaryColor: getEnv("WIDGET_SECONDARY_COLOR", "white"),
		WidgetTheme:          getEnv("WIDGET_THEME", "light"),
		WidgetIdleTTL:        getDuration("WIDGET_IDLE_TTL", 30*time.Minute),
		RateLimitPerMinute:   getInt("RATE_LIMIT_PER_MINUTE", 60),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
