package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	MarketData MarketData `mapstructure:"marketdata"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MarketData holds the configuration for external price and rate APIs and
// the caching/backfill policy around them.
type MarketData struct {
	CryptoBaseURL         string  `mapstructure:"crypto_base_url"`
	StockBaseURL          string  `mapstructure:"stock_base_url"`
	RatesBaseURL          string  `mapstructure:"rates_base_url"`
	RateLimit             float64 `mapstructure:"rate_limit"`
	RateLimitBurst        int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	RatesCacheMinutes     int     `mapstructure:"rates_cache_minutes"`
	PriceCacheSeconds     int     `mapstructure:"price_cache_seconds"`
	RefreshSchedule       string  `mapstructure:"refresh_schedule"`
	BackfillThrottleHours int     `mapstructure:"backfill_throttle_hours"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "fintrack.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("marketdata.rate_limit", 5) // requests per second
	viper.SetDefault("marketdata.rate_limit_burst", 3)
	viper.SetDefault("marketdata.timeout_seconds", 10)
	viper.SetDefault("marketdata.rates_cache_minutes", 30)
	viper.SetDefault("marketdata.price_cache_seconds", 60)
	viper.SetDefault("marketdata.refresh_schedule", "@every 10m")
	viper.SetDefault("marketdata.backfill_throttle_hours", 6)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
