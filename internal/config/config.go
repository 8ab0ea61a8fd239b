package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is shared by the relay server and the chat client. Each binary only
// reads the keys it needs.
type Config struct {
	AppPort  int    `mapstructure:"APP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Relay
	DeepSeekAPIKey      string        `mapstructure:"DEEPSEEK_API_KEY"`
	UpstreamURL         string        `mapstructure:"UPSTREAM_URL"`
	UpstreamIdleTimeout time.Duration `mapstructure:"UPSTREAM_IDLE_TIMEOUT"`
	MaxRequestBytes     int64         `mapstructure:"MAX_REQUEST_BYTES"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`

	// Chat client
	RelayURL     string `mapstructure:"RELAY_URL"`
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetDefault("DEEPSEEK_API_KEY", "")
	viper.SetDefault("UPSTREAM_URL", "https://api.deepseek.com/v1/chat/completions")
	viper.SetDefault("UPSTREAM_IDLE_TIMEOUT", "60s")
	viper.SetDefault("MAX_REQUEST_BYTES", 1<<20)
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)

	viper.SetDefault("RELAY_URL", "http://localhost:8000/api/v1/chat/completions")
	viper.SetDefault("STORE_BACKEND", "sqlite")
	viper.SetDefault("DATABASE_PATH", "./data/chat.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
