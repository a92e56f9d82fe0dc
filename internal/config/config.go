package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis (token blacklist + realtime fan-out across instances)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Server-side secret the message encryption key is derived from.
	// Changing it makes every sealed body unreadable.
	MessageEncryptionKey string `mapstructure:"MESSAGE_ENCRYPTION_KEY"`

	// Chat tuning
	HistoryPageSize  int `mapstructure:"CHAT_HISTORY_PAGE_SIZE"`
	RealtimeQueueLen int `mapstructure:"CHAT_REALTIME_QUEUE"`
}

var AppConfig *Config

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GO_ENV", "development")
	viper.SetDefault("CHAT_HISTORY_PAGE_SIZE", 30)
	viper.SetDefault("CHAT_REALTIME_QUEUE", 1024)

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "FRONTEND_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "MESSAGE_ENCRYPTION_KEY",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if AppConfig.MessageEncryptionKey == "" {
		log.Fatal("MESSAGE_ENCRYPTION_KEY is required")
	}
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
