package database

import (
	"context"
	"log"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

const blacklistPrefix = "token_blacklist:"

// InitRedis connects to Redis when REDIS_ADDR is set. Redis is optional:
// without it token revocation is not enforced and realtime fan-out stays
// local to this instance.
func InitRedis() {
	if config.AppConfig.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, running without Redis")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Token revocation and cross-instance realtime are disabled.", err)
		_ = client.Close()
		return
	}

	Redis = client
	log.Println("Connected to Redis successfully")
}

// IsTokenBlacklisted reports whether a token id was revoked via logout
func IsTokenBlacklisted(jti string) bool {
	if Redis == nil || jti == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := Redis.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false
	}
	return n > 0
}
