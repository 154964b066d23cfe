package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ping := func() error {
		return RDB.Ping(context.Background()).Err()
	}
	err := backoff.RetryNotify(ping, startupBackoff(), func(err error, wait time.Duration) {
		log.Warnf("[Database] Redis 尚未就绪，%s 后重试: %v", wait, err)
	})
	if err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
