package database

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/log"
)

var DB *gorm.DB

// startupBackoff 控制启动时等待依赖服务就绪的重试策略。
func startupBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// OpenPostgres 打开 Postgres 连接并等待数据库可用。
func OpenPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = backoff.RetryNotify(sqlDB.Ping, startupBackoff(), func(err error, wait time.Duration) {
		log.Warnf("[Database] Postgres 尚未就绪，%s 后重试: %v", wait, err)
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// InitPostgres 初始化全局 Postgres 连接，失败时退出进程。
func InitPostgres(cfg config.PostgresConfig) {
	db, err := OpenPostgres(cfg)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}
	DB = db
	log.Info("Postgres database connected successfully")
}
