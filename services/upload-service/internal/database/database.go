package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"terminal-terrace/database"
	"terminal-terrace/upload-service/config"
	"terminal-terrace/upload-service/internal/model"
)

const serviceName = "upload-service"

var (
	PostgresDB *gorm.DB
	RedisDB    *database.RedisClient
)

// InitDatabase 按配置初始化 PostgreSQL 和 Redis，未启用的跳过
func InitDatabase() error {
	if config.Conf.Database.Enabled {
		if err := initPostgres(config.Conf.Database); err != nil {
			return err
		}
	}
	if config.Conf.Redis.Enabled {
		if err := initRedis(config.Conf.Redis); err != nil {
			return err
		}
	}
	return nil
}

func initPostgres(databaseConf config.DatabaseConfig) error {
	var err error
	PostgresDB, err = database.InitPostgres(
		&database.PostgresConfig{
			ServiceName:     serviceName,
			Username:        databaseConf.Username,
			Password:        databaseConf.Password,
			Host:            databaseConf.Host,
			Port:            databaseConf.Port,
			Database:        databaseConf.Database,
			SSLMode:         databaseConf.SSLMode,
			LogLevel:        databaseConf.LogLevel,
			MaxIdleConns:    databaseConf.MaxIdleConns,
			MaxOpenConns:    databaseConf.MaxOpenConns,
			ConnMaxLifetime: time.Duration(databaseConf.MaxLifetime) * time.Second,
		},
	)
	if err != nil {
		return err
	}

	// 初始化数据库表
	if err := model.InitTable(PostgresDB); err != nil {
		return fmt.Errorf("初始化数据库表失败: %w", err)
	}
	return nil
}

func initRedis(redisConf config.RedisConfig) error {
	var err error
	RedisDB, err = database.InitRedis(
		&database.RedisConfig{
			ServiceName: serviceName,
			Host:        redisConf.Host,
			Port:        redisConf.Port,
			Password:    redisConf.Password,
			DB:          redisConf.DB,
			PoolSize:    redisConf.PoolSize,
		},
	)
	return err
}

// Close 关闭已建立的连接
func Close() {
	if PostgresDB != nil {
		if sqlDB, err := PostgresDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if RedisDB != nil {
		_ = RedisDB.Close()
	}
}
