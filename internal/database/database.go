package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Init 连接数据库并自动迁移
func Init(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := Open(dialector, logLevel)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Open 打开连接，不做迁移
func Open(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logLevel),
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate 自动迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// OpenMemory 内存 sqlite，测试使用
func OpenMemory() (*gorm.DB, error) {
	// 每个连接都是独立的内存库，这里限制为单连接
	db, err := Open(sqlite.Open("file::memory:?_foreign_keys=off"), "error")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newGormLogger(level string) gormLogger.Interface {
	lvl := gormLogger.Silent // 禁用 GORM 的默认日志输出
	switch strings.ToLower(level) {
	case "debug":
		lvl = gormLogger.Info
	case "warn", "warning":
		lvl = gormLogger.Warn
	case "error":
		lvl = gormLogger.Error
	}
	return gormLogger.New(logger.Default(), gormLogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}
