package resource

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"media-transcode-service/pkg/assert"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
)

var (
	mysqlResourceOnce sync.Once
	mysqlSingleton    *MysqlResource
	// migrations 由持久化层注册需要自动迁移的模型
	migrationsMu sync.Mutex
	migrations   []interface{}
)

// RegisterAutoMigrate 注册需要 AutoMigrate 的模型
func RegisterAutoMigrate(models ...interface{}) {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()
	migrations = append(migrations, models...)
}

// MysqlResource MySQL 连接资源
type MysqlResource struct {
	db *gorm.DB
}

// DefaultMysqlResource 获取 MySQL 资源单例
func DefaultMysqlResource() *MysqlResource {
	assert.NotCircular()
	mysqlResourceOnce.Do(func() {
		mysqlSingleton = &MysqlResource{}
	})
	assert.NotNil(mysqlSingleton)
	return mysqlSingleton
}

// MustOpen 建立连接；database.driver 不是 mysql 时跳过
func (r *MysqlResource) MustOpen() {
	if r.db != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MysqlResource")
	}
	if cfg.Database.Driver != "mysql" {
		return
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect mysql: %v", err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get sql.DB: %v", err))
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if cfg.Database.AutoMigrate {
		migrationsMu.Lock()
		models := append([]interface{}(nil), migrations...)
		migrationsMu.Unlock()
		if err := db.AutoMigrate(models...); err != nil {
			panic(fmt.Sprintf("auto migrate failed: %v", err))
		}
	}

	r.db = db
	logger.Info("MySQL resource initialized", logger.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})
}

// Close 关闭连接池
func (r *MysqlResource) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// MainDB 主库连接，未启用 mysql 时为 nil
func (r *MysqlResource) MainDB() *gorm.DB {
	return r.db
}

// MySqlResourcePlugin 注册到资源管理器
type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string {
	return "mysql"
}

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMysqlResource()
}
