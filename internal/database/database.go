package database

import (
	"fmt"
	"time"

	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 MySQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// defaultPoolConfig 根据环境返回连接池默认值
func defaultPoolConfig(production bool) *PoolConfig {
	if production {
		return &PoolConfig{
			MaxIdleConns:    20,
			MaxOpenConns:    200,
			ConnMaxLifetime: 3600, // 1 小时
			ConnMaxIdleTime: 300,  // 5 分钟
		}
	}
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
// driver 由配置决定: mysql(生产)或 sqlite(开发/测试)
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "its-certgen.db"
		}
		dialector = sqlite.Open(path)
	case "mysql", "":
		dialector = mysql.Open(BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := defaultPoolConfig(false)
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接(指数退避)
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	interval := retryInterval
	for attempt := 0; attempt <= maxRetries; attempt++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if attempt < maxRetries {
			logrus.WithError(err).Warnf("database connection failed, retrying in %s (attempt %d/%d)",
				interval, attempt+1, maxRetries)
			time.Sleep(interval)
			interval *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// SQLite 不支持 json 列类型标签,需要手动建表
	dialector := db.Dialector.Name()
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.CertificateModel{},
			&model.ApprovedCertificateModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表(使用 TEXT 替代 json)
func createSQLiteTables(db *gorm.DB) error {
	// 创建 pending_certificates 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_certificates (
			id VARCHAR(64) PRIMARY KEY,
			certificate_type VARCHAR(128) NOT NULL,
			recipient_name VARCHAR(255) NOT NULL,
			creator_name VARCHAR(255) NOT NULL,
			issue_date VARCHAR(32) NOT NULL,
			number_of_signatories INTEGER NOT NULL,
			signatory1_name VARCHAR(255) NOT NULL,
			signatory1_role VARCHAR(255) NOT NULL,
			signatory2_name VARCHAR(255),
			signatory2_role VARCHAR(255),
			approvers TEXT NOT NULL,
			extra TEXT,
			artifact_ref VARCHAR(512) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create pending_certificates table: %w", err)
	}

	// 创建 approved_certificates 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approved_certificates (
			id VARCHAR(64) PRIMARY KEY,
			source_id VARCHAR(64) NOT NULL,
			certificate_type VARCHAR(128) NOT NULL,
			recipient_name VARCHAR(255) NOT NULL,
			creator_name VARCHAR(255) NOT NULL,
			issue_date VARCHAR(32) NOT NULL,
			number_of_signatories INTEGER NOT NULL,
			signatory1_name VARCHAR(255) NOT NULL,
			signatory1_role VARCHAR(255) NOT NULL,
			signatory2_name VARCHAR(255),
			signatory2_role VARCHAR(255),
			approvers TEXT NOT NULL,
			extra TEXT,
			artifact_ref VARCHAR(512) NOT NULL,
			status VARCHAR(16) NOT NULL,
			approved_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approved_certificates table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			actor_id VARCHAR(64) NOT NULL,
			actor_email VARCHAR(255),
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	// 创建索引
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_pending_certificates_status ON pending_certificates(status)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_certificates_type ON pending_certificates(certificate_type)`,
		`CREATE INDEX IF NOT EXISTS idx_approved_certificates_source ON approved_certificates(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_id)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接是否健康
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}
