package container

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Kirifer/ITS-certificate-generator/internal/auth"
	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/Kirifer/ITS-certificate-generator/internal/database"
	"github.com/Kirifer/ITS-certificate-generator/internal/metrics"
	"github.com/Kirifer/ITS-certificate-generator/internal/notify"
	"github.com/Kirifer/ITS-certificate-generator/internal/repository"
	"github.com/Kirifer/ITS-certificate-generator/internal/service"
	"github.com/Kirifer/ITS-certificate-generator/internal/storage"
	"github.com/Kirifer/ITS-certificate-generator/internal/websocket"
)

// Container 依赖注入容器
// 管理数据库、制品存储、通知器和各层服务的装配与生命周期
type Container struct {
	db           *gorm.DB
	store        storage.Store
	hub          *websocket.Hub
	validator    *auth.TokenValidator
	certService  service.CertificateService
	auditService service.AuditLogService
	statsService service.StatisticsService
	collector    *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化制品存储
	store, err := newStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	// 3. 初始化 WebSocket Hub,审批人实时收到审批请求
	hub := websocket.NewHub()

	// 4. 初始化通知器,Hub 始终参与广播
	notifier, err := newNotifier(cfg.Notify, hub)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	// 5. 初始化令牌校验器(认证关闭时为 nil)
	var validator *auth.TokenValidator
	if cfg.Auth.Enabled {
		validator = auth.NewTokenValidator(cfg.Auth.JWTSecret)
	}

	// 6. 装配仓储与服务
	certRepo := repository.NewCertificateRepository(db)
	approvedRepo := repository.NewApprovedCertificateRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	auditService := service.NewAuditLogService(auditRepo)
	certService := service.NewCertificateService(
		certRepo, approvedRepo, store, notifier, auditService,
		cfg.Workflow.RetainOriginalArtifact,
	)
	statsService := service.NewStatisticsService(db)

	// 7. 启动指标收集器
	collector := metrics.NewCollector(db, statsService.CountByStatus, 30*time.Second)
	collector.Start()

	return &Container{
		db:           db,
		store:        store,
		hub:          hub,
		validator:    validator,
		certService:  certService,
		auditService: auditService,
		statsService: statsService,
		collector:    collector,
	}, nil
}

// newStore 根据配置选择制品存储后端
func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(cfg)
	case "local", "":
		return storage.NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// newNotifier 根据配置装配通知器,WebSocket Hub 始终参与
func newNotifier(cfg config.NotifyConfig, hub *websocket.Hub) (notify.Notifier, error) {
	notifiers := notify.Multi{hub}

	switch cfg.Backend {
	case "sendgrid":
		sg, err := notify.NewSendGridNotifier(cfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sg)
	case "log", "":
		notifiers = append(notifiers, notify.NewLogNotifier(nil))
	default:
		return nil, fmt.Errorf("unknown notify backend: %s", cfg.Backend)
	}

	return notifiers, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Store 获取制品存储
func (c *Container) Store() storage.Store {
	return c.store
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Validator 获取令牌校验器,认证关闭时为 nil
func (c *Container) Validator() *auth.TokenValidator {
	return c.validator
}

// CertificateService 获取证书审批服务
func (c *Container) CertificateService() service.CertificateService {
	return c.certService
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditService
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statsService
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
