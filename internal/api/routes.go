package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kirifer/ITS-certificate-generator/internal/auth"
	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/Kirifer/ITS-certificate-generator/internal/service"
	"github.com/Kirifer/ITS-certificate-generator/internal/storage"
	"github.com/Kirifer/ITS-certificate-generator/internal/websocket"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config       *config.Config
	DB           *gorm.DB
	Store        storage.Store
	CertService  service.CertificateService
	AuditService service.AuditLogService
	StatsService service.StatisticsService
	Hub          *websocket.Hub
	Validator    *auth.TokenValidator
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	if config.IsProduction(deps.Config) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(ErrorHandlerMiddleware())
	if deps.Config != nil {
		router.Use(CORSMiddleware(&deps.Config.CORS))
	}
	router.Use(RateLimitMiddleware(100, 200))

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Store)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由,审批人用自己的邮箱订阅审批请求
	if deps.Hub != nil {
		router.GET("/ws/approvals", websocket.Handler(deps.Hub, deps.Validator))
	}

	certController := NewCertificateController(deps.CertService, deps.AuditService)
	statsController := NewStatisticsController(deps.StatsService)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(auth.Middleware(deps.Validator))
	{
		certificates := v1.Group("/certificates")
		{
			certificates.POST("", certController.Submit)
			certificates.GET("/pending", certController.ListPending)
			certificates.GET("/types", certController.ListTypes)
			certificates.GET("/approved", certController.ListApproved)
			certificates.GET("/approved/:id", certController.GetApproved)
			certificates.DELETE("/approved/:id", certController.DeleteApproved)
			certificates.GET("/:id", certController.Get)
			certificates.GET("/:id/audit", certController.GetAuditTrail)

			// 审批决策需要审批权限角色
			decisions := certificates.Group("")
			decisions.Use(auth.RequireApprovalAuthority())
			{
				decisions.POST("/:id/approve", certController.Approve)
				decisions.POST("/:id/reject", certController.Reject)
			}
		}

		v1.GET("/artifacts/*ref", certController.GetArtifact)

		statistics := v1.Group("/statistics")
		{
			statistics.GET("", statsController.Overview)
			statistics.GET("/by-status", statsController.ByStatus)
			statistics.GET("/by-type", statsController.ByType)
		}
	}

	return router
}
