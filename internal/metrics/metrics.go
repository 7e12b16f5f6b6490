package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 证书提交数
	certificatesSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "certificates_submitted_total",
			Help: "Total number of certificates submitted for approval",
		},
	)

	// 审批操作数
	approvalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_approvals_total",
			Help: "Total number of approval decisions",
		},
		[]string{"action"}, // approve, reject
	)

	// 制品存储操作数
	artifactOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_operations_total",
			Help: "Total number of artifact store operations",
		},
		[]string{"operation", "result"},
	)

	// 通知投递数
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of approval notifications emitted",
		},
		[]string{"result"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 证书状态分布
	certificatesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "certificates_by_status",
			Help: "Number of certificates by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(certificatesSubmittedTotal)
	prometheus.MustRegister(approvalsTotal)
	prometheus.MustRegister(artifactOperationsTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(certificatesByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordCertificateSubmitted 记录证书提交
func RecordCertificateSubmitted() {
	certificatesSubmittedTotal.Inc()
}

// RecordApproval 记录审批决策
func RecordApproval(action string) {
	approvalsTotal.WithLabelValues(action).Inc()
}

// RecordArtifactOperation 记录制品存储操作
func RecordArtifactOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	artifactOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordNotification 记录通知投递结果
func RecordNotification(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateCertificatesByStatus 更新证书状态分布指标
func UpdateCertificatesByStatus(status string, count float64) {
	certificatesByStatus.WithLabelValues(status).Set(count)
}
