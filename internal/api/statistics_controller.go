package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Kirifer/ITS-certificate-generator/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{statsService: statsService}
}

// Overview 审批总体统计
func (c *StatisticsController) Overview(ctx *gin.Context) {
	stats, err := c.statsService.GetApprovalStatistics(ctx.Request.Context())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// ByStatus 按状态统计
func (c *StatisticsController) ByStatus(ctx *gin.Context) {
	stats, err := c.statsService.GetCertificateStatisticsByStatus(ctx.Request.Context())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// ByType 按证书类型统计
func (c *StatisticsController) ByType(ctx *gin.Context) {
	stats, err := c.statsService.GetCertificateStatisticsByType(ctx.Request.Context())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}
