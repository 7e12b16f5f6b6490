package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Kirifer/ITS-certificate-generator/internal/model"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetCertificateStatisticsByStatus(ctx context.Context) ([]*CertificateStatisticsByStatus, error)
	GetCertificateStatisticsByType(ctx context.Context) ([]*CertificateStatisticsByType, error)
	GetApprovalStatistics(ctx context.Context) (*ApprovalStatistics, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// CertificateStatisticsByStatus 按状态统计
type CertificateStatisticsByStatus struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CertificateStatisticsByType 按证书类型统计
type CertificateStatisticsByType struct {
	CertificateType string `json:"certificate_type"`
	Count           int64  `json:"count"`
}

// ApprovalStatistics 审批总体统计
type ApprovalStatistics struct {
	PendingCount  int64   `json:"pending_count"`
	ApprovedCount int64   `json:"approved_count"`
	RejectedCount int64   `json:"rejected_count"`
	TotalDecided  int64   `json:"total_decided"`
	ApprovalRate  float64 `json:"approval_rate"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetCertificateStatisticsByStatus 按状态统计证书
// 已批准的记录在独立表中,这里合并两表的计数
func (s *statisticsService) GetCertificateStatisticsByStatus(ctx context.Context) ([]*CertificateStatisticsByStatus, error) {
	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := []*CertificateStatisticsByStatus{
		{Status: model.StatusPending, Count: counts[model.StatusPending]},
		{Status: model.StatusApproved, Count: counts[model.StatusApproved]},
		{Status: model.StatusRejected, Count: counts[model.StatusRejected]},
	}
	return stats, nil
}

// GetCertificateStatisticsByType 按证书类型统计(含待审批与已批准)
func (s *statisticsService) GetCertificateStatisticsByType(ctx context.Context) ([]*CertificateStatisticsByType, error) {
	merged := map[string]int64{}

	var pendingResults []struct {
		CertificateType string
		Count           int64
	}
	err := s.db.WithContext(ctx).Model(&model.CertificateModel{}).
		Select("certificate_type, COUNT(*) as count").
		Group("certificate_type").
		Scan(&pendingResults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate statistics by type: %w", err)
	}
	for _, r := range pendingResults {
		merged[r.CertificateType] += r.Count
	}

	var approvedResults []struct {
		CertificateType string
		Count           int64
	}
	err = s.db.WithContext(ctx).Model(&model.ApprovedCertificateModel{}).
		Select("certificate_type, COUNT(*) as count").
		Group("certificate_type").
		Scan(&approvedResults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate statistics by type: %w", err)
	}
	for _, r := range approvedResults {
		merged[r.CertificateType] += r.Count
	}

	stats := make([]*CertificateStatisticsByType, 0, len(merged))
	for certType, count := range merged {
		stats = append(stats, &CertificateStatisticsByType{
			CertificateType: certType,
			Count:           count,
		})
	}
	return stats, nil
}

// GetApprovalStatistics 审批总体统计
func (s *statisticsService) GetApprovalStatistics(ctx context.Context) (*ApprovalStatistics, error) {
	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ApprovalStatistics{
		PendingCount:  counts[model.StatusPending],
		ApprovedCount: counts[model.StatusApproved],
		RejectedCount: counts[model.StatusRejected],
	}
	stats.TotalDecided = stats.ApprovedCount + stats.RejectedCount
	if stats.TotalDecided > 0 {
		stats.ApprovalRate = float64(stats.ApprovedCount) / float64(stats.TotalDecided)
	}
	return stats, nil
}

// CountByStatus 按状态计数,供统计接口与指标收集共用
func (s *statisticsService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		model.StatusPending:  0,
		model.StatusApproved: 0,
		model.StatusRejected: 0,
	}

	var pendingResults []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&model.CertificateModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&pendingResults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count certificates by status: %w", err)
	}
	for _, r := range pendingResults {
		counts[r.Status] = r.Count
	}

	var approvedCount int64
	err = s.db.WithContext(ctx).Model(&model.ApprovedCertificateModel{}).Count(&approvedCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count approved certificates: %w", err)
	}
	counts[model.StatusApproved] = approvedCount

	return counts, nil
}
