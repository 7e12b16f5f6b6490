package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Kirifer/ITS-certificate-generator/internal/auth"
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/Kirifer/ITS-certificate-generator/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, action string, resourceType string, resourceID string, details interface{}) error
	GetByResource(ctx context.Context, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
// 操作人身份与请求信息从 context 中取,缺失时记为 anonymous
func (s *auditLogService) RecordAction(
	ctx context.Context,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}

	actorID := "anonymous"
	actorEmail := ""
	if actor := auth.ActorFromContext(ctx); actor != nil {
		if actor.ID != "" {
			actorID = actor.ID
		}
		actorEmail = actor.Email
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		ActorID:      actorID,
		ActorEmail:   actorEmail,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    GetRequestID(ctx),
		IP:           GetClientIP(ctx),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(auditLog)
}

// GetByResource 查询某个资源的审计轨迹
func (s *auditLogService) GetByResource(ctx context.Context, resourceID string) ([]*model.AuditLogModel, error) {
	if resourceID == "" {
		return nil, NewValidationError("resource_id", "resource ID is required")
	}
	return s.auditRepo.FindByResourceID(resourceID)
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value("request_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	if v := ctx.Value("ip"); v != nil {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return ""
}
