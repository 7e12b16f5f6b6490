package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kirifer/ITS-certificate-generator/internal/metrics"
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/Kirifer/ITS-certificate-generator/internal/notify"
	"github.com/Kirifer/ITS-certificate-generator/internal/repository"
	"github.com/Kirifer/ITS-certificate-generator/internal/storage"
)

// CertificateService 证书审批工作流服务接口
type CertificateService interface {
	Submit(ctx context.Context, req *SubmitRequest) (*model.CertificateModel, error)
	Get(ctx context.Context, id string) (*model.CertificateModel, error)
	ListPendingForApprover(ctx context.Context, email string) ([]*model.CertificateModel, error)
	Approve(ctx context.Context, id string, signedImage []byte) (*model.ApprovedCertificateModel, error)
	Reject(ctx context.Context, id string) (*model.CertificateModel, error)
	ListApproved(ctx context.Context) ([]*model.ApprovedCertificateModel, error)
	GetApproved(ctx context.Context, id string) (*model.ApprovedCertificateModel, error)
	DeleteApproved(ctx context.Context, id string) error
	GetArtifact(ctx context.Context, ref string) (*storage.Artifact, error)
}

// SubmitRequest 证书提交请求
type SubmitRequest struct {
	CertificateType     string
	RecipientName       string
	CreatorName         string
	IssueDate           string
	NumberOfSignatories int
	Signatory1Name      string
	Signatory1Role      string
	Signatory2Name      string
	Signatory2Role      string
	Approvers           []model.Approver
	Extra               json.RawMessage
	Image               []byte
}

// certificateService 证书审批工作流服务实现
type certificateService struct {
	certRepo     repository.CertificateRepository
	approvedRepo repository.ApprovedCertificateRepository
	store        storage.Store
	notifier     notify.Notifier
	auditSvc     AuditLogService
	retainOrig   bool
}

// NewCertificateService 创建证书审批工作流服务
// retainOriginal 控制批准后是否保留未签名的原始证书图片
func NewCertificateService(
	certRepo repository.CertificateRepository,
	approvedRepo repository.ApprovedCertificateRepository,
	store storage.Store,
	notifier notify.Notifier,
	auditSvc AuditLogService,
	retainOriginal bool,
) CertificateService {
	return &certificateService{
		certRepo:     certRepo,
		approvedRepo: approvedRepo,
		store:        store,
		notifier:     notifier,
		auditSvc:     auditSvc,
		retainOrig:   retainOriginal,
	}
}

// validateSubmit 校验提交请求,按字段顺序返回第一个错误
func validateSubmit(req *SubmitRequest) error {
	if strings.TrimSpace(req.RecipientName) == "" {
		return NewValidationError("recipientName", "recipient name is required")
	}
	if strings.TrimSpace(req.CreatorName) == "" {
		return NewValidationError("creatorName", "creator name is required")
	}
	if strings.TrimSpace(req.IssueDate) == "" {
		return NewValidationError("issueDate", "issue date is required")
	}
	if req.NumberOfSignatories < 1 || req.NumberOfSignatories > 2 {
		return NewValidationError("numberOfSignatories", "number of signatories must be 1 or 2")
	}
	if strings.TrimSpace(req.Signatory1Name) == "" {
		return NewValidationError("signatory1Name", "signatory 1 name is required")
	}
	if strings.TrimSpace(req.Signatory1Role) == "" {
		return NewValidationError("signatory1Role", "signatory 1 role is required")
	}
	if len(req.Image) == 0 {
		return NewValidationError("certificatePng", "certificate image is required")
	}
	if req.NumberOfSignatories == 2 {
		if strings.TrimSpace(req.Signatory2Name) == "" {
			return NewValidationError("signatory2Name", "signatory 2 name is required")
		}
		if strings.TrimSpace(req.Signatory2Role) == "" {
			return NewValidationError("signatory2Role", "signatory 2 role is required")
		}
	}
	if len(req.Approvers) == 0 {
		return NewValidationError("approvers", "at least one approver is required")
	}
	for i, a := range req.Approvers {
		if strings.TrimSpace(a.Name) == "" {
			return NewValidationError("approvers", "approver name is required at position "+strconv.Itoa(i+1))
		}
		if strings.TrimSpace(a.Email) == "" {
			return NewValidationError("approvers", "approver email is required at position "+strconv.Itoa(i+1))
		}
	}
	return nil
}

// Submit 提交证书进入审批流
// 先持久化图片制品,再落库;落库失败时尽力清理已写入的制品
func (s *certificateService) Submit(ctx context.Context, req *SubmitRequest) (*model.CertificateModel, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	certType := strings.TrimSpace(req.CertificateType)
	if certType == "" {
		certType = model.DefaultCertificateType
	}

	ref, err := s.store.Put(ctx, storage.NewKey("pending"), &storage.Artifact{
		Data:        req.Image,
		ContentType: "image/png",
	})
	metrics.RecordArtifactOperation("put", err)
	if err != nil {
		return nil, &StorageError{Operation: "put", Err: err}
	}

	approversJSON, err := model.EncodeApprovers(req.Approvers)
	if err != nil {
		return nil, err
	}

	cert := &model.CertificateModel{
		ID:                  uuid.New().String(),
		CertificateType:     certType,
		RecipientName:       strings.TrimSpace(req.RecipientName),
		CreatorName:         strings.TrimSpace(req.CreatorName),
		IssueDate:           strings.TrimSpace(req.IssueDate),
		NumberOfSignatories: req.NumberOfSignatories,
		Signatory1Name:      strings.TrimSpace(req.Signatory1Name),
		Signatory1Role:      strings.TrimSpace(req.Signatory1Role),
		Signatory2Name:      strings.TrimSpace(req.Signatory2Name),
		Signatory2Role:      strings.TrimSpace(req.Signatory2Role),
		Approvers:           approversJSON,
		Extra:               req.Extra,
		ArtifactRef:         ref,
		Status:              model.StatusPending,
	}

	if err := s.certRepo.Create(cert); err != nil {
		// 落库失败,回收刚写入的制品
		if delErr := s.store.Delete(ctx, ref); delErr != nil {
			logrus.WithError(delErr).WithField("ref", ref).Warn("清理孤儿制品失败")
		}
		return nil, err
	}

	metrics.RecordCertificateSubmitted()
	s.audit(ctx, "submit", "certificate", cert.ID, map[string]string{
		"recipient_name":   cert.RecipientName,
		"certificate_type": cert.CertificateType,
	})
	s.notifyApprovers(cert, req.Approvers)

	return cert, nil
}

// notifyApprovers 异步向所有审批人发出审批请求通知
// 通知失败只记录日志,不影响提交结果
func (s *certificateService) notifyApprovers(cert *model.CertificateModel, approvers []model.Approver) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx := context.Background()
		for _, approver := range approvers {
			event := &notify.ApprovalRequestedEvent{
				CertificateID:   cert.ID,
				ApproverName:    approver.Name,
				ApproverEmail:   approver.Email,
				RecipientName:   cert.RecipientName,
				CertificateType: cert.CertificateType,
				CreatorName:     cert.CreatorName,
				IssueDate:       cert.IssueDate,
			}
			err := s.notifier.NotifyApprovalRequested(ctx, event)
			metrics.RecordNotification(err)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"certificate_id": cert.ID,
					"approver_email": approver.Email,
				}).Warn("审批通知发送失败")
			}
		}
	}()
}

// notifyResolution 异步向所有审批人发出审批结果通知
// 通知失败只记录日志,不影响审批结果
func (s *certificateService) notifyResolution(outcome, certID, recipientName, certificateType string, approversJSON []byte) {
	if s.notifier == nil {
		return
	}
	approvers, err := model.DecodeApprovers(approversJSON)
	if err != nil {
		logrus.WithError(err).WithField("certificate_id", certID).Warn("审批人列表解析失败")
		return
	}
	go func() {
		ctx := context.Background()
		for _, approver := range approvers {
			event := &notify.ApprovalResolvedEvent{
				CertificateID:   certID,
				Outcome:         outcome,
				ApproverName:    approver.Name,
				ApproverEmail:   approver.Email,
				RecipientName:   recipientName,
				CertificateType: certificateType,
			}
			err := s.notifier.NotifyApprovalResolved(ctx, event)
			metrics.RecordNotification(err)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"certificate_id": certID,
					"approver_email": approver.Email,
					"outcome":        outcome,
				}).Warn("审批结果通知发送失败")
			}
		}
	}()
}

// Get 按 ID 查询证书(含已拒绝的记录)
func (s *certificateService) Get(ctx context.Context, id string) (*model.CertificateModel, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "certificate ID is required")
	}
	cert, err := s.certRepo.FindByID(id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return cert, nil
}

// ListPendingForApprover 查询指定审批人可见的待审批证书
func (s *certificateService) ListPendingForApprover(ctx context.Context, email string) ([]*model.CertificateModel, error) {
	if strings.TrimSpace(email) == "" {
		return nil, NewValidationError("email", "approver email is required")
	}
	certs, err := s.certRepo.ListPendingForApprover(email)
	if err != nil {
		return nil, err
	}
	return certs, nil
}

// Approve 批准证书并迁移到已批准集合
// 签名后的图片先写入存储;迁移失败(记录不存在或已处理)时回收该制品
func (s *certificateService) Approve(ctx context.Context, id string, signedImage []byte) (*model.ApprovedCertificateModel, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "certificate ID is required")
	}
	if len(signedImage) == 0 {
		return nil, NewValidationError("certificatePng", "signed certificate image is required")
	}

	signedRef, err := s.store.Put(ctx, storage.NewKey("approved"), &storage.Artifact{
		Data:        signedImage,
		ContentType: "image/png",
	})
	metrics.RecordArtifactOperation("put", err)
	if err != nil {
		return nil, &StorageError{Operation: "put", Err: err}
	}

	approved, originalRef, err := s.certRepo.MoveToApproved(id, signedRef)
	if err != nil {
		if delErr := s.store.Delete(ctx, signedRef); delErr != nil {
			logrus.WithError(delErr).WithField("ref", signedRef).Warn("清理孤儿制品失败")
		}
		return nil, mapRepositoryError(err)
	}

	if !s.retainOrig && originalRef != "" && originalRef != signedRef {
		// 清理未签名的原始图片,失败不影响批准结果
		if delErr := s.store.Delete(ctx, originalRef); delErr != nil {
			logrus.WithError(delErr).WithField("ref", originalRef).Warn("清理原始制品失败")
		}
	}

	metrics.RecordApproval("approve")
	s.audit(ctx, "approve", "certificate", id, map[string]string{
		"approved_id": approved.ID,
	})
	s.notifyResolution(notify.OutcomeApproved, id, approved.RecipientName, approved.CertificateType, approved.Approvers)

	return approved, nil
}

// Reject 拒绝证书,记录保留在待审批表中且状态终结
func (s *certificateService) Reject(ctx context.Context, id string) (*model.CertificateModel, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "certificate ID is required")
	}

	if err := s.certRepo.MarkRejected(id); err != nil {
		return nil, mapRepositoryError(err)
	}

	metrics.RecordApproval("reject")
	s.audit(ctx, "reject", "certificate", id, nil)

	cert, err := s.certRepo.FindByID(id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	s.notifyResolution(notify.OutcomeRejected, id, cert.RecipientName, cert.CertificateType, cert.Approvers)
	return cert, nil
}

// ListApproved 查询所有已批准证书
func (s *certificateService) ListApproved(ctx context.Context) ([]*model.ApprovedCertificateModel, error) {
	return s.approvedRepo.List()
}

// GetApproved 按 ID 查询已批准证书
func (s *certificateService) GetApproved(ctx context.Context, id string) (*model.ApprovedCertificateModel, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "certificate ID is required")
	}
	cert, err := s.approvedRepo.FindByID(id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return cert, nil
}

// DeleteApproved 删除已批准证书,并尽力清理其签名图片
func (s *certificateService) DeleteApproved(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("id", "certificate ID is required")
	}

	cert, err := s.approvedRepo.FindByID(id)
	if err != nil {
		return mapRepositoryError(err)
	}

	if err := s.approvedRepo.Delete(id); err != nil {
		return mapRepositoryError(err)
	}

	if cert.ArtifactRef != "" {
		if delErr := s.store.Delete(context.Background(), cert.ArtifactRef); delErr != nil {
			logrus.WithError(delErr).WithField("ref", cert.ArtifactRef).Warn("清理已删除证书的制品失败")
		}
	}

	s.audit(ctx, "delete", "approved_certificate", id, nil)
	return nil
}

// GetArtifact 读取证书图片制品
func (s *certificateService) GetArtifact(ctx context.Context, ref string) (*storage.Artifact, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, NewValidationError("ref", "artifact reference is required")
	}
	artifact, err := s.store.Get(ctx, ref)
	metrics.RecordArtifactOperation("get", err)
	if err != nil {
		return nil, ErrNotFound
	}
	return artifact, nil
}

// audit 记录审计日志,失败只打日志
func (s *certificateService) audit(ctx context.Context, action, resourceType, resourceID string, details interface{}) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.RecordAction(ctx, action, resourceType, resourceID, details); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource_id": resourceID,
		}).Warn("审计日志写入失败")
	}
}
