package repository

import (
	"errors"
	"time"

	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"gorm.io/gorm"
)

// ErrEmptyApproverEmail 审批人邮箱为空
var ErrEmptyApproverEmail = errors.New("approver email is required")

// CertificateRepository 待审批证书仓储接口
// 拒绝的记录保留在本表中,批准的记录通过 MoveToApproved 迁移走
type CertificateRepository interface {
	Create(cert *model.CertificateModel) error
	FindByID(id string) (*model.CertificateModel, error)
	FindPendingByID(id string) (*model.CertificateModel, error)
	ListPendingForApprover(email string) ([]*model.CertificateModel, error)
	MarkRejected(id string) error
	MoveToApproved(id string, signedArtifactRef string) (*model.ApprovedCertificateModel, string, error)
}

// certificateRepository 待审批证书仓储实现
type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository 创建待审批证书仓储
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

// Create 保存新的待审批证书
func (r *certificateRepository) Create(cert *model.CertificateModel) error {
	return r.db.Create(cert).Error
}

// FindByID 根据 ID 查找证书(含已拒绝)
func (r *certificateRepository) FindByID(id string) (*model.CertificateModel, error) {
	var cert model.CertificateModel
	if err := r.db.Where("id = ?", id).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindPendingByID 根据 ID 查找待审批状态的证书
func (r *certificateRepository) FindPendingByID(id string) (*model.CertificateModel, error) {
	var cert model.CertificateModel
	if err := r.db.Where("id = ? AND status = ?", id, model.StatusPending).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListPendingForApprover 查找指定审批人可见的待审批证书
// 仅返回 status=pending 且审批人列表包含该邮箱(忽略大小写)的记录
func (r *certificateRepository) ListPendingForApprover(email string) ([]*model.CertificateModel, error) {
	if email == "" {
		return nil, ErrEmptyApproverEmail
	}

	var pending []*model.CertificateModel
	if err := r.db.Where("status = ?", model.StatusPending).
		Order("created_at DESC").
		Find(&pending).Error; err != nil {
		return nil, err
	}

	// 审批人列表序列化存储,邮箱匹配在应用侧完成
	matched := make([]*model.CertificateModel, 0, len(pending))
	for _, cert := range pending {
		if cert.HasApproverEmail(email) {
			matched = append(matched, cert)
		}
	}
	return matched, nil
}

// MarkRejected 将待审批证书置为已拒绝
// 条件更新,仅在记录仍为 pending 时生效;并发下后到者得到 ErrRecordNotFound
func (r *certificateRepository) MarkRejected(id string) error {
	result := r.db.Model(&model.CertificateModel{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":     model.StatusRejected,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MoveToApproved 批准迁移: 在单个事务内插入已批准记录并删除待审批记录
// 待审批记录的删除是条件删除,并发的第二个批准/拒绝者会拿到 ErrRecordNotFound
// 返回已批准记录和原始(未签名)图片引用,供调用方按配置清理
func (r *certificateRepository) MoveToApproved(id string, signedArtifactRef string) (*model.ApprovedCertificateModel, string, error) {
	var approved *model.ApprovedCertificateModel
	var originalRef string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var pending model.CertificateModel
		if err := tx.Where("id = ? AND status = ?", id, model.StatusPending).First(&pending).Error; err != nil {
			return err
		}

		result := tx.Where("id = ? AND status = ?", id, model.StatusPending).
			Delete(&model.CertificateModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		approved = model.ApprovedFromPending(&pending, signedArtifactRef)
		if err := tx.Create(approved).Error; err != nil {
			return err
		}

		originalRef = pending.ArtifactRef
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return approved, originalRef, nil
}
