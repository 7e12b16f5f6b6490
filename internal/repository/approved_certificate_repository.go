package repository

import (
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"gorm.io/gorm"
)

// ApprovedCertificateRepository 已批准证书仓储接口
type ApprovedCertificateRepository interface {
	List() ([]*model.ApprovedCertificateModel, error)
	FindByID(id string) (*model.ApprovedCertificateModel, error)
	Delete(id string) error
}

// approvedCertificateRepository 已批准证书仓储实现
type approvedCertificateRepository struct {
	db *gorm.DB
}

// NewApprovedCertificateRepository 创建已批准证书仓储
func NewApprovedCertificateRepository(db *gorm.DB) ApprovedCertificateRepository {
	return &approvedCertificateRepository{db: db}
}

// List 查找所有已批准证书
func (r *approvedCertificateRepository) List() ([]*model.ApprovedCertificateModel, error) {
	var certs []*model.ApprovedCertificateModel
	err := r.db.Order("approved_at DESC").Find(&certs).Error
	return certs, err
}

// FindByID 根据 ID 查找已批准证书
func (r *approvedCertificateRepository) FindByID(id string) (*model.ApprovedCertificateModel, error) {
	var cert model.ApprovedCertificateModel
	if err := r.db.Where("id = ?", id).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

// Delete 删除已批准证书
func (r *approvedCertificateRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&model.ApprovedCertificateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
