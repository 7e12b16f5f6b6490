package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ApprovedCertificateModel 已批准证书数据模型
// 仅通过批准流转产生,ArtifactRef 指向签名后的最终图片
type ApprovedCertificateModel struct {
	ID                  string    `gorm:"primaryKey;type:varchar(64)"`
	SourceID            string    `gorm:"type:varchar(64);not null;index"` // 来源的待审批记录 ID
	CertificateType     string    `gorm:"type:varchar(128);not null;index"`
	RecipientName       string    `gorm:"type:varchar(255);not null"`
	CreatorName         string    `gorm:"type:varchar(255);not null"`
	IssueDate           string    `gorm:"type:varchar(32);not null"`
	NumberOfSignatories int       `gorm:"type:int;not null"`
	Signatory1Name      string    `gorm:"type:varchar(255);not null"`
	Signatory1Role      string    `gorm:"type:varchar(255);not null"`
	Signatory2Name      string    `gorm:"type:varchar(255)"`
	Signatory2Role      string    `gorm:"type:varchar(255)"`
	Approvers           []byte    `gorm:"type:json;not null"`
	Extra               []byte    `gorm:"type:json"`
	ArtifactRef         string    `gorm:"type:varchar(512);not null"` // 签名后的证书图片引用
	Status              string    `gorm:"type:varchar(16);not null"`  // 恒为 approved
	ApprovedAt          time.Time `gorm:"not null;index"`
	CreatedAt           time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ApprovedCertificateModel) TableName() string {
	return "approved_certificates"
}

// Validate 验证已批准证书模型
func (am *ApprovedCertificateModel) Validate() error {
	if am.ID == "" {
		return errors.New("certificate ID is required")
	}
	if am.SourceID == "" {
		return errors.New("source certificate ID is required")
	}
	if am.ArtifactRef == "" {
		return errors.New("artifact reference is required")
	}
	if am.Status != StatusApproved {
		return errors.New("approved certificate status must be approved")
	}
	return nil
}

// ApprovedFromPending 由待审批记录构造已批准记录
// 描述性字段全部继承,图片引用替换为签名后的制品
func ApprovedFromPending(pending *CertificateModel, signedArtifactRef string) *ApprovedCertificateModel {
	now := time.Now()
	return &ApprovedCertificateModel{
		ID:                  uuid.New().String(),
		SourceID:            pending.ID,
		CertificateType:     pending.CertificateType,
		RecipientName:       pending.RecipientName,
		CreatorName:         pending.CreatorName,
		IssueDate:           pending.IssueDate,
		NumberOfSignatories: pending.NumberOfSignatories,
		Signatory1Name:      pending.Signatory1Name,
		Signatory1Role:      pending.Signatory1Role,
		Signatory2Name:      pending.Signatory2Name,
		Signatory2Role:      pending.Signatory2Role,
		Approvers:           pending.Approvers,
		Extra:               pending.Extra,
		ArtifactRef:         signedArtifactRef,
		Status:              StatusApproved,
		ApprovedAt:          now,
		CreatedAt:           now,
	}
}
