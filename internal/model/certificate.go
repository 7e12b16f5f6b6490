package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// 证书状态
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// DefaultCertificateType 未指定类型时的兜底证书类型
const DefaultCertificateType = "General Certificate"

// Approver 审批人,按邮箱匹配可见性
type Approver struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CertificateModel 待审批证书数据模型
// 拒绝后记录保留在本表中(status=rejected),批准后迁移到 approved_certificates
type CertificateModel struct {
	ID                  string    `gorm:"primaryKey;type:varchar(64)"`
	CertificateType     string    `gorm:"type:varchar(128);not null;index"` // 证书类型标签
	RecipientName       string    `gorm:"type:varchar(255);not null"`
	CreatorName         string    `gorm:"type:varchar(255);not null"` // 发起人(客户端提供,未与认证身份核对)
	IssueDate           string    `gorm:"type:varchar(32);not null"`
	NumberOfSignatories int       `gorm:"type:int;not null"`
	Signatory1Name      string    `gorm:"type:varchar(255);not null"`
	Signatory1Role      string    `gorm:"type:varchar(255);not null"`
	Signatory2Name      string    `gorm:"type:varchar(255)"`
	Signatory2Role      string    `gorm:"type:varchar(255)"`
	Approvers           []byte    `gorm:"type:json;not null"` // 序列化后的审批人列表
	Extra               []byte    `gorm:"type:json"`          // 类型特有字段,引擎不做解析
	ArtifactRef         string    `gorm:"type:varchar(512);not null"` // 证书图片引用
	Status              string    `gorm:"type:varchar(16);not null;index"`
	CreatedAt           time.Time `gorm:"not null;index"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName 指定表名
func (CertificateModel) TableName() string {
	return "pending_certificates"
}

// Validate 验证证书模型
func (cm *CertificateModel) Validate() error {
	if cm.ID == "" {
		return errors.New("certificate ID is required")
	}
	if cm.RecipientName == "" {
		return errors.New("recipient name is required")
	}
	if cm.CreatorName == "" {
		return errors.New("creator name is required")
	}
	if cm.IssueDate == "" {
		return errors.New("issue date is required")
	}
	if cm.ArtifactRef == "" {
		return errors.New("artifact reference is required")
	}
	if cm.Status == "" {
		return errors.New("certificate status is required")
	}
	if len(cm.Approvers) == 0 {
		return errors.New("at least one approver is required")
	}
	return nil
}

// ApproverList 反序列化审批人列表
func (cm *CertificateModel) ApproverList() ([]Approver, error) {
	return DecodeApprovers(cm.Approvers)
}

// HasApproverEmail 判断给定邮箱是否在审批人列表中(忽略大小写)
func (cm *CertificateModel) HasApproverEmail(email string) bool {
	approvers, err := cm.ApproverList()
	if err != nil {
		return false
	}
	for _, a := range approvers {
		if strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

// EncodeApprovers 序列化审批人列表
func EncodeApprovers(approvers []Approver) ([]byte, error) {
	return json.Marshal(approvers)
}

// DecodeApprovers 反序列化审批人列表
func DecodeApprovers(data []byte) ([]Approver, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var approvers []Approver
	if err := json.Unmarshal(data, &approvers); err != nil {
		return nil, err
	}
	return approvers, nil
}
