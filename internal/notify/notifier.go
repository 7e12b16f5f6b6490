package notify

import "context"

// ApprovalRequestedEvent 审批请求事件
// 提交成功后按审批人逐一发出,载荷与原审批邮件模板字段一致
type ApprovalRequestedEvent struct {
	CertificateID   string `json:"certificate_id"`
	ApproverName    string `json:"approver_name"`
	ApproverEmail   string `json:"approver_email"`
	RecipientName   string `json:"recipient_name"`
	CertificateType string `json:"certificate_type"`
	CreatorName     string `json:"creator_name"`
	IssueDate       string `json:"issue_date"`
}

// ApprovalResolvedEvent 审批结果事件
// 批准或拒绝后按原审批人列表逐一发出
type ApprovalResolvedEvent struct {
	CertificateID   string `json:"certificate_id"`
	Outcome         string `json:"outcome"`
	ApproverName    string `json:"approver_name"`
	ApproverEmail   string `json:"approver_email"`
	RecipientName   string `json:"recipient_name"`
	CertificateType string `json:"certificate_type"`
}

// OutcomeApproved 和 OutcomeRejected 是审批结果事件的两种结局
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// Notifier 审批通知发射器接口
// 投递机制与重试在外部实现,工作流引擎只负责发出事件
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, event *ApprovalRequestedEvent) error
	NotifyApprovalResolved(ctx context.Context, event *ApprovalResolvedEvent) error
}

// Multi 组合多个通知器,逐一调用并返回第一个错误
type Multi []Notifier

// NotifyApprovalRequested 依次通知所有通知器
func (m Multi) NotifyApprovalRequested(ctx context.Context, event *ApprovalRequestedEvent) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyApprovalRequested(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyApprovalResolved 依次通知所有通知器
func (m Multi) NotifyApprovalResolved(ctx context.Context, event *ApprovalResolvedEvent) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyApprovalResolved(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
