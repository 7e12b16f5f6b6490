package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier 仅记录日志的通知器,用于开发环境和未配置邮件投递的部署
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

// NotifyApprovalRequested 记录审批请求事件
func (n *LogNotifier) NotifyApprovalRequested(ctx context.Context, event *ApprovalRequestedEvent) error {
	n.logger.WithFields(logrus.Fields{
		"certificate_id":   event.CertificateID,
		"approver_email":   event.ApproverEmail,
		"recipient_name":   event.RecipientName,
		"certificate_type": event.CertificateType,
		"creator_name":     event.CreatorName,
	}).Info("approval requested")
	return nil
}

// NotifyApprovalResolved 记录审批结果事件
func (n *LogNotifier) NotifyApprovalResolved(ctx context.Context, event *ApprovalResolvedEvent) error {
	n.logger.WithFields(logrus.Fields{
		"certificate_id":   event.CertificateID,
		"outcome":          event.Outcome,
		"approver_email":   event.ApproverEmail,
		"recipient_name":   event.RecipientName,
		"certificate_type": event.CertificateType,
	}).Info("approval resolved")
	return nil
}
