package notify

import (
	"context"
	"fmt"

	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridNotifier 通过 SendGrid 发送审批请求邮件
type SendGridNotifier struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSendGridNotifier 创建 SendGrid 通知器
func NewSendGridNotifier(cfg config.NotifyConfig) (*SendGridNotifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}, nil
}

// NotifyApprovalRequested 发送审批请求邮件
func (n *SendGridNotifier) NotifyApprovalRequested(ctx context.Context, event *ApprovalRequestedEvent) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(event.ApproverName, event.ApproverEmail)
	subject := fmt.Sprintf("Certificate approval requested: %s", event.CertificateType)

	plainText := fmt.Sprintf(
		"Hi %s,\n\n%s has requested your approval for a %q certificate for %s (issue date %s).\n\nPlease review it in your pending queue.\n",
		event.ApproverName, event.CreatorName, event.CertificateType, event.RecipientName, event.IssueDate,
	)
	htmlContent := fmt.Sprintf(
		"<p>Hi %s,</p><p><strong>%s</strong> has requested your approval for a <strong>%s</strong> certificate for <strong>%s</strong> (issue date %s).</p><p>Please review it in your pending queue.</p>",
		event.ApproverName, event.CreatorName, event.CertificateType, event.RecipientName, event.IssueDate,
	)

	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send approval email to %s: %w", event.ApproverEmail, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected approval email to %s: status %d", event.ApproverEmail, resp.StatusCode)
	}
	return nil
}

// NotifyApprovalResolved 发送审批结果邮件
func (n *SendGridNotifier) NotifyApprovalResolved(ctx context.Context, event *ApprovalResolvedEvent) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(event.ApproverName, event.ApproverEmail)
	subject := fmt.Sprintf("Certificate %s: %s", event.Outcome, event.CertificateType)

	plainText := fmt.Sprintf(
		"Hi %s,\n\nThe %q certificate for %s has been %s. No further action is needed.\n",
		event.ApproverName, event.CertificateType, event.RecipientName, event.Outcome,
	)
	htmlContent := fmt.Sprintf(
		"<p>Hi %s,</p><p>The <strong>%s</strong> certificate for <strong>%s</strong> has been <strong>%s</strong>. No further action is needed.</p>",
		event.ApproverName, event.CertificateType, event.RecipientName, event.Outcome,
	)

	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send resolution email to %s: %w", event.ApproverEmail, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected resolution email to %s: status %d", event.ApproverEmail, resp.StatusCode)
	}
	return nil
}
