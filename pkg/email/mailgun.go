package email

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// MailgunEmailService implements EmailService using the Mailgun API
type MailgunEmailService struct {
	mg     *mailgun.MailgunImpl
	config *EmailConfig
	logger *zap.Logger
}

// NewMailgunEmailService sends from domain. A non-empty config.BaseURL replaces
// the Mailgun API base, e.g. for the EU region.
func NewMailgunEmailService(config *EmailConfig, domain string, logger *zap.Logger) (*MailgunEmailService, error) {
	if config.APIKey == "" || domain == "" {
		return nil, fmt.Errorf("mailgun API key and domain are required")
	}
	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	mg := mailgun.NewMailgun(domain, config.APIKey)
	if config.BaseURL != "" {
		mg.SetAPIBase(config.BaseURL)
	}

	return &MailgunEmailService{mg: mg, config: config, logger: logger}, nil
}

func (s *MailgunEmailService) send(ctx context.Context, kind, to, subject, htmlContent string) error {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	from := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	msg := s.mg.NewMessage(from, subject, "", to)
	msg.SetHtml(htmlContent)

	_, id, err := s.mg.Send(ctx, msg)
	if err != nil {
		s.logger.Error("failed to send email", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	s.logger.Info("email sent", zap.String("kind", kind), zap.String("to", to), zap.String("id", id))
	return nil
}

func (s *MailgunEmailService) SendInvitationEmail(ctx context.Context, to string, msg InvitationMessage) error {
	return s.send(ctx, "invitation", to, InvitationSubject(msg), InvitationEmailTemplate(msg))
}

func (s *MailgunEmailService) SendWelcomeEmail(ctx context.Context, to, name, loginURL string) error {
	return s.send(ctx, "welcome", to, "Welcome to Metatech CRM", WelcomeEmailTemplate(name, loginURL))
}

func (s *MailgunEmailService) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	return s.send(ctx, "password_changed", to, "Password Changed Successfully", PasswordChangedEmailTemplate(name))
}
