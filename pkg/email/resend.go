package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendEmailService implements EmailService using Resend
type ResendEmailService struct {
	client *resend.Client
	config *EmailConfig
	logger *zap.Logger
}

func NewResendEmailService(config *EmailConfig, logger *zap.Logger) (*ResendEmailService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return &ResendEmailService{
		client: resend.NewClient(config.APIKey),
		config: config,
		logger: logger,
	}, nil
}

func (s *ResendEmailService) send(ctx context.Context, kind, to, subject, htmlContent string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    htmlContent,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.Error("failed to send email", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	s.logger.Info("email sent", zap.String("kind", kind), zap.String("to", to), zap.String("id", sent.Id))
	return nil
}

func (s *ResendEmailService) SendInvitationEmail(ctx context.Context, to string, msg InvitationMessage) error {
	return s.send(ctx, "invitation", to, InvitationSubject(msg), InvitationEmailTemplate(msg))
}

func (s *ResendEmailService) SendWelcomeEmail(ctx context.Context, to, name, loginURL string) error {
	return s.send(ctx, "welcome", to, "Welcome to Metatech CRM", WelcomeEmailTemplate(name, loginURL))
}

func (s *ResendEmailService) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	return s.send(ctx, "password_changed", to, "Password Changed Successfully", PasswordChangedEmailTemplate(name))
}
