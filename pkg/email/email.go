package email

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// InvitationMessage is everything an invitation email needs to render
type InvitationMessage struct {
	Kind        string
	Role        string
	CompanyName string
	InviterName string
	AcceptURL   string
	ExpiresAt   time.Time
}

// EmailService defines the interface for sending emails
type EmailService interface {
	// SendInvitationEmail sends the single-use accept link of an invitation
	SendInvitationEmail(ctx context.Context, to string, msg InvitationMessage) error

	// SendWelcomeEmail greets a principal right after an invitation is accepted
	SendWelcomeEmail(ctx context.Context, to, name, loginURL string) error

	// SendPasswordChangedEmail sends a notification when password is changed
	SendPasswordChangedEmail(ctx context.Context, to, name string) error
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string        // URL of the email relay endpoint
	Timeout   time.Duration // HTTP request timeout
}

// NoopEmailService logs instead of sending. Used when email is disabled.
type NoopEmailService struct {
	logger *zap.Logger
}

func NewNoopEmailService(logger *zap.Logger) *NoopEmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopEmailService{logger: logger}
}

func (s *NoopEmailService) SendInvitationEmail(_ context.Context, to string, msg InvitationMessage) error {
	s.logger.Info("email disabled, invitation not sent",
		zap.String("to", to),
		zap.String("kind", msg.Kind),
		zap.String("accept_url", msg.AcceptURL),
	)
	return nil
}

func (s *NoopEmailService) SendWelcomeEmail(_ context.Context, to, _, _ string) error {
	s.logger.Info("email disabled, welcome not sent", zap.String("to", to))
	return nil
}

func (s *NoopEmailService) SendPasswordChangedEmail(_ context.Context, to, _ string) error {
	s.logger.Info("email disabled, password notice not sent", zap.String("to", to))
	return nil
}
