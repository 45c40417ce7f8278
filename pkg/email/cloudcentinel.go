package email

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// CloudCentinelEmailService implements EmailService by posting typed
// messages to the CloudCentinel relay, which owns the templates.
type CloudCentinelEmailService struct {
	client *resty.Client
	logger *zap.Logger
}

// CloudCentinelEmailRequest represents the request body for CloudCentinel email service
type CloudCentinelEmailRequest struct {
	Type        string `json:"type"` // invitation, welcome, password_changed
	To          string `json:"to"`
	Name        string `json:"name,omitempty"`
	Subject     string `json:"subject,omitempty"`
	URL         string `json:"url,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        string `json:"role,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	HTML        string `json:"html,omitempty"`
}

// CloudCentinelEmailResponse represents the response from CloudCentinel email service
type CloudCentinelEmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewCloudCentinelEmailService(config *EmailConfig, logger *zap.Logger) (*CloudCentinelEmailService, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("email service URL is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	return &CloudCentinelEmailService{client: client, logger: logger}, nil
}

func (s *CloudCentinelEmailService) sendEmail(ctx context.Context, req *CloudCentinelEmailRequest) error {
	var result CloudCentinelEmailResponse
	var failure CloudCentinelEmailResponse

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("")
	if err != nil {
		s.logger.Error("email relay call failed", zap.String("type", req.Type), zap.String("to", req.To), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", req.Type, err)
	}

	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = resp.String()
		}
		s.logger.Error("email relay rejected message",
			zap.String("type", req.Type),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", msg),
		)
		return fmt.Errorf("email service returned status %d: %s", resp.StatusCode(), msg)
	}

	if !result.Success {
		return fmt.Errorf("email service returned success=false: %s", result.Error)
	}

	s.logger.Info("email sent", zap.String("type", req.Type), zap.String("to", req.To))
	return nil
}

func (s *CloudCentinelEmailService) SendInvitationEmail(ctx context.Context, to string, msg InvitationMessage) error {
	return s.sendEmail(ctx, &CloudCentinelEmailRequest{
		Type:        "invitation",
		To:          to,
		Subject:     InvitationSubject(msg),
		URL:         msg.AcceptURL,
		CompanyName: msg.CompanyName,
		Role:        msg.Role,
		ExpiresAt:   msg.ExpiresAt.UTC().Format(time.RFC3339),
		HTML:        InvitationEmailTemplate(msg),
	})
}

func (s *CloudCentinelEmailService) SendWelcomeEmail(ctx context.Context, to, name, loginURL string) error {
	return s.sendEmail(ctx, &CloudCentinelEmailRequest{
		Type: "welcome",
		To:   to,
		Name: name,
		URL:  loginURL,
	})
}

func (s *CloudCentinelEmailService) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	return s.sendEmail(ctx, &CloudCentinelEmailRequest{
		Type: "password_changed",
		To:   to,
		Name: name,
	})
}
