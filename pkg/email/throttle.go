package email

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Throttled caps the outbound rate of another EmailService. Callers block
// until a token is available or ctx ends.
type Throttled struct {
	next    EmailService
	limiter *rate.Limiter
}

func NewThrottled(next EmailService, every time.Duration, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Every(every), burst)}
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit: %w", err)
	}
	return nil
}

func (t *Throttled) SendInvitationEmail(ctx context.Context, to string, msg InvitationMessage) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.SendInvitationEmail(ctx, to, msg)
}

func (t *Throttled) SendWelcomeEmail(ctx context.Context, to, name, loginURL string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.SendWelcomeEmail(ctx, to, name, loginURL)
}

func (t *Throttled) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.SendPasswordChangedEmail(ctx, to, name)
}
