package service

import (
	"context"
	"sync"

	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/email"
)

// email

type recordingMailer struct {
	mu          sync.Mutex
	invitations []email.InvitationMessage
	invitedTo   []string
	welcomed    []string
	passwords   []string
	err         error
}

func (r *recordingMailer) SendInvitationEmail(_ context.Context, to string, msg email.InvitationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invitations = append(r.invitations, msg)
	r.invitedTo = append(r.invitedTo, to)
	return r.err
}

func (r *recordingMailer) SendWelcomeEmail(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomed = append(r.welcomed, to)
	return r.err
}

func (r *recordingMailer) SendPasswordChangedEmail(_ context.Context, to, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords = append(r.passwords, to)
	return r.err
}
