package service

import (
	"errors"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrNotFound           = errors.New("resource not found")
	ErrSetupCompleted     = errors.New("product owner already exists")

	ErrEmailTaken         = errors.New("email is already registered")
	ErrSubdomainTaken     = errors.New("subdomain is already taken")
	ErrSubdomainReserved  = errors.New("subdomain is reserved")
	ErrInvalidRole        = errors.New("role is not allowed for this invitation")
	ErrCompanyRequired    = errors.New("company_id is required")
	ErrInvitationInvalid  = errors.New("invitation is invalid or expired")
	ErrInvitationInactive = errors.New("invitation is no longer active")
	ErrSelfStatusChange   = errors.New("cannot change your own status")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidStage       = errors.New("invalid deal stage")
	ErrInvalidAssignee    = errors.New("assignee cannot work on this project")
)

// AccessError is a tenancy refusal enriched with the URL the principal should use instead
type AccessError struct {
	Err             error
	AllowedLoginURL string
}

func (e *AccessError) Error() string { return e.Err.Error() }

func (e *AccessError) Unwrap() error { return e.Err }

// notFound maps a repository miss onto ErrNotFound and passes everything else through
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
