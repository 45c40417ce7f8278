package tenancy

import (
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

// Verifier decides whether an already loaded principal may act under a
// resolved context. It performs no I/O.
type Verifier struct {
	urls     *URLBuilder
	recorder Recorder
}

func NewVerifier(urls *URLBuilder, recorder Recorder) *Verifier {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Verifier{urls: urls, recorder: recorder}
}

// Verify is Check reduced to a yes/no answer
func (v *Verifier) Verify(p *domain.User, rc ResolvedContext) bool {
	return v.Check(p, rc) == nil
}

// Check returns nil when access is granted, otherwise one of
// ErrInvalidHost, ErrTenantNotFound, ErrAccessDenied, ErrTenantBlocked or ErrAccountBlocked.
func (v *Verifier) Check(p *domain.User, rc ResolvedContext) error {
	err := check(p, rc)

	switch {
	case err == nil:
		v.recorder.RecordDecision(DecisionAllowed)
	case IsBlocked(err):
		v.recorder.RecordDecision(DecisionBlocked)
	case IsNotFound(err):
		v.recorder.RecordDecision(DecisionInvalid)
	default:
		v.recorder.RecordDecision(DecisionDenied)
	}

	return err
}

// AllowedLoginURL is where the principal should sign in instead
func (v *Verifier) AllowedLoginURL(p *domain.User) string {
	return v.urls.LoginURL(p)
}

func check(p *domain.User, rc ResolvedContext) error {
	switch rc.Kind {
	case KindNone:
		if p == nil || !p.IsInternalStaff {
			return ErrAccessDenied
		}
		if p.Status != domain.StatusActive {
			return ErrAccountBlocked
		}
		return nil

	case KindTenant:
		if p == nil || p.IsInternalStaff || p.SubdomainValue() != rc.Subdomain {
			return ErrAccessDenied
		}
		// a tenant context that skipped the store lookup is not trusted
		if rc.Company == nil || rc.Company.Subdomain != rc.Subdomain {
			return ErrTenantNotFound
		}
		if rc.Company.Status != domain.StatusActive {
			return ErrTenantBlocked
		}
		if p.Status != domain.StatusActive {
			return ErrAccountBlocked
		}
		return nil

	default:
		return rc.Err()
	}
}
