// Package tenancy maps a request host to the portal it addresses and decides
// whether a principal may operate there.
//
// Three portals share one deployment:
//
//	admincrm.<base>          product-owner administration
//	crm.<base>               internal staff
//	<subdomain>.crm.<base>   one client company
//
// The outcome of that mapping is a ResolvedContext. It is computed once per
// request by the tenant middleware and passed explicitly to everything
// downstream; nothing in this package keeps per-request state.
package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

var (
	// ErrInvalidHost means the host matches no known portal shape
	ErrInvalidHost = errors.New("invalid host")
	// ErrTenantNotFound means the host named a subdomain no company owns
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrAccessDenied means the principal belongs to another portal
	ErrAccessDenied = errors.New("access denied for this portal")
	// ErrTenantBlocked means the company is suspended or blocked
	ErrTenantBlocked = errors.New("company is suspended or blocked")
	// ErrAccountBlocked means the principal itself is suspended or blocked
	ErrAccountBlocked = errors.New("account is suspended or blocked")
)

// IsNotFound groups the two errors surfaced to clients as 404
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvalidHost) || errors.Is(err, ErrTenantNotFound)
}

// IsBlocked groups the errors that force a logout
func IsBlocked(err error) bool {
	return errors.Is(err, ErrTenantBlocked) || errors.Is(err, ErrAccountBlocked)
}

// Kind of resolution. The zero value is KindInvalid so an unset context never grants access.
type Kind int

const (
	KindInvalid Kind = iota
	KindNone
	KindTenant
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTenant:
		return "tenant"
	default:
		return "invalid"
	}
}

// Portal names the surface a host addresses
type Portal string

const (
	PortalUnknown Portal = ""
	PortalAdmin   Portal = "admin"
	PortalStaff   Portal = "staff"
	PortalCompany Portal = "company"
)

// ResolvedContext is the per-request tenant decision.
//
// KindNone covers both internal roots (admin and staff, see Portal).
// KindTenant carries the lowercase subdomain and, after lookup, the company.
type ResolvedContext struct {
	Kind      Kind
	Portal    Portal
	Subdomain string
	Company   *domain.Company
	err       error
}

// None is the context of an internal root host
func None(portal Portal) ResolvedContext {
	return ResolvedContext{Kind: KindNone, Portal: portal}
}

// Tenant is the context of a company host
func Tenant(subdomain string) ResolvedContext {
	return ResolvedContext{Kind: KindTenant, Portal: PortalCompany, Subdomain: subdomain}
}

// Invalid wraps the reason the host could not be resolved
func Invalid(err error) ResolvedContext {
	if err == nil {
		err = ErrInvalidHost
	}
	return ResolvedContext{Kind: KindInvalid, err: err}
}

// Err is nil unless the context is invalid
func (rc ResolvedContext) Err() error {
	if rc.Kind != KindInvalid {
		return nil
	}
	if rc.err == nil {
		return ErrInvalidHost
	}
	return rc.err
}

func (rc ResolvedContext) IsNone() bool    { return rc.Kind == KindNone }
func (rc ResolvedContext) IsTenant() bool  { return rc.Kind == KindTenant }
func (rc ResolvedContext) IsInvalid() bool { return rc.Kind == KindInvalid }

func (rc ResolvedContext) IsAdminRoot() bool {
	return rc.Kind == KindNone && rc.Portal == PortalAdmin
}

func (rc ResolvedContext) IsStaffRoot() bool {
	return rc.Kind == KindNone && rc.Portal == PortalStaff
}

// CompanyID is nil outside a resolved company host
func (rc ResolvedContext) CompanyID() *uuid.UUID {
	if rc.Kind != KindTenant || rc.Company == nil {
		return nil
	}
	id := rc.Company.ID
	return &id
}

func (rc ResolvedContext) String() string {
	switch rc.Kind {
	case KindNone:
		return fmt.Sprintf("none(%s)", rc.Portal)
	case KindTenant:
		return fmt.Sprintf("tenant(%s)", rc.Subdomain)
	default:
		return fmt.Sprintf("invalid(%v)", rc.Err())
	}
}

// Equal compares the decision, ignoring the loaded company pointer
func (rc ResolvedContext) Equal(other ResolvedContext) bool {
	return rc.Kind == other.Kind &&
		rc.Portal == other.Portal &&
		rc.Subdomain == other.Subdomain &&
		errors.Is(rc.Err(), other.Err()) &&
		errors.Is(other.Err(), rc.Err())
}

type ctxKey struct{}

// WithContext attaches the resolved context to ctx
func WithContext(ctx context.Context, rc ResolvedContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the attached context, or an invalid one when missing
func FromContext(ctx context.Context) ResolvedContext {
	if rc, ok := ctx.Value(ctxKey{}).(ResolvedContext); ok {
		return rc
	}
	return Invalid(ErrInvalidHost)
}
