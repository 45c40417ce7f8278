package tenancy

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

// Resolution outcomes, used as metric labels
const (
	OutcomeNone           = "none"
	OutcomeTenant         = "tenant"
	OutcomeInvalidHost    = "invalid_host"
	OutcomeTenantNotFound = "tenant_not_found"
	OutcomeLookupFailed   = "lookup_failed"
)

// Decision results, used as metric labels
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
	DecisionBlocked = "blocked"
	DecisionInvalid = "invalid"
)

// CompanyLookup is the read-only slice of the company store the resolver needs
type CompanyLookup interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Company, error)
}

// Recorder receives resolution and access outcomes
type Recorder interface {
	RecordResolution(outcome string)
	RecordDecision(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordResolution(string) {}
func (nopRecorder) RecordDecision(string)   {}

// Resolver turns a host into a ResolvedContext with at most one store read
type Resolver struct {
	parser    *HostParser
	companies CompanyLookup
	logger    *zap.Logger
	recorder  Recorder
}

func NewResolver(parser *HostParser, companies CompanyLookup, logger *zap.Logger, recorder Recorder) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{
		parser:    parser,
		companies: companies,
		logger:    logger,
		recorder:  recorder,
	}
}

// Parser exposes the host parser for callers that only need the shape
func (r *Resolver) Parser() *HostParser {
	return r.parser
}

// Resolve never returns a tenant it could not confirm in the store.
// A failing store yields Invalid(ErrTenantNotFound), the same answer a
// missing company gets.
func (r *Resolver) Resolve(ctx context.Context, host string) ResolvedContext {
	rc := r.parser.Parse(host)

	switch rc.Kind {
	case KindNone:
		r.recorder.RecordResolution(OutcomeNone)
		return rc
	case KindInvalid:
		r.recorder.RecordResolution(OutcomeInvalidHost)
		return rc
	}

	company, err := r.companies.GetBySubdomain(ctx, rc.Subdomain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.recorder.RecordResolution(OutcomeTenantNotFound)
			return Invalid(ErrTenantNotFound)
		}

		r.logger.Error("tenant lookup failed",
			zap.String("host", host),
			zap.String("subdomain", rc.Subdomain),
			zap.Error(err),
		)
		r.recorder.RecordResolution(OutcomeLookupFailed)
		return Invalid(ErrTenantNotFound)
	}

	if company == nil || company.Subdomain != rc.Subdomain {
		r.recorder.RecordResolution(OutcomeTenantNotFound)
		return Invalid(ErrTenantNotFound)
	}

	rc.Company = company
	r.recorder.RecordResolution(OutcomeTenant)
	return rc
}
