package tenancy

import (
	"net"
	"regexp"
	"strings"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
)

const (
	localhost = "localhost"
	www       = "www"
)

var labelPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// HostParser classifies hosts without touching the store.
//
// Production shapes (base domain example.com, labels crm/admincrm):
//
//	admincrm.example.com        None(admin)
//	crm.example.com             None(staff)
//	acme.crm.example.com        Tenant("acme")
//
// With DevHosts enabled, localhost, loopback IPs and IP literals on the dev
// port are the staff root, crm.localhost / admincrm.localhost the internal
// roots, and acme.localhost a tenant.
type HostParser struct {
	cfg config.TenancyConfig
}

func NewHostParser(cfg config.TenancyConfig) *HostParser {
	cfg.BaseDomain = strings.ToLower(strings.Trim(cfg.BaseDomain, "."))
	cfg.StaffLabel = strings.ToLower(cfg.StaffLabel)
	cfg.AdminLabel = strings.ToLower(cfg.AdminLabel)
	return &HostParser{cfg: cfg}
}

// Parse is pure and deterministic
func (p *HostParser) Parse(host string) ResolvedContext {
	name, port := splitHostPort(strings.TrimSpace(host))
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		return Invalid(ErrInvalidHost)
	}

	if p.cfg.DevHosts {
		if rc, ok := p.parseDev(name, port); ok {
			return rc
		}
	}

	return p.parseProduction(name)
}

// IsReserved reports whether label can never name a tenant
func (p *HostParser) IsReserved(label string) bool {
	label = strings.ToLower(label)
	return label == p.cfg.StaffLabel || label == p.cfg.AdminLabel || label == www
}

func (p *HostParser) parseProduction(name string) ResolvedContext {
	staffRoot := p.cfg.StaffLabel + "." + p.cfg.BaseDomain

	switch name {
	case p.cfg.AdminLabel + "." + p.cfg.BaseDomain:
		return None(PortalAdmin)
	case staffRoot:
		return None(PortalStaff)
	}

	if label, ok := strings.CutSuffix(name, "."+staffRoot); ok {
		return p.tenantFromLabel(label)
	}

	return Invalid(ErrInvalidHost)
}

func (p *HostParser) parseDev(name, port string) (ResolvedContext, bool) {
	if name == localhost {
		return None(PortalStaff), true
	}

	if ip := net.ParseIP(name); ip != nil {
		if ip.IsLoopback() || (p.cfg.DevPort != "" && port == p.cfg.DevPort) {
			return None(PortalStaff), true
		}
		return Invalid(ErrInvalidHost), true
	}

	label, ok := strings.CutSuffix(name, "."+localhost)
	if !ok {
		return ResolvedContext{}, false
	}

	switch label {
	case p.cfg.StaffLabel:
		return None(PortalStaff), true
	case p.cfg.AdminLabel:
		return None(PortalAdmin), true
	}

	return p.tenantFromLabel(label), true
}

// tenantFromLabel accepts exactly one DNS label that is not reserved
func (p *HostParser) tenantFromLabel(label string) ResolvedContext {
	if !labelPattern.MatchString(label) || p.IsReserved(label) {
		return Invalid(ErrInvalidHost)
	}
	return Tenant(label)
}

// splitHostPort tolerates hosts without a port and bare IPv6 literals
func splitHostPort(host string) (string, string) {
	if name, port, err := net.SplitHostPort(host); err == nil {
		return name, port
	}
	return strings.Trim(host, "[]"), ""
}
