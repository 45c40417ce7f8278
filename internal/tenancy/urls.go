package tenancy

import (
	"net/url"
	"strings"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

// URLBuilder renders canonical portal URLs for messages and emails
type URLBuilder struct {
	scheme string
	port   string
	base   string
	staff  string
	admin  string
}

func NewURLBuilder(cfg config.TenancyConfig) *URLBuilder {
	scheme := cfg.PublicScheme
	if scheme == "" {
		scheme = "https"
	}
	return &URLBuilder{
		scheme: scheme,
		port:   cfg.PublicPort,
		base:   strings.ToLower(strings.Trim(cfg.BaseDomain, ".")),
		staff:  strings.ToLower(cfg.StaffLabel),
		admin:  strings.ToLower(cfg.AdminLabel),
	}
}

func (b *URLBuilder) StaffHost() string {
	return b.staff + "." + b.base
}

func (b *URLBuilder) AdminHost() string {
	return b.admin + "." + b.base
}

func (b *URLBuilder) CompanyHost(subdomain string) string {
	return strings.ToLower(subdomain) + "." + b.StaffHost()
}

// URL joins host and path, adding the public port when configured
func (b *URLBuilder) URL(host, path string, query url.Values) string {
	if b.port != "" {
		host = host + ":" + b.port
	}
	u := url.URL{Scheme: b.scheme, Host: host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// LoginURL is the login page of the portal the principal belongs to,
// or "" when the principal has no portal.
func (b *URLBuilder) LoginURL(p *domain.User) string {
	if p == nil {
		return ""
	}
	if p.IsInternalStaff {
		return b.URL(b.StaffHost(), "/login", nil)
	}
	if sub := p.SubdomainValue(); sub != "" {
		return b.URL(b.CompanyHost(sub), "/login", nil)
	}
	return ""
}

// InvitationURL points to the host that must accept the invitation
func (b *URLBuilder) InvitationURL(kind domain.InvitationKind, company *domain.Company, token string) string {
	host := b.StaffHost()
	if kind != domain.InvitationKindStaff && company != nil {
		host = b.CompanyHost(company.Subdomain)
	}
	return b.URL(host, "/invitations/accept", url.Values{"token": {token}})
}
