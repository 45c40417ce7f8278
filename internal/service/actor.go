package service

import (
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

// Actor is an authenticated principal and the context it is acting under.
// Handlers build it once per request after the access check passed.
type Actor struct {
	User    *domain.User
	Context tenancy.ResolvedContext
}

// Guard answers permission questions against one policy table
type Guard struct {
	table policy.Table
}

func NewGuard(table policy.Table) *Guard {
	if table == nil {
		table = policy.Default()
	}
	return &Guard{table: table}
}

func (g *Guard) Can(a Actor, action policy.Action) bool {
	return a.User != nil && g.table.Can(a.User.Role, action)
}

// Require returns ErrForbidden unless the actor's role grants action
func (g *Guard) Require(a Actor, action policy.Action) error {
	if !g.Can(a, action) {
		return ErrForbidden
	}
	return nil
}

func (g *Guard) Allowed(role domain.Role) []policy.Action {
	return g.table.Allowed(role)
}
