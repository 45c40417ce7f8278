// Package policy is the single place that says which role may perform which action.
package policy

import (
	"sort"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

// Action is a resource:verb pair checked by handlers and services
type Action string

const (
	CompaniesManage    Action = "companies:manage"
	StaffInvite        Action = "staff:invite"
	CompanyOwnerInvite Action = "company_owner:invite"
	CompanyUserInvite  Action = "company_user:invite"
	UsersManage        Action = "users:manage"
	ClientsView        Action = "clients:view"
	ClientsManage      Action = "clients:manage"
	DealsView          Action = "deals:view"
	DealsManage        Action = "deals:manage"
	ProjectsView       Action = "projects:view"
	ProjectsManage     Action = "projects:manage"
	TasksManage        Action = "tasks:manage"
	TasksUpdate        Action = "tasks:update"
)

var allActions = []Action{
	CompaniesManage, StaffInvite, CompanyOwnerInvite, CompanyUserInvite, UsersManage,
	ClientsView, ClientsManage, DealsView, DealsManage,
	ProjectsView, ProjectsManage, TasksManage, TasksUpdate,
}

// internalOnly actions are never granted to company roles, whatever the overrides say
var internalOnly = map[Action]bool{
	CompaniesManage:    true,
	StaffInvite:        true,
	CompanyOwnerInvite: true,
	ClientsView:        true,
	ClientsManage:      true,
	DealsView:          true,
	DealsManage:        true,
}

func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// Table maps a role to the set of actions it grants. Absent entries deny.
type Table map[domain.Role]map[Action]bool

func grant(actions ...Action) map[Action]bool {
	m := make(map[Action]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}

// Default returns a fresh copy of the built-in table
func Default() Table {
	pipeline := []Action{ClientsView, ClientsManage, DealsView, DealsManage}
	work := []Action{ProjectsView, ProjectsManage, TasksManage, TasksUpdate}

	return Table{
		domain.RoleProductOwner: grant(append(append([]Action{
			CompaniesManage, CompanyOwnerInvite, StaffInvite, UsersManage,
		}, pipeline...), work...)...),
		domain.RoleStaffAdmin: grant(append(append([]Action{
			StaffInvite, UsersManage,
		}, pipeline...), work...)...),
		domain.RoleStaffManager: grant(append(pipeline, work...)...),
		domain.RoleStaffMember:  grant(ClientsView, DealsView, ProjectsView, TasksUpdate),

		domain.RoleCompanyOwner:  grant(append([]Action{CompanyUserInvite, UsersManage}, work...)...),
		domain.RoleCompanyAdmin:  grant(append([]Action{CompanyUserInvite}, work...)...),
		domain.RoleCompanyMember: grant(ProjectsView, TasksUpdate),
	}
}

// Can reports whether role grants action
func (t Table) Can(role domain.Role, action Action) bool {
	return t[role][action]
}

// Allowed lists the actions granted to role in lexical order
func (t Table) Allowed(role domain.Role) []Action {
	actions := make([]Action, 0, len(t[role]))
	for a, ok := range t[role] {
		if ok {
			actions = append(actions, a)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
