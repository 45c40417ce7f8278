package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is shared by users and companies
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusBlocked   AccountStatus = "blocked"
)

// IsBlocked reports whether the status forbids authentication
func (s AccountStatus) IsBlocked() bool {
	return s == StatusSuspended || s == StatusBlocked
}

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBlocked:
		return true
	}
	return false
}

// User is a principal: either internal staff or scoped to one company subdomain.
type User struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Email           string        `json:"email" db:"email"`
	PasswordHash    string        `json:"-" db:"password_hash"`
	FirstName       string        `json:"first_name" db:"first_name"`
	LastName        string        `json:"last_name" db:"last_name"`
	IsInternalStaff bool          `json:"is_internal_staff" db:"is_internal_staff"`
	Role            Role          `json:"role" db:"role"`
	CompanyID       *uuid.UUID    `json:"company_id,omitempty" db:"company_id"`
	Subdomain       *string       `json:"subdomain,omitempty" db:"subdomain"`
	CompanyName     *string       `json:"company_name,omitempty" db:"company_name"`
	Status          AccountStatus `json:"status" db:"status"`
	FailedLogins    int           `json:"-" db:"failed_logins"`
	LockedUntil     *time.Time    `json:"-" db:"locked_until"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time    `json:"last_login_at,omitempty" db:"last_login_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// SubdomainValue returns the login subdomain or "" for internal staff
func (u *User) SubdomainValue() string {
	if u.Subdomain == nil {
		return ""
	}
	return *u.Subdomain
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
