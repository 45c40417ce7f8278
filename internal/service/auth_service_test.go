package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

var browser = ClientInfo{Host: "crm.example.com", UserAgent: "Mozilla/5.0", IPAddress: "10.0.0.1"}

func login(e *testEnv, rc tenancy.ResolvedContext, addr, password string) (*LoginResponse, error) {
	return e.authSvc.Login(context.Background(), rc, LoginRequest{Email: addr, Password: password}, browser)
}

func TestLoginStaffOnStaffRoot(t *testing.T) {
	e := newTestEnv(t)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)

	resp, err := login(e, e.staffRoot(), "OPS@metatech.test", testPassword)
	require.NoError(t, err)

	assert.Equal(t, tenancy.PortalStaff, resp.Portal)
	assert.Equal(t, staff.ID, resp.User.ID)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.Equal(t, 1, e.sessions.CountByUser(staff.ID))

	claims, err := e.tokens.ValidateAccessToken(resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(tenancy.PortalStaff), claims.Portal)
	require.NotNil(t, claims.SessionID)

	stored, err := e.users.GetByID(context.Background(), staff.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginCompanyOwnerOnOwnHost(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)

	resp, err := login(e, e.tenant(acme), "owner@acme.test", testPassword)
	require.NoError(t, err)
	assert.Equal(t, tenancy.PortalCompany, resp.Portal)
}

func TestLoginRefusesWrongPortalWithAllowedURL(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	globex := e.addCompany(t, "globex", domain.StatusActive)
	owner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffMember)

	tests := []struct {
		name string
		rc   tenancy.ResolvedContext
		addr string
		url  string
	}{
		{"company user on staff root", e.staffRoot(), "owner@acme.test", "https://acme.crm.example.com/login"},
		{"company user on admin root", e.adminRoot(), "owner@acme.test", "https://acme.crm.example.com/login"},
		{"company user on another tenant", e.tenant(globex), "owner@acme.test", "https://acme.crm.example.com/login"},
		{"staff on a tenant", e.tenant(acme), "ops@metatech.test", "https://crm.example.com/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := login(e, tt.rc, tt.addr, testPassword)

			var accessErr *AccessError
			require.True(t, errors.As(err, &accessErr))
			assert.ErrorIs(t, err, tenancy.ErrAccessDenied)
			assert.Equal(t, tt.url, accessErr.AllowedLoginURL)
		})
	}

	assert.Equal(t, 0, e.sessions.CountByUser(owner.ID))
	assert.Equal(t, 0, e.sessions.CountByUser(staff.ID))
}

func TestLoginOnInvalidContext(t *testing.T) {
	e := newTestEnv(t)
	e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)

	_, err := login(e, tenancy.Invalid(tenancy.ErrTenantNotFound), "ops@metatech.test", testPassword)
	assert.ErrorIs(t, err, tenancy.ErrTenantNotFound)
}

func TestLoginChecksCredentialsBeforePortal(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)

	_, err := login(e, e.staffRoot(), "owner@acme.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = login(e, e.staffRoot(), "nobody@acme.test", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	e := newTestEnv(t)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)

	for i := 0; i < 3; i++ {
		_, err := login(e, e.staffRoot(), "ops@metatech.test", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// once the lock has passed the right password works again
	e.authSvc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	stored, err := e.users.GetByID(context.Background(), staff.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLogins)
	assert.Nil(t, stored.LockedUntil)
}

func TestLoginBlockedPrincipalLosesSessions(t *testing.T) {
	e := newTestEnv(t)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	_, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)
	require.Equal(t, 1, e.sessions.CountByUser(staff.ID))

	staff.Status = domain.StatusBlocked
	require.NoError(t, e.users.Update(context.Background(), staff))

	_, err = login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	assert.ErrorIs(t, err, tenancy.ErrAccountBlocked)
	assert.Equal(t, 0, e.sessions.CountByUser(staff.ID))

	marked, err := e.blacklist.IsUserBlacklisted(context.Background(), staff.ID.String(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestLoginSuspendedTenant(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusSuspended)
	e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)

	_, err := login(e, e.tenant(acme), "owner@acme.test", testPassword)
	assert.ErrorIs(t, err, tenancy.ErrTenantBlocked)
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newTestEnv(t)
	e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	resp, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	pair, err := e.authSvc.Refresh(context.Background(), e.staffRoot(), resp.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.Tokens.RefreshToken, pair.RefreshToken)

	// the old refresh token is gone with the rotation
	_, err = e.authSvc.Refresh(context.Background(), e.staffRoot(), resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.authSvc.Refresh(context.Background(), e.staffRoot(), pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshOnOtherPortalIsRefused(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	resp, err := login(e, e.tenant(acme), "owner@acme.test", testPassword)
	require.NoError(t, err)

	_, err = e.authSvc.Refresh(context.Background(), e.staffRoot(), resp.Tokens.RefreshToken)
	var accessErr *AccessError
	assert.True(t, errors.As(err, &accessErr))
}

func TestRefreshStaysOnIssuingPortal(t *testing.T) {
	e := newTestEnv(t)
	e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	resp, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	_, err = e.authSvc.Refresh(context.Background(), e.adminRoot(), resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// the refused attempt leaves the session usable on its own portal
	tokens, err := e.authSvc.Refresh(context.Background(), e.staffRoot(), resp.Tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := e.tokens.ValidateRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "staff", claims.Portal)
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	e := newTestEnv(t)
	e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	resp, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	_, err = e.authSvc.Refresh(context.Background(), e.staffRoot(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.authSvc.Refresh(context.Background(), e.staffRoot(), resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutBlacklistsTokenAndEndsSession(t *testing.T) {
	e := newTestEnv(t)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	resp, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	claims, err := e.tokens.ValidateAccessToken(resp.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, e.authSvc.Logout(context.Background(), claims))

	listed, err := e.blacklist.IsBlacklisted(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, listed)
	assert.Equal(t, 0, e.sessions.CountByUser(staff.ID))

	// a second logout with the same claims is harmless
	assert.NoError(t, e.authSvc.Logout(context.Background(), claims))
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	staff := e.addStaff(t, "ops@metatech.test", domain.RoleStaffAdmin)
	_, err := login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	require.NoError(t, err)

	err = e.authSvc.ChangePassword(context.Background(), staff, ChangePasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "another-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, e.authSvc.ChangePassword(context.Background(), staff, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "another-password",
	}))
	assert.Equal(t, 0, e.sessions.CountByUser(staff.ID))
	assert.Equal(t, []string{"ops@metatech.test"}, e.mailer.passwords)

	_, err = login(e, e.staffRoot(), "ops@metatech.test", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = login(e, e.staffRoot(), "ops@metatech.test", "another-password")
	assert.NoError(t, err)
}
