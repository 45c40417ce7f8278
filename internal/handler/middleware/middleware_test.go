package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/jwt"
)

var (
	keyOnce sync.Once
	privPEM []byte
	pubPEM  []byte
)

func testTokens(t *testing.T) *jwt.TokenService {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	})

	tokens, err := jwt.NewTokenService(privPEM, pubPEM, "test-key", 15*time.Minute, time.Hour, "crm-test")
	require.NoError(t, err)
	return tokens
}

type companyLookup map[string]*domain.Company

func (l companyLookup) GetBySubdomain(_ context.Context, subdomain string) (*domain.Company, error) {
	if c, ok := l[subdomain]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("company %q: %w", subdomain, repository.ErrNotFound)
}

type userLoader map[uuid.UUID]*domain.User

func (l userLoader) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := l[id]; ok {
		return u, nil
	}
	return nil, service.ErrNotFound
}

type revocations struct {
	tokens map[string]bool
	users  map[string]time.Time
}

func newRevocations() *revocations {
	return &revocations{tokens: map[string]bool{}, users: map[string]time.Time{}}
}

func (r *revocations) IsBlacklisted(_ context.Context, tokenID string) (bool, error) {
	return r.tokens[tokenID], nil
}

func (r *revocations) IsUserBlacklisted(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	mark, ok := r.users[userID]
	return ok && issuedAt.Before(mark), nil
}

type invalidations struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (i *invalidations) InvalidateUser(_ context.Context, userID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, userID)
	return nil
}

type fixture struct {
	tokens   *jwt.TokenService
	resolver *tenancy.Resolver
	verifier *tenancy.Verifier
	users    userLoader
	revoked  *revocations
	ended    *invalidations
	acme     *domain.Company
}

func newFixture(t *testing.T) *fixture {
	cfg := config.TenancyConfig{
		BaseDomain:   "example.com",
		StaffLabel:   "crm",
		AdminLabel:   "admincrm",
		PublicScheme: "https",
	}
	acme := &domain.Company{ID: uuid.New(), Name: "Acme", Subdomain: "acme", Status: domain.StatusActive}
	return &fixture{
		tokens:   testTokens(t),
		resolver: tenancy.NewResolver(tenancy.NewHostParser(cfg), companyLookup{"acme": acme}, nil, nil),
		verifier: tenancy.NewVerifier(tenancy.NewURLBuilder(cfg), nil),
		users:    userLoader{},
		revoked:  newRevocations(),
		ended:    &invalidations{},
		acme:     acme,
	}
}

func (f *fixture) staff(role domain.Role) *domain.User {
	u := &domain.User{ID: uuid.New(), Email: "staff@metatech.test", Role: role, IsInternalStaff: true, Status: domain.StatusActive}
	f.users[u.ID] = u
	return u
}

func (f *fixture) member(role domain.Role) *domain.User {
	sub, name := f.acme.Subdomain, f.acme.Name
	u := &domain.User{ID: uuid.New(), Email: "member@acme.test", Role: role, Subdomain: &sub, CompanyName: &name, Status: domain.StatusActive}
	f.users[u.ID] = u
	return u
}

func (f *fixture) token(t *testing.T, u *domain.User, portal tenancy.Portal) (string, *domain.Claims) {
	t.Helper()
	pair, err := f.tokens.GenerateTokenPair(u, string(portal), uuid.New())
	require.NoError(t, err)
	claims, err := f.tokens.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	return pair.AccessToken, claims
}

// app mounts the full protected chain in front of a handler echoing the actor
func (f *fixture) app(extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(TenantResolver(f.resolver))
	app.Use(Auth(f.tokens, f.revoked))
	app.Use(Access(f.users, f.verifier, f.ended, zap.NewNop()))
	for _, h := range extra {
		app.Use(h)
	}
	app.Get("/whoami", func(c *fiber.Ctx) error {
		a := Actor(c)
		return c.JSON(fiber.Map{"user_id": a.User.ID, "context": a.Context.String()})
	})
	return app
}

func request(t *testing.T, app *fiber.App, host, token string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func TestTenantResolverPassesContextDown(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	app.Use(TenantResolver(f.resolver))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		fromLocals := Context(c)
		fromCtx := tenancy.FromContext(c.UserContext())
		return c.JSON(fiber.Map{"locals": fromLocals.String(), "ctx": fromCtx.String()})
	})

	resp, body := request(t, app, "ACME.crm.example.com", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "tenant(acme)", body["locals"])
	assert.Equal(t, "tenant(acme)", body["ctx"])

	resp, body = request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "none(staff)", body["locals"])
}

func TestTenantResolverRejectsUnknownHosts(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	app.Use(TenantResolver(f.resolver))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("unreachable") })

	for _, host := range []string{"ghost.crm.example.com", "acme.example.org", "a.b.crm.example.com"} {
		resp, body := request(t, app, host, "")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, host)
		assert.Equal(t, true, body["error"], host)
		assert.Equal(t, "not found", body["message"], host)
	}
}

func TestRequirePortal(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	app.Use(TenantResolver(f.resolver))
	app.Use(RequirePortal(tenancy.PortalAdmin))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, _ := request(t, app, "admincrm.example.com", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, host := range []string{"crm.example.com", "acme.crm.example.com"} {
		resp, _ := request(t, app, host, "")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, host)
	}
}

func TestAuthRejectsMissingOrMalformedTokens(t *testing.T) {
	f := newFixture(t)
	app := f.app()

	resp, body := request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing authorization header", body["message"])

	resp, _ = request(t, app, "crm.example.com", "not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "http://crm.example.com/whoami", nil)
	req.Header.Set("Authorization", "Basic abc")
	raw, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, raw.StatusCode)
}

func TestAuthRejectsRefreshTokens(t *testing.T) {
	f := newFixture(t)
	u := f.staff(domain.RoleStaffAdmin)
	pair, err := f.tokens.GenerateTokenPair(u, string(tenancy.PortalStaff), uuid.New())
	require.NoError(t, err)

	resp, body := request(t, f.app(), "crm.example.com", pair.RefreshToken)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", body["message"])
}

func TestAuthRejectsRevokedTokens(t *testing.T) {
	f := newFixture(t)
	u := f.staff(domain.RoleStaffAdmin)
	app := f.app()

	token, claims := f.token(t, u, tenancy.PortalStaff)
	resp, _ := request(t, app, "crm.example.com", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	f.revoked.tokens[claims.ID] = true
	resp, body := request(t, app, "crm.example.com", token)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token has been revoked", body["message"])

	other, _ := f.token(t, u, tenancy.PortalStaff)
	f.revoked.users[u.ID.String()] = time.Now().Add(time.Minute)
	resp, body = request(t, app, "crm.example.com", other)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session has been terminated", body["message"])
}

func TestAccessAllowsMatchingPrincipal(t *testing.T) {
	f := newFixture(t)
	app := f.app()

	staff := f.staff(domain.RoleStaffMember)
	token, _ := f.token(t, staff, tenancy.PortalStaff)
	resp, body := request(t, app, "crm.example.com", token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, staff.ID.String(), body["user_id"])
	assert.Equal(t, "none(staff)", body["context"])

	member := f.member(domain.RoleCompanyMember)
	token, _ = f.token(t, member, tenancy.PortalCompany)
	resp, body = request(t, app, "acme.crm.example.com", token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "tenant(acme)", body["context"])
}

func TestAccessRejectsTokenFromAnotherPortal(t *testing.T) {
	f := newFixture(t)
	staff := f.staff(domain.RoleStaffAdmin)
	token, _ := f.token(t, staff, tenancy.PortalStaff)

	resp, body := request(t, f.app(), "admincrm.example.com", token)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token was issued for another portal", body["message"])
}

func TestAccessDeniedCarriesLoginURL(t *testing.T) {
	f := newFixture(t)
	member := f.member(domain.RoleCompanyOwner)
	// a company principal holding a token scoped to the staff root
	token, _ := f.token(t, member, tenancy.PortalStaff)

	resp, body := request(t, f.app(), "crm.example.com", token)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, tenancy.ErrAccessDenied.Error(), body["message"])
	assert.Equal(t, "https://acme.crm.example.com/login", body["allowed_login_url"])
	assert.Empty(t, f.ended.ids)
}

func TestAccessBlockedPrincipalIsLoggedOut(t *testing.T) {
	f := newFixture(t)
	member := f.member(domain.RoleCompanyMember)
	token, _ := f.token(t, member, tenancy.PortalCompany)
	member.Status = domain.StatusSuspended

	resp, body := request(t, f.app(), "acme.crm.example.com", token)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, true, body["logout"])
	assert.Equal(t, []uuid.UUID{member.ID}, f.ended.ids)
}

func TestAccessBlockedTenantIsLoggedOut(t *testing.T) {
	f := newFixture(t)
	member := f.member(domain.RoleCompanyOwner)
	token, _ := f.token(t, member, tenancy.PortalCompany)
	f.acme.Status = domain.StatusBlocked

	resp, body := request(t, f.app(), "acme.crm.example.com", token)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, tenancy.ErrTenantBlocked.Error(), body["message"])
	assert.Equal(t, []uuid.UUID{member.ID}, f.ended.ids)
}

func TestAccessRejectsDeletedPrincipal(t *testing.T) {
	f := newFixture(t)
	staff := f.staff(domain.RoleStaffAdmin)
	token, _ := f.token(t, staff, tenancy.PortalStaff)
	delete(f.users, staff.ID)

	resp, _ := request(t, f.app(), "crm.example.com", token)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)
	guard := service.NewGuard(policy.Default())
	app := f.app(RequirePermission(guard, policy.UsersManage))

	owner := f.member(domain.RoleCompanyOwner)
	token, _ := f.token(t, owner, tenancy.PortalCompany)
	resp, _ := request(t, app, "acme.crm.example.com", token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	member := f.member(domain.RoleCompanyMember)
	token, _ = f.token(t, member, tenancy.PortalCompany)
	resp, body := request(t, app, "acme.crm.example.com", token)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, string(policy.UsersManage), body["required_action"])
}

func TestRateLimit(t *testing.T) {
	lim, err := NewLoginLimiter("2-M", nil)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(RateLimit(lim, zap.NewNop()))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i, want := range []string{"1", "0"} {
		resp, _ := request(t, app, "crm.example.com", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, i)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, want, resp.Header.Get("X-RateLimit-Remaining"))
	}

	resp, body := request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests", body["message"])

	// counters are kept per host
	resp, _ = request(t, app, "acme.crm.example.com", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lim, err := NewLoginLimiter("1-H", client)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(RateLimit(lim, zap.NewNop()))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, _ := request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimitStoreFailureIsNotExposed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	lim, err := NewLoginLimiter("5-M", client)
	require.NoError(t, err)
	mr.Close()

	core, logs := observer.New(zap.ErrorLevel)
	app := fiber.New()
	app.Use(RateLimit(lim, zap.New(core)))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, body := request(t, app, "crm.example.com", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "rate limiter unavailable", body["message"])
	assert.NotContains(t, body["message"], mr.Addr())

	require.Equal(t, 1, logs.Len())
	assert.NotNil(t, logs.All()[0].ContextMap()["error"])
}

func TestNewLoginLimiterRejectsBadRate(t *testing.T) {
	_, err := NewLoginLimiter("lots", nil)
	assert.Error(t, err)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := fiber.New()
	app.Use(Recovery(zap.New(core)))
	app.Get("/whoami", func(c *fiber.Ctx) error { panic("boom") })

	resp, body := request(t, app, "crm.example.com", "")

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["message"])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])
}

func TestLoggerRecordsRequest(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Use(Logger(zap.New(core)))
	app.Use(TenantResolver(f.resolver))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString("ok") })

	request(t, app, "acme.crm.example.com", "")
	request(t, app, "ghost.crm.example.com", "")

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "/whoami", first["path"])
	assert.Equal(t, int64(fiber.StatusOK), first["status"])
	assert.Equal(t, "tenant(acme)", first["context"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(fiber.StatusNotFound), entries[1].ContextMap()["status"])
}
