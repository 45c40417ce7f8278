package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository/memory"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/blacklist"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/hash"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/jwt"
)

const testPassword = "correct-horse-battery"

var (
	keyOnce sync.Once
	privPEM []byte
	pubPEM  []byte
)

// testKeys generates one RSA pair for the whole package
func testKeys(t *testing.T) ([]byte, []byte) {
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
	return privPEM, pubPEM
}

func testTenancyConfig() config.TenancyConfig {
	return config.TenancyConfig{
		BaseDomain:   "example.com",
		StaffLabel:   "crm",
		AdminLabel:   "admincrm",
		DevHosts:     false,
		PublicScheme: "https",
	}
}

type testEnv struct {
	users       *memory.UserRepository
	companies   *memory.CompanyRepository
	sessions    *memory.SessionRepository
	invitations *memory.InvitationRepository
	clients     *memory.ClientRepository
	deals       *memory.DealRepository
	projects    *memory.ProjectRepository
	tasks       *memory.TaskRepository
	mailer      *recordingMailer

	redis     *miniredis.Miniredis
	blacklist *blacklist.TokenBlacklist
	tokens    *jwt.TokenService
	hasher    *hash.Hasher
	parser    *tenancy.HostParser
	urls      *tenancy.URLBuilder
	guard     *Guard

	sessionSvc    *SessionService
	authSvc       *AuthService
	userSvc       *UserService
	invitationSvc *InvitationService
	companySvc    *CompanyService
	pipelineSvc   *PipelineService
	projectSvc    *ProjectService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	priv, pub := testKeys(t)
	tokens, err := jwt.NewTokenService(priv, pub, "test-key", 15*time.Minute, time.Hour, "crm-test")
	require.NoError(t, err)

	e := &testEnv{
		users:       memory.NewUserRepository(),
		companies:   memory.NewCompanyRepository(),
		sessions:    memory.NewSessionRepository(),
		invitations: memory.NewInvitationRepository(),
		clients:     memory.NewClientRepository(),
		deals:       memory.NewDealRepository(),
		projects:    memory.NewProjectRepository(),
		tasks:       memory.NewTaskRepository(),
		mailer:      &recordingMailer{},
		redis:       mr,
		blacklist:   blacklist.NewTokenBlacklist(client),
		tokens:      tokens,
		hasher: hash.NewHasher(hash.Params{
			Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		}),
		parser: tenancy.NewHostParser(testTenancyConfig()),
		urls:   tenancy.NewURLBuilder(testTenancyConfig()),
		guard:  NewGuard(policy.Default()),
	}

	verifier := tenancy.NewVerifier(e.urls, nil)
	e.sessionSvc = NewSessionService(e.sessions, e.users, e.blacklist, 15*time.Minute, logger)
	e.authSvc = NewAuthService(e.users, e.sessions, e.sessionSvc, tokens, e.blacklist, verifier, e.hasher, e.mailer,
		config.AuthConfig{MaxFailedLogins: 3, LockDuration: 15 * time.Minute}, logger)
	e.userSvc = NewUserService(e.users, e.sessionSvc, e.guard, e.hasher, logger)
	e.invitationSvc = NewInvitationService(e.invitations, e.users, e.companies, e.guard, e.urls, e.hasher, e.mailer, 72*time.Hour, logger)
	e.companySvc = NewCompanyService(e.companies, e.invitationSvc, e.sessionSvc, e.parser, e.guard, logger)
	e.pipelineSvc = NewPipelineService(e.clients, e.deals, e.guard, logger)
	e.projectSvc = NewProjectService(e.projects, e.tasks, e.companies, e.users, e.guard, logger)
	return e
}

func (e *testEnv) addCompany(t *testing.T, subdomain string, status domain.AccountStatus) *domain.Company {
	t.Helper()
	now := time.Now()
	c := &domain.Company{
		ID:        uuid.New(),
		Name:      subdomain + " inc",
		Subdomain: subdomain,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.companies.Create(context.Background(), c))
	return c
}

func (e *testEnv) addStaff(t *testing.T, addr string, role domain.Role) *domain.User {
	t.Helper()
	return e.addUser(t, &domain.User{Email: addr, Role: role, IsInternalStaff: true})
}

func (e *testEnv) addCompanyUser(t *testing.T, c *domain.Company, addr string, role domain.Role) *domain.User {
	t.Helper()
	return e.addUser(t, &domain.User{
		Email:       addr,
		Role:        role,
		CompanyID:   &c.ID,
		Subdomain:   &c.Subdomain,
		CompanyName: &c.Name,
	})
}

func (e *testEnv) addUser(t *testing.T, u *domain.User) *domain.User {
	t.Helper()
	passwordHash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)

	now := time.Now()
	u.ID = uuid.New()
	u.PasswordHash = passwordHash
	u.FirstName = "Test"
	u.LastName = "User"
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) staffRoot() tenancy.ResolvedContext {
	return e.parser.Parse("crm.example.com")
}

func (e *testEnv) adminRoot() tenancy.ResolvedContext {
	return e.parser.Parse("admincrm.example.com")
}

func (e *testEnv) tenant(c *domain.Company) tenancy.ResolvedContext {
	rc := e.parser.Parse(c.Subdomain + ".crm.example.com")
	rc.Company = c
	return rc
}

func actorOn(u *domain.User, rc tenancy.ResolvedContext) Actor {
	return Actor{User: u, Context: rc}
}
