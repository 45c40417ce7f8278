package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/metrics"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository/memory"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository/postgres"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/migrations"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/blacklist"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/email"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/hash"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/jwt"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type repositories struct {
	users       repository.UserRepository
	companies   repository.CompanyRepository
	sessions    repository.SessionRepository
	invitations repository.InvitationRepository
	clients     repository.ClientRepository
	deals       repository.DealRepository
	projects    repository.ProjectRepository
	tasks       repository.TaskRepository
}

// dependencies are the external connections shared by every command
type dependencies struct {
	db    *sqlx.DB // nil with the memory driver
	redis *redis.Client
	repos repositories
}

func (d *dependencies) Close() error {
	var err error
	if d.db != nil {
		err = multierr.Append(err, d.db.Close())
	}
	if d.redis != nil {
		err = multierr.Append(err, d.redis.Close())
	}
	return err
}

func openDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using the in-memory store, data is lost on exit")
		deps.repos = repositories{
			users:       memory.NewUserRepository(),
			companies:   memory.NewCompanyRepository(),
			sessions:    memory.NewSessionRepository(),
			invitations: memory.NewInvitationRepository(),
			clients:     memory.NewClientRepository(),
			deals:       memory.NewDealRepository(),
			projects:    memory.NewProjectRepository(),
			tasks:       memory.NewTaskRepository(),
		}
	default:
		db, err := initDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.repos = repositories{
			users:       postgres.NewUserRepository(db),
			companies:   postgres.NewCompanyRepository(db),
			sessions:    postgres.NewSessionRepository(db),
			invitations: postgres.NewInvitationRepository(db),
			clients:     postgres.NewClientRepository(db),
			deals:       postgres.NewDealRepository(db),
			projects:    postgres.NewProjectRepository(db),
			tasks:       postgres.NewTaskRepository(db),
		}
	}

	client, err := initRedis(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.redis = client
	log.Info("redis connection established", zap.String("addr", cfg.Redis.Addr()))

	return deps, nil
}

type services struct {
	tokens      *jwt.TokenService
	blacklist   *blacklist.TokenBlacklist
	guard       *service.Guard
	parser      *tenancy.HostParser
	urls        *tenancy.URLBuilder
	sessions    *service.SessionService
	auth        *service.AuthService
	users       *service.UserService
	invitations *service.InvitationService
	companies   *service.CompanyService
	pipeline    *service.PipelineService
	projects    *service.ProjectService
}

// newServices builds the service layer; the token service is filled in by
// the caller when it needs one.
func newServices(cfg *config.Config, deps *dependencies, log *zap.Logger) *services {
	s := &services{
		blacklist: blacklist.NewTokenBlacklist(deps.redis),
		parser:    tenancy.NewHostParser(cfg.Tenancy),
		urls:      tenancy.NewURLBuilder(cfg.Tenancy),
	}
	s.sessions = service.NewSessionService(deps.repos.sessions, deps.repos.users, s.blacklist, cfg.JWT.AccessTokenExpiry, log)
	return s
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	deps, err := openDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error("failed to close connections", zap.Error(err))
		}
	}()

	if deps.db != nil && cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, deps.db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	privateKey, publicKey, err := loadRSAKeys(cfg)
	if err != nil {
		return err
	}
	tokens, err := jwt.NewTokenService(privateKey, publicKey, cfg.JWT.KeyID,
		cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry, cfg.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	table := policy.Default()
	if cfg.Auth.PolicyFile != "" {
		if table, err = policy.LoadFile(cfg.Auth.PolicyFile); err != nil {
			return err
		}
		log.Info("policy overrides loaded", zap.String("file", cfg.Auth.PolicyFile))
	}

	mailer, err := newEmailService(cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New(true)
	verifier := tenancy.NewVerifier(tenancy.NewURLBuilder(cfg.Tenancy), m)
	hasher := hash.NewHasher(hash.DefaultParams)
	validate := validator.NewValidator()

	s := newServices(cfg, deps, log)
	s.tokens = tokens
	s.guard = service.NewGuard(table)
	s.auth = service.NewAuthService(deps.repos.users, deps.repos.sessions, s.sessions, tokens, s.blacklist,
		verifier, hasher, mailer, cfg.Auth, log)
	s.users = service.NewUserService(deps.repos.users, s.sessions, s.guard, hasher, log)
	s.invitations = service.NewInvitationService(deps.repos.invitations, deps.repos.users, deps.repos.companies,
		s.guard, s.urls, hasher, mailer, cfg.Auth.InvitationTTL, log)
	s.companies = service.NewCompanyService(deps.repos.companies, s.invitations, s.sessions, s.parser, s.guard, log)
	s.pipeline = service.NewPipelineService(deps.repos.clients, deps.repos.deals, s.guard, log)
	s.projects = service.NewProjectService(deps.repos.projects, deps.repos.tasks, deps.repos.companies,
		deps.repos.users, s.guard, log)

	limiter, err := middleware.NewLoginLimiter(cfg.Auth.LoginRateLimit, deps.redis)
	if err != nil {
		return err
	}

	checks := map[string]handler.Check{
		"redis": func(ctx context.Context) error { return deps.redis.Ping(ctx).Err() },
	}
	if deps.db != nil {
		checks["postgres"] = deps.db.PingContext
	}

	app := fiber.New(fiber.Config{
		AppName:               "Metatech CRM",
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler(log),
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	app.Use(middleware.Recovery(log))
	app.Use(middleware.Logger(log))
	app.Use(middleware.CORS(cfg.Server.AllowOrigins))
	app.Use(m.Middleware())

	handler.SetupRoutes(app, handler.Handlers{
		Auth:       handler.NewAuthHandler(s.auth, validate),
		User:       handler.NewUserHandler(s.users, s.guard, validate),
		Session:    handler.NewSessionHandler(s.sessions),
		Setup:      handler.NewSetupHandler(s.users, validate),
		Company:    handler.NewCompanyHandler(s.companies, validate),
		Invitation: handler.NewInvitationHandler(s.invitations, validate),
		Pipeline:   handler.NewPipelineHandler(s.pipeline, validate),
		Project:    handler.NewProjectHandler(s.projects, validate),
		Health:     handler.NewHealthHandler(checks),
		JWKS:       handler.NewJWKSHandler(tokens.GetPublicKey(), tokens.KeyID()),
		Metrics:    m.Handler(),
	}, handler.Middleware{
		Tenant:     middleware.TenantResolver(tenancy.NewResolver(s.parser, deps.repos.companies, log, m)),
		Auth:       middleware.Auth(tokens, s.blacklist),
		Access:     middleware.Access(s.users, verifier, s.sessions, log),
		LoginLimit: middleware.RateLimit(limiter, log),
		Guard:      s.guard,
	})

	pruner := service.NewSessionPruner(s.sessions, cfg.Auth.SessionPruneInterval, log)
	pruner.Start()
	defer pruner.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("server starting",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("database", cfg.Database.Driver),
		)
		serveErr <- app.Listen(addr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newEmailService picks the configured provider and paces it
func newEmailService(cfg *config.Config, log *zap.Logger) (email.EmailService, error) {
	if !cfg.Email.Enabled {
		log.Info("email disabled, messages are logged only")
		return email.NewNoopEmailService(log), nil
	}

	ec := &email.EmailConfig{
		APIKey:    cfg.Email.APIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		BaseURL:   cfg.Email.ServiceURL,
		Timeout:   cfg.Email.Timeout,
	}

	var (
		sender email.EmailService
		err    error
	)
	switch cfg.Email.Provider {
	case "resend":
		sender, err = email.NewResendEmailService(ec, log)
	case "mailgun":
		sender, err = email.NewMailgunEmailService(ec, cfg.Email.Domain, log)
	case "cloudcentinel":
		sender, err = email.NewCloudCentinelEmailService(ec, log)
	default:
		err = fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}

	log.Info("email service initialized", zap.String("provider", cfg.Email.Provider))
	return email.NewThrottled(sender, cfg.Email.RateEvery, cfg.Email.RateBurst), nil
}

// initDB connects to PostgreSQL, retrying while the database starts up
func initDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	if cfg.Database.Driver != "postgres" {
		return nil, errors.New("this command needs DB_DRIVER=postgres")
	}

	const maxRetries = 5
	retryInterval := 2 * time.Second

	var (
		db  *sqlx.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
		if err == nil {
			break
		}

		log.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("database connection established", zap.String("host", cfg.Database.Host))
	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to ping Redis: %w", err), client.Close())
	}
	return client, nil
}

// loadRSAKeys loads RSA private and public keys from files
func loadRSAKeys(cfg *config.Config) ([]byte, []byte, error) {
	privateKey, err := os.ReadFile(cfg.JWT.PrivateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKey, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKey) == 0 || len(publicKey) == 0 {
		return nil, nil, errors.New("key files must not be empty")
	}
	return privateKey, publicKey, nil
}
