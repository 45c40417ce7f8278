package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Email    EmailConfig
	Tenancy  TenancyConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins string
}

type DatabaseConfig struct {
	// Driver is postgres, or memory for a throwaway local store
	Driver      string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	PrivateKeyPath     string
	PublicKeyPath      string
	KeyID              string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

type AuthConfig struct {
	MaxFailedLogins int
	LockDuration    time.Duration
	InvitationTTL   time.Duration

	// LoginRateLimit uses the "<limit>-<S|M|H|D>" format, e.g. "20-M"
	LoginRateLimit string

	// PolicyFile optionally overrides grants of the built-in policy table
	PolicyFile string

	SessionPruneInterval time.Duration
}

type EmailConfig struct {
	Enabled    bool
	Provider   string // resend, cloudcentinel, mailgun
	APIKey     string
	Domain     string // mailgun sending domain
	FromEmail  string
	FromName   string
	ServiceURL string
	Timeout    time.Duration

	// outbound throttle: one message per RateEvery, bursts of RateBurst
	RateEvery time.Duration
	RateBurst int
}

// TenancyConfig describes the host layout:
//
//	admincrm.<base>          product-owner portal
//	crm.<base>               internal staff portal
//	<subdomain>.crm.<base>   company portal
type TenancyConfig struct {
	BaseDomain   string
	StaffLabel   string
	AdminLabel   string
	DevHosts     bool
	DevPort      string
	PublicScheme string
	PublicPort   string
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() (*Config, error) {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8000"),
			Environment:  env,
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "crm"),
			Password: getEnv("DB_PASSWORD", "crm"),
			DBName:   getEnv("DB_NAME", "crm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", env != "production"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			PrivateKeyPath:     getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:      getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			KeyID:              getEnv("JWT_KEY_ID", "crm-1"),
			AccessTokenExpiry:  getDurationEnv("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getDurationEnv("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			Issuer:             getEnv("JWT_ISSUER", "metatech-crm"),
		},
		Auth: AuthConfig{
			MaxFailedLogins: getIntEnv("AUTH_MAX_FAILED_LOGINS", 5),
			LockDuration:    getDurationEnv("AUTH_LOCK_DURATION", 15*time.Minute),
			InvitationTTL:   getDurationEnv("AUTH_INVITATION_TTL", 72*time.Hour),
			LoginRateLimit:  getEnv("AUTH_LOGIN_RATE_LIMIT", "20-M"),
			PolicyFile:      getEnv("AUTH_POLICY_FILE", ""),

			SessionPruneInterval: getDurationEnv("AUTH_SESSION_PRUNE_INTERVAL", time.Hour),
		},
		Email: EmailConfig{
			Enabled:    getBoolEnv("EMAIL_ENABLED", false),
			Provider:   getEnv("EMAIL_PROVIDER", "resend"),
			APIKey:     getEnv("EMAIL_API_KEY", ""),
			Domain:     getEnv("EMAIL_DOMAIN", ""),
			FromEmail:  getEnv("EMAIL_FROM", "no-reply@example.com"),
			FromName:   getEnv("EMAIL_FROM_NAME", "Metatech CRM"),
			ServiceURL: getEnv("EMAIL_SERVICE_URL", ""),
			Timeout:    getDurationEnv("EMAIL_TIMEOUT", 10*time.Second),
			RateEvery:  getDurationEnv("EMAIL_RATE_EVERY", 200*time.Millisecond),
			RateBurst:  getIntEnv("EMAIL_RATE_BURST", 10),
		},
		Tenancy: TenancyConfig{
			BaseDomain:   strings.ToLower(getEnv("TENANCY_BASE_DOMAIN", "example.com")),
			StaffLabel:   strings.ToLower(getEnv("TENANCY_STAFF_LABEL", "crm")),
			AdminLabel:   strings.ToLower(getEnv("TENANCY_ADMIN_LABEL", "admincrm")),
			DevHosts:     getBoolEnv("TENANCY_DEV_HOSTS", env != "production"),
			DevPort:      getEnv("TENANCY_DEV_PORT", "8000"),
			PublicScheme: getEnv("TENANCY_PUBLIC_SCHEME", "https"),
			PublicPort:   getEnv("TENANCY_PUBLIC_PORT", ""),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", defaultLogFormat(env)),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			File:       getEnv("LOG_FILE", "./logs/crm.log"),
			MaxSizeMB:  getIntEnv("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getIntEnv("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects host layouts the tenancy resolver cannot work with
func (c *Config) Validate() error {
	t := c.Tenancy
	if t.BaseDomain == "" {
		return errors.New("TENANCY_BASE_DOMAIN is required")
	}
	if t.StaffLabel == "" || t.AdminLabel == "" {
		return errors.New("tenancy staff and admin labels are required")
	}
	if t.StaffLabel == t.AdminLabel {
		return fmt.Errorf("tenancy staff and admin labels must differ, both are %q", t.StaffLabel)
	}
	if strings.Contains(t.StaffLabel, ".") || strings.Contains(t.AdminLabel, ".") {
		return errors.New("tenancy labels must be a single DNS label")
	}
	if c.Email.Enabled {
		switch c.Email.Provider {
		case "resend":
			if c.Email.APIKey == "" {
				return errors.New("EMAIL_API_KEY is required for the resend provider")
			}
		case "cloudcentinel":
			if c.Email.ServiceURL == "" {
				return errors.New("EMAIL_SERVICE_URL is required for the cloudcentinel provider")
			}
		case "mailgun":
			if c.Email.APIKey == "" || c.Email.Domain == "" {
				return errors.New("EMAIL_API_KEY and EMAIL_DOMAIN are required for the mailgun provider")
			}
		default:
			return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
		}
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "memory" && c.IsProduction() {
		return errors.New("the memory database driver cannot run in production")
	}
	if c.Log.Output != "stdout" && c.Log.Output != "file" {
		return fmt.Errorf("LOG_OUTPUT must be stdout or file, got %q", c.Log.Output)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "console"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
