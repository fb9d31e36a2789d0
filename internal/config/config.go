package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "BankVerify"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultSessionTTL      = 2 * time.Hour
	defaultWorkerInterval  = time.Minute
	defaultDBMaxConns      = 10
	defaultJWTIssuer       = "bankverify"
	defaultBorrowerBaseURL = "http://localhost:3000"
	defaultStripeAPIBase   = "https://api.stripe.com"
	defaultTellerConnect   = "https://teller.io/connect"
	defaultTellerEnv       = "sandbox"
	devJWTSecret           = "dev-insecure-secret-change-me"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	DBMaxConns     int32
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	BorrowerBaseURL string
	SessionTTL      time.Duration
	AllowedOrigins  []string

	Stripe StripeConfig
	Teller TellerConfig

	WorkerInterval time.Duration

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// StripeConfig holds Stripe Financial Connections credentials.
type StripeConfig struct {
	SecretKey string
	APIBase   string
}

// TellerConfig holds Teller Connect settings.
type TellerConfig struct {
	ApplicationID string
	Environment   string
	ConnectURL    string
	RedirectURI   string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		Env:             getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		JWTIssuer:       getEnv("JWT_ISSUER", defaultJWTIssuer),
		BorrowerBaseURL: strings.TrimRight(getEnv("BORROWER_BASE_URL", defaultBorrowerBaseURL), "/"),
		AllowedOrigins:  splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Stripe: StripeConfig{
			SecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			APIBase:   strings.TrimRight(getEnv("STRIPE_API_BASE", defaultStripeAPIBase), "/"),
		},
		Teller: TellerConfig{
			ApplicationID: os.Getenv("TELLER_APPLICATION_ID"),
			Environment:   getEnv("TELLER_ENVIRONMENT", defaultTellerEnv),
			ConnectURL:    getEnv("TELLER_CONNECT_URL", defaultTellerConnect),
			RedirectURI:   os.Getenv("TELLER_REDIRECT_URI"),
		},
		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.WorkerInterval, err = getDuration("WORKER_INTERVAL", defaultWorkerInterval); err != nil {
		return Config{}, err
	}

	maxConns := int64(defaultDBMaxConns)
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		maxConns, err = strconv.ParseInt(v, 10, 32)
		if err != nil || maxConns <= 0 {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNS %q", v)
		}
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
	} else {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret + ":refresh"
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// secondsOrDuration prefers the integer-seconds variable over the duration one.
func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
