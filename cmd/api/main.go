package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"authsuite/internal/config"
	"authsuite/internal/db"
	apihttp "authsuite/internal/http"
	"authsuite/internal/metrics"
	"authsuite/internal/oauth"
	"authsuite/internal/repository"
	"authsuite/internal/service"
	"authsuite/internal/worker"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			if strings.EqualFold(cfg.SessionBackend, config.SessionBackendRedis) {
				cancel()
				logger.Fatal("redis session backend unavailable", zap.Error(err))
			}
			_ = redisClient.Close()
			redisClient = nil
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	userRepo := repository.NewPgUserRepository(pool)
	sessions := newSessionStore(cfg, pool, redisClient, logger)

	failures := service.NewMemoryFailedLoginTracker(cfg.FailedLoginWindow)
	if redisClient != nil {
		failures = service.NewRedisFailedLoginTracker(redisClient, cfg.FailedLoginWindow)
	}

	totpSvc := service.NewTOTPService(cfg.MfaIssuer)
	challenges := service.NewChallengeTokens(cfg.JWTSecret)

	deps := service.Dependencies{
		Logger:     logger,
		Users:      userRepo,
		Sessions:   sessions,
		Hasher:     service.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost),
		Tokens:     service.NewRandomTokenGenerator(cfg.TokenBytes),
		Audit:      repository.NewPgAuditLogger(pool),
		Mfa:        totpSvc,
		Failures:   failures,
		Metrics:    recorder,
		SessionTTL: cfg.SessionTTL(),
	}

	uc := apihttp.AuthUseCases{
		Register:       service.NewRegisterUserUseCase(deps),
		Login:          service.NewLoginUseCase(deps),
		VerifyMfa:      service.NewVerifyMfaUseCase(deps),
		ExternalAuth:   service.NewExternalAuthUseCase(deps),
		Logout:         service.NewLogoutUseCase(deps),
		ChangePassword: service.NewChangePasswordUseCase(deps),
		EnrollMfa:      service.NewEnrollMfaUseCase(deps, totpSvc, challenges),
		ConfirmMfa:     service.NewConfirmMfaUseCase(deps, challenges),
		DisableMfa:     service.NewDisableMfaUseCase(deps),
	}
	providers := newOAuthRegistry(cfg)
	logger.Info("oauth providers enabled", zap.Strings("providers", providers.Providers()))

	authHandler := apihttp.NewAuthHandler(logger, uc, challenges, providers)
	healthHandler := apihttp.NewHealthHandler(logger, pool)
	sessionMW := apihttp.SessionMiddleware(logger, service.NewValidateSessionUseCase(deps))
	router := apihttp.NewRouter(logger, authHandler, healthHandler, sessionMW, metrics.Handler(registry))

	sweeper := worker.NewSessionSweeper(sessions, cfg.SessionSweepInterval, logger, recorder)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("session_backend", cfg.SessionBackend),
		zap.String("password_hasher", cfg.PasswordHasher),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger
}

func newSessionStore(cfg *config.Config, pool repository.Pool, redisClient *redis.Client, logger *zap.Logger) repository.SessionStore {
	switch strings.ToLower(cfg.SessionBackend) {
	case config.SessionBackendRedis:
		return repository.NewRedisSessionStore(redisClient)
	case config.SessionBackendMemory:
		logger.Warn("using in-memory session store; sessions are lost on restart")
		return repository.NewMemorySessionStore()
	default:
		return repository.NewPgSessionStore(pool)
	}
}

func newOAuthRegistry(cfg *config.Config) *oauth.Registry {
	var clients []oauth.Client
	if cfg.GoogleEnabled() {
		clients = append(clients, oauth.NewGoogleClient(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
		}))
	}
	if cfg.GitHubEnabled() {
		clients = append(clients, oauth.NewGitHubClient(oauth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURI,
		}))
	}
	if cfg.MsalEnabled() {
		clients = append(clients, oauth.NewMicrosoftClient(oauth.MicrosoftConfig{
			ClientID:     cfg.MsalClientID,
			ClientSecret: cfg.MsalClientSecret,
			RedirectURL:  cfg.MsalRedirectURI,
			TenantID:     cfg.MsalTenantID,
			TrustEmail:   cfg.MsalTrustEmail,
		}))
	}
	return oauth.NewRegistry(clients...)
}
