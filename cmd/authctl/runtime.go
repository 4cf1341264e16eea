package main

import (
	"context"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"go.uber.org/zap"

	"authsuite/internal/config"
	"authsuite/internal/db"
	"authsuite/internal/metrics"
	"authsuite/internal/repository"
	"authsuite/internal/service"
	"authsuite/internal/worker"
)

// runtime agrupa lo que necesitan los comandos de administracion.
type runtime struct {
	setActive *service.SetUserActiveUseCase
	revoke    *service.RevokeUserSessionsUseCase
	sweeper   *worker.SessionSweeper
	close     func()
}

// runtimeOpener construye el runtime; los tests lo reemplazan.
type runtimeOpener func(ctx context.Context) (*runtime, error)

func openRuntime(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if strings.EqualFold(cfg.SessionBackend, config.SessionBackendMemory) {
		return nil, oops.Code("CONFIG_INVALID").Errorf("SESSION_BACKEND=memory has no persistent sessions to manage")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, oops.Code("LOGGER_INIT_FAILED").Wrap(err)
	}

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	closers := []func(){pool.Close, func() { _ = logger.Sync() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var sessions repository.SessionStore = repository.NewPgSessionStore(pool)
	if strings.EqualFold(cfg.SessionBackend, config.SessionBackendRedis) {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = client.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			closeAll()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.RedisAddr).Wrap(err)
		}
		sessions = repository.NewRedisSessionStore(client)
	}

	deps := service.Dependencies{
		Logger:   logger,
		Users:    repository.NewPgUserRepository(pool),
		Sessions: sessions,
	}
	return &runtime{
		setActive: service.NewSetUserActiveUseCase(deps),
		revoke:    service.NewRevokeUserSessionsUseCase(deps),
		sweeper:   worker.NewSessionSweeper(sessions, cfg.SessionSweepInterval, logger, metrics.Nop{}),
		close:     closeAll,
	}, nil
}
