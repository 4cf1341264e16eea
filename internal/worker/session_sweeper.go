// Package worker agrupa tareas periodicas del servicio.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"authsuite/internal/metrics"
)

// ExpiredSessionDeleter es la parte del SessionStore que usa el barrido.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper borra periodicamente sesiones vencidas.
type SessionSweeper struct {
	store    ExpiredSessionDeleter
	interval time.Duration
	logger   *zap.Logger
	metrics  metrics.Recorder
}

func NewSessionSweeper(store ExpiredSessionDeleter, interval time.Duration, logger *zap.Logger, recorder metrics.Recorder) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &SessionSweeper{store: store, interval: interval, logger: logger, metrics: recorder}
}

// Run barre una vez al arrancar y luego en cada tick hasta que ctx se cancela.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// SweepOnce ejecuta un barrido y devuelve la cantidad de sesiones borradas.
func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsSwept(deleted)
	s.logger.Info("expired sessions swept",
		zap.Int64("deleted_count", deleted),
		zap.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("session sweep failed", zap.Error(err))
	}
}
