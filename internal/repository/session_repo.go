package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"authsuite/internal/domain"
)

// SessionStore persiste sesiones. Todas las operaciones reciben el token en claro
// y lo hashean antes de tocar el almacenamiento.
type SessionStore interface {
	FindByToken(ctx context.Context, token string) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Update(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID domain.UserID) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// PgSessionStore implementa SessionStore sobre la tabla sessions.
type PgSessionStore struct {
	pool Pool
	now  func() time.Time
}

func NewPgSessionStore(pool Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool, now: time.Now}
}

func (s *PgSessionStore) FindByToken(ctx context.Context, token string) (domain.Session, error) {
	const query = `
		SELECT id, token_hash, user_id, expires_at, is_active, created_at, updated_at
		FROM sessions
		WHERE token_hash = $1
	`
	var d domain.SessionData
	err := s.pool.QueryRow(ctx, query, domain.HashSessionToken(token)).Scan(
		&d.ID,
		&d.TokenHash,
		&d.UserID,
		&d.ExpiresAt,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return rehydrateSession(d, token)
}

func (s *PgSessionStore) Save(ctx context.Context, session domain.Session) error {
	const query = `
		INSERT INTO sessions (id, token_hash, user_id, expires_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	d := session.Data()
	_, err := s.pool.Exec(ctx, query,
		d.ID,
		d.TokenHash,
		d.UserID,
		d.ExpiresAt,
		d.IsActive,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", d.UserID).
			Wrap(err)
	}
	return nil
}

func (s *PgSessionStore) Update(ctx context.Context, session domain.Session) error {
	const query = `
		UPDATE sessions SET expires_at = $2, is_active = $3, updated_at = $4
		WHERE token_hash = $1
	`
	d := session.Data()
	tag, err := s.pool.Exec(ctx, query, d.TokenHash, d.ExpiresAt, d.IsActive, d.UpdatedAt)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update session").
			With("session_id", d.ID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete es idempotente: borrar un token inexistente no es error.
func (s *PgSessionStore) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token_hash = $1`
	if _, err := s.pool.Exec(ctx, query, domain.HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

func (s *PgSessionStore) DeleteByUserID(ctx context.Context, userID domain.UserID) (int64, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	tag, err := s.pool.Exec(ctx, query, userID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired borra solo sesiones con expires_at estrictamente en el pasado.
func (s *PgSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	tag, err := s.pool.Exec(ctx, query, s.now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// rehydrateSession reconstruye la sesion adjuntando el token en claro recibido.
func rehydrateSession(d domain.SessionData, token string) (domain.Session, error) {
	d.Token = token
	session, err := domain.ReconstructSession(d)
	if err != nil {
		d.Token = ""
		if session, err = domain.ReconstructSession(d); err != nil {
			return domain.Session{}, oops.Code("SESSION_CORRUPTED").With("session_id", d.ID).Wrap(err)
		}
	}
	return session, nil
}
