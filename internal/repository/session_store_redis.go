package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"authsuite/internal/domain"
)

const redisOpTimeout = 500 * time.Millisecond

type redisSessionClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisSessionStore guarda cada sesion bajo su hash con TTL igual a la expiracion.
// Un set por usuario indexa sus sesiones para DeleteByUserID.
type RedisSessionStore struct {
	client     redisSessionClient
	prefix     string
	userPrefix string
	now        func() time.Time
}

type redisSessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return newRedisSessionStore(client)
}

func newRedisSessionStore(client redisSessionClient) *RedisSessionStore {
	return &RedisSessionStore{
		client:     client,
		prefix:     "auth:session:",
		userPrefix: "auth:user-sessions:",
		now:        time.Now,
	}
}

func (s *RedisSessionStore) FindByToken(ctx context.Context, token string) (domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	hash := domain.HashSessionToken(token)
	raw, err := s.client.Get(ctx, s.prefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, oops.Code("SESSION_GET_BY_TOKEN_FAILED").With("backend", "redis").Wrap(err)
	}
	var rec redisSessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Session{}, oops.Code("SESSION_CORRUPTED").With("backend", "redis").Wrap(err)
	}
	return rehydrateSession(domain.SessionData{
		ID:        rec.ID,
		TokenHash: hash,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, token)
}

func (s *RedisSessionStore) Save(ctx context.Context, session domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.put(ctx, session); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("backend", "redis").Wrap(err)
	}
	userKey := s.userPrefix + session.UserID().String()
	if err := s.client.SAdd(ctx, userKey, session.TokenHash()).Err(); err != nil {
		return oops.Code("SESSION_INDEX_FAILED").With("backend", "redis").Wrap(err)
	}
	if ttl := s.ttl(session); ttl > 0 {
		if err := s.client.Expire(ctx, userKey, ttl).Err(); err != nil {
			return oops.Code("SESSION_INDEX_FAILED").With("backend", "redis").Wrap(err)
		}
	}
	return nil
}

func (s *RedisSessionStore) Update(ctx context.Context, session domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Get(ctx, s.prefix+session.TokenHash()).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return oops.Code("SESSION_UPDATE_FAILED").With("backend", "redis").Wrap(err)
	}
	if err := s.put(ctx, session); err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").With("backend", "redis").Wrap(err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	hash := domain.HashSessionToken(token)
	// Se lee el registro para sacar el hash del indice del usuario.
	var rec redisSessionRecord
	raw, err := s.client.Get(ctx, s.prefix+hash).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return oops.Code("SESSION_DELETE_FAILED").With("backend", "redis").Wrap(err)
	default:
		if err := json.Unmarshal(raw, &rec); err != nil {
			return oops.Code("SESSION_CORRUPTED").With("backend", "redis").Wrap(err)
		}
	}
	if err := s.client.Del(ctx, s.prefix+hash).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("backend", "redis").Wrap(err)
	}
	if rec.UserID != "" {
		if err := s.client.SRem(ctx, s.userPrefix+rec.UserID, hash).Err(); err != nil {
			return oops.Code("SESSION_INDEX_FAILED").With("backend", "redis").Wrap(err)
		}
	}
	return nil
}

func (s *RedisSessionStore) DeleteByUserID(ctx context.Context, userID domain.UserID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	userKey := s.userPrefix + userID.String()
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").With("backend", "redis").Wrap(err)
	}
	keys := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		keys = append(keys, s.prefix+hash)
	}
	var deleted int64
	if len(keys) > 0 {
		if deleted, err = s.client.Del(ctx, keys...).Result(); err != nil {
			return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").With("backend", "redis").Wrap(err)
		}
	}
	if err := s.client.Del(ctx, userKey).Err(); err != nil {
		return deleted, oops.Code("SESSION_DELETE_BY_USER_FAILED").With("backend", "redis").Wrap(err)
	}
	return deleted, nil
}

// DeleteExpired no hace nada: Redis expira las claves por TTL.
func (s *RedisSessionStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisSessionStore) put(ctx context.Context, session domain.Session) error {
	d := session.Data()
	payload, err := json.Marshal(redisSessionRecord{
		ID:        d.ID,
		UserID:    d.UserID,
		ExpiresAt: d.ExpiresAt,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	})
	if err != nil {
		return err
	}
	ttl := s.ttl(session)
	if ttl <= 0 {
		// Ya vencida: se guarda brevemente para que la validacion la detecte y la borre.
		ttl = time.Minute
	}
	return s.client.Set(ctx, s.prefix+d.TokenHash, payload, ttl).Err()
}

// ttl agrega un margen para que una sesion vencida siga visible hasta que se valide.
func (s *RedisSessionStore) ttl(session domain.Session) time.Duration {
	remaining := session.ExpiresAt().Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return remaining + time.Minute
}
