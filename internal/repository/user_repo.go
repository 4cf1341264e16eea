package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"authsuite/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios y sus cuentas externas.
type UserRepository interface {
	FindByID(ctx context.Context, id domain.UserID) (domain.User, error)
	FindByEmail(ctx context.Context, email domain.Email) (domain.User, error)
	FindByExternalID(ctx context.Context, provider, externalID string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
	ExistsByEmail(ctx context.Context, email domain.Email) (bool, error)
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id domain.UserID) error
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	pool Pool
}

func NewPgUserRepository(pool Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.password_hash, u.first_name, u.last_name, u.is_active,
		u.created_at, u.updated_at, u.last_login_at, u.mfa_enabled, u.mfa_secret`

func (r *PgUserRepository) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return r.findOne(ctx, "find user by id", query, id.String())
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1`
	return r.findOne(ctx, "find user by email", query, email.String())
}

func (r *PgUserRepository) FindByExternalID(ctx context.Context, provider, externalID string) (domain.User, error) {
	const query = `SELECT ` + userColumns + `
		FROM users u
		JOIN user_external_accounts a ON a.user_id = u.id
		WHERE a.provider = $1 AND a.external_id = $2`
	return r.findOne(ctx, "find user by external id", query, provider, externalID)
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email domain.Email) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, email.String()).Scan(&exists); err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").
			With("operation", "exists by email").
			Wrap(err)
	}
	return exists, nil
}

// Save inserta o actualiza el usuario y sus cuentas externas en una transaccion.
func (r *PgUserRepository) Save(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active,
			created_at, updated_at, last_login_at, mfa_enabled, mfa_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at,
			last_login_at = EXCLUDED.last_login_at,
			mfa_enabled = EXCLUDED.mfa_enabled,
			mfa_secret = EXCLUDED.mfa_secret
	`
	d := user.Data()
	args := []any{
		d.ID,
		d.Email,
		nullableString(d.PasswordHash),
		d.FirstName,
		d.LastName,
		d.IsActive,
		d.CreatedAt,
		d.UpdatedAt,
		d.LastLoginAt,
		d.MfaEnabled,
		nullableString(d.MfaSecret),
	}
	return r.write(ctx, "save user", query, args, d, false)
}

// Update persiste un usuario existente; devuelve ErrNotFound si no existe.
func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			first_name = $4,
			last_name = $5,
			is_active = $6,
			updated_at = $7,
			last_login_at = $8,
			mfa_enabled = $9,
			mfa_secret = $10
		WHERE id = $1
	`
	d := user.Data()
	args := []any{
		d.ID,
		d.Email,
		nullableString(d.PasswordHash),
		d.FirstName,
		d.LastName,
		d.IsActive,
		d.UpdatedAt,
		d.LastLoginAt,
		d.MfaEnabled,
		nullableString(d.MfaSecret),
	}
	return r.write(ctx, "update user", query, args, d, true)
}

func (r *PgUserRepository) Delete(ctx context.Context, id domain.UserID) error {
	const query = `DELETE FROM users WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id.String()); err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id.String()).
			Wrap(err)
	}
	return nil
}

func (r *PgUserRepository) write(ctx context.Context, operation, query string, args []any, d domain.UserData, mustExist bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("USER_TX_BEGIN_FAILED").With("operation", operation).Wrap(err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err == nil && mustExist && tag.RowsAffected() == 0 {
		err = ErrNotFound
	}
	if err == nil {
		err = r.insertAccounts(ctx, tx, d.ExternalAccounts)
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return mapWriteError(err, operation, d.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("USER_TX_COMMIT_FAILED").
			With("operation", operation).
			With("user_id", d.ID).
			Wrap(err)
	}
	return nil
}

func (r *PgUserRepository) insertAccounts(ctx context.Context, tx pgx.Tx, accounts []domain.ExternalAccount) error {
	const query = `
		INSERT INTO user_external_accounts (id, user_id, provider, external_id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	for _, acc := range accounts {
		if _, err := tx.Exec(ctx, query,
			acc.ID,
			acc.UserID.String(),
			acc.Provider,
			acc.ExternalID,
			nullableString(acc.Email),
			acc.CreatedAt,
			acc.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func mapWriteError(err error, operation, userID string) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if pgErr, ok := uniqueViolation(err); ok {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return ErrDuplicateEmail
		case "user_external_accounts_provider_external_id_key", "user_external_accounts_user_id_provider_key":
			return ErrExternalAccountTaken
		}
	}
	return oops.Code("USER_WRITE_FAILED").
		With("operation", operation).
		With("user_id", userID).
		Wrap(err)
}

func (r *PgUserRepository) findOne(ctx context.Context, operation, query string, args ...any) (domain.User, error) {
	var (
		d            domain.UserData
		passwordHash *string
		mfaSecret    *string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.Email,
		&passwordHash,
		&d.FirstName,
		&d.LastName,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.LastLoginAt,
		&d.MfaEnabled,
		&mfaSecret,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}
	d.PasswordHash = derefString(passwordHash)
	d.MfaSecret = derefString(mfaSecret)

	accounts, err := r.loadAccounts(ctx, d.ID)
	if err != nil {
		return domain.User{}, err
	}
	d.ExternalAccounts = accounts

	user, err := domain.ReconstructUser(d)
	if err != nil {
		return domain.User{}, oops.Code("USER_CORRUPTED").With("user_id", d.ID).Wrap(err)
	}
	return user, nil
}

func (r *PgUserRepository) loadAccounts(ctx context.Context, userID string) ([]domain.ExternalAccount, error) {
	const query = `
		SELECT id, user_id, provider, external_id, email, created_at, updated_at
		FROM user_external_accounts
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, oops.Code("USER_ACCOUNTS_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	var accounts []domain.ExternalAccount
	for rows.Next() {
		var (
			acc   domain.ExternalAccount
			owner string
			email *string
		)
		if err := rows.Scan(&acc.ID, &owner, &acc.Provider, &acc.ExternalID, &email, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, oops.Code("USER_ACCOUNTS_SCAN_FAILED").With("user_id", userID).Wrap(err)
		}
		acc.UserID = domain.UserID(owner)
		acc.Email = derefString(email)
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_ACCOUNTS_ROWS_FAILED").With("user_id", userID).Wrap(err)
	}
	return accounts, nil
}
