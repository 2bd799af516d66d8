package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
reset_token_hash, reset_expires, active, created_at, updated_at`

const uniqueViolation = "23505"

type UsersRepoImpl struct {
	pool       *pgxpool.Pool
	beforeSave domain.BeforeSaveFunc
}

func NewUsersRepo(pool *pgxpool.Pool, beforeSave domain.BeforeSaveFunc) *UsersRepoImpl {
	return &UsersRepoImpl{pool: pool, beforeSave: beforeSave}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Photo, &role, &u.PasswordHash, &u.PasswordChangedAt,
		&u.ResetTokenHash, &u.ResetExpires, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// findOne maps pgx.ErrNoRows to (nil, nil).
func (r *UsersRepoImpl) findOne(ctx context.Context, q string, args ...any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	u, err := scanUser(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *UsersRepoImpl) runHook(u *domain.User, isNew bool) error {
	if r.beforeSave == nil {
		return nil
	}
	return r.beforeSave(u, isNew)
}

func duplicateEmail(err error, email string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &domain.DuplicateError{Field: "email", Value: email}
	}
	return err
}

func (r *UsersRepoImpl) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := r.runHook(u, true); err != nil {
		return nil, err
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	q := `
INSERT INTO users (name, email, photo, role, password_hash, password_changed_at)
VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'default.jpg'), $4, $5, $6)
RETURNING ` + userColumns
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := scanUser(r.pool.QueryRow(ctx, q,
		u.Name, u.Email, u.Photo, string(u.Role), u.PasswordHash, u.PasswordChangedAt,
	))
	if err != nil {
		return nil, duplicateEmail(err, u.Email)
	}
	return out, nil
}

func (r *UsersRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1) AND active`, email)
}

func (r *UsersRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 AND active`, id)
}

// saveUserSQL leaves reset_token_hash, reset_expires and active alone; those have their own writers.
const saveUserSQL = `
UPDATE users
SET name=$2, email=$3, photo=$4, role=$5, password_hash=$6, password_changed_at=$7, updated_at=now()
WHERE id=$1 AND active`

func (r *UsersRepoImpl) Save(ctx context.Context, u *domain.User) error {
	if err := r.runHook(u, false); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, saveUserSQL,
		u.ID, u.Name, u.Email, u.Photo, string(u.Role), u.PasswordHash, u.PasswordChangedAt,
	)
	if err != nil {
		return duplicateEmail(err, u.Email)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UsersRepoImpl) SetPasswordReset(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	const q = `UPDATE users SET reset_token_hash=$2, reset_expires=$3, updated_at=now() WHERE id=$1 AND active`
	return r.exec(ctx, q, id, tokenHash, expires)
}

func (r *UsersRepoImpl) ClearPasswordReset(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE users SET reset_token_hash=NULL, reset_expires=NULL, updated_at=now() WHERE id=$1`
	return r.exec(ctx, q, id)
}

func (r *UsersRepoImpl) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token_hash=$1 AND reset_expires > $2 AND active`,
		tokenHash, now)
}

func (r *UsersRepoImpl) RedeemPasswordReset(ctx context.Context, tokenHash string, now time.Time, password, confirm string) (*domain.User, error) {
	staged := &domain.User{}
	staged.SetPassword(password, confirm)
	if err := r.runHook(staged, false); err != nil {
		return nil, err
	}
	// Swap the password and burn the token atomically, only if the token is still live.
	q := `
UPDATE users
SET password_hash=$3, password_changed_at=$4, reset_token_hash=NULL, reset_expires=NULL, updated_at=now()
WHERE reset_token_hash=$1
  AND reset_expires > $2
  AND active
RETURNING ` + userColumns
	return r.findOne(ctx, q, tokenHash, now, staged.PasswordHash, staged.PasswordChangedAt)
}

func (r *UsersRepoImpl) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET reset_token_hash=NULL, reset_expires=NULL
WHERE reset_expires IS NOT NULL AND reset_expires <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *UsersRepoImpl) UpdateProfile(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	if patch.Empty() {
		u, err := r.FindByID(ctx, id)
		if err == nil && u == nil {
			err = domain.ErrNotFound
		}
		return u, err
	}

	sets := []string{"updated_at=now()"}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Photo != nil {
		add("photo", *patch.Photo)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 AND active RETURNING ` + userColumns
	u, err := r.findOne(ctx, q, args...)
	if err != nil {
		email := ""
		if patch.Email != nil {
			email = *patch.Email
		}
		return nil, duplicateEmail(err, email)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepoImpl) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET active=false, updated_at=now() WHERE id=$1 AND active`, id)
}

func (r *UsersRepoImpl) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UsersRepoImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM users WHERE id=$1`, id)
}

func (r *UsersRepoImpl) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
