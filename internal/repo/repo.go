// Package repo declares the storage contracts shared by the PostgreSQL and in-memory
// credential stores.
package repo

import (
	"context"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/google/uuid"
)

// UsersRepo persists user credentials. Finds only see active users and return
// (nil, nil) when nothing matches. Mutations on a missing user return domain.ErrNotFound.
type UsersRepo interface {
	// Create runs the before-save hook with isNew=true and inserts the user.
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// Save runs the before-save hook and writes the profile and password fields of an active
	// user. Reset and active state are left to their own methods.
	Save(ctx context.Context, u *domain.User) error

	SetPasswordReset(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error
	ClearPasswordReset(ctx context.Context, id uuid.UUID) error
	// FindByResetToken returns the active user holding tokenHash with an expiry after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	// RedeemPasswordReset sets a new password and clears the reset fields in one step,
	// only while tokenHash is still unexpired at now. It returns (nil, nil) if the token
	// was already redeemed or has expired.
	RedeemPasswordReset(ctx context.Context, tokenHash string, now time.Time, password, confirm string) (*domain.User, error)
	// ClearExpiredResets drops reset fields whose expiry is before now.
	ClearExpiredResets(ctx context.Context, now time.Time) (int64, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
