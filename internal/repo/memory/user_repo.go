// Package memory holds an in-process credential store used when no DATABASE_URL is set
// and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/google/uuid"
)

type UsersRepo struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*domain.User
	beforeSave domain.BeforeSaveFunc
	now        func() time.Time
}

func NewUsersRepo(beforeSave domain.BeforeSaveFunc) *UsersRepo {
	return &UsersRepo{
		users:      make(map[uuid.UUID]*domain.User),
		beforeSave: beforeSave,
		now:        time.Now,
	}
}

// clone hands out copies so callers never share state with the store.
func clone(u *domain.User) *domain.User {
	c := *u
	c.ClearStagedPassword()
	return &c
}

func (r *UsersRepo) runHook(u *domain.User, isNew bool) error {
	if r.beforeSave == nil {
		return nil
	}
	return r.beforeSave(u, isNew)
}

// emailTaken must be called with mu held.
func (r *UsersRepo) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range r.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UsersRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	staged := *u
	if err := r.runHook(&staged, true); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(staged.Email, uuid.Nil) {
		return nil, &domain.DuplicateError{Field: "email", Value: staged.Email}
	}
	now := r.now()
	staged.ID = uuid.New()
	if staged.Role == "" {
		staged.Role = domain.RoleUser
	}
	if staged.Photo == "" {
		staged.Photo = "default.jpg"
	}
	staged.Active = true
	staged.CreatedAt, staged.UpdatedAt = now, now
	r.users[staged.ID] = clone(&staged)
	return clone(&staged), nil
}

func (r *UsersRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Active && strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (r *UsersRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok && u.Active {
		return clone(u), nil
	}
	return nil, nil
}

func (r *UsersRepo) Save(_ context.Context, u *domain.User) error {
	if err := r.runHook(u, false); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok || !stored.Active {
		return domain.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return &domain.DuplicateError{Field: "email", Value: u.Email}
	}
	// Reset and active state have their own writers; a save only touches profile and password.
	stored.Name, stored.Email, stored.Photo, stored.Role = u.Name, u.Email, u.Photo, u.Role
	stored.PasswordHash, stored.PasswordChangedAt = u.PasswordHash, u.PasswordChangedAt
	stored.UpdatedAt = r.now()
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *UsersRepo) SetPasswordReset(_ context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpires = &expires
	return nil
}

func (r *UsersRepo) ClearPasswordReset(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.ResetTokenHash, u.ResetExpires = nil, nil
	return nil
}

// findByReset must be called with mu held.
func (r *UsersRepo) findByReset(tokenHash string, now time.Time) *domain.User {
	for _, u := range r.users {
		if u.Active && u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetTokenValid(now) {
			return u
		}
	}
	return nil
}

func (r *UsersRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.findByReset(tokenHash, now); u != nil {
		return clone(u), nil
	}
	return nil, nil
}

func (r *UsersRepo) RedeemPasswordReset(_ context.Context, tokenHash string, now time.Time, password, confirm string) (*domain.User, error) {
	staged := &domain.User{}
	staged.SetPassword(password, confirm)
	if err := r.runHook(staged, false); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.findByReset(tokenHash, now)
	if u == nil {
		return nil, nil
	}
	u.PasswordHash = staged.PasswordHash
	u.PasswordChangedAt = staged.PasswordChangedAt
	u.ResetTokenHash, u.ResetExpires = nil, nil
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *UsersRepo) ClearExpiredResets(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.ResetExpires != nil && !u.ResetExpires.After(now) {
			u.ResetTokenHash, u.ResetExpires = nil, nil
			n++
		}
	}
	return n, nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || !u.Active {
		return nil, domain.ErrNotFound
	}
	if patch.Email != nil && r.emailTaken(*patch.Email, id) {
		return nil, &domain.DuplicateError{Field: "email", Value: *patch.Email}
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Photo != nil {
		u.Photo = *patch.Photo
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *UsersRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.Active = false
	return nil
}

func (r *UsersRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		if u.Active {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *UsersRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	return nil
}
