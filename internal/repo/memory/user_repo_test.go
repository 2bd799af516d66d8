package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/repo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ repo.UsersRepo = (*UsersRepo)(nil)

// fakeHook stores "hashed:<pw>" and stamps PasswordChangedAt on updates.
func fakeHook(changedAt time.Time) domain.BeforeSaveFunc {
	return func(u *domain.User, isNew bool) error {
		if !u.PasswordModified() {
			return nil
		}
		if err := domain.ValidatePassword(u.Password, u.PasswordConfirm); err != nil {
			return err
		}
		u.PasswordHash = "hashed:" + u.Password
		u.ClearStagedPassword()
		if !isNew {
			t := changedAt
			u.PasswordChangedAt = &t
		}
		return nil
	}
}

func newUser(email string) *domain.User {
	u := &domain.User{Name: "Ann", Email: email}
	u.SetPassword("pass1234", "pass1234")
	return u
}

func TestCreate_RunsHookAndDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	in := newUser("ann@example.com")
	u, err := r.Create(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.Equal(t, "default.jpg", u.Photo)
	assert.Equal(t, "hashed:pass1234", u.PasswordHash)
	assert.Empty(t, u.Password)
	assert.Nil(t, u.PasswordChangedAt, "creation never stamps a password change")
	assert.True(t, u.Active)
	assert.Equal(t, "pass1234", in.Password, "caller's record is left untouched")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	_, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)

	_, err = r.Create(ctx, newUser("ANN@example.com"))
	var dup *domain.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)
}

func TestCreate_HookValidationFails(t *testing.T) {
	t.Parallel()
	r := NewUsersRepo(fakeHook(time.Now()))

	u := &domain.User{Name: "Ann", Email: "ann@example.com"}
	u.SetPassword("pass1234", "different")
	_, err := r.Create(context.Background(), u)
	assert.EqualError(t, err, "Passwords are not the same!")

	got, err := r.FindByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFind_ExcludesInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	u, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)
	require.NoError(t, r.Deactivate(ctx, u.ID))

	byID, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, byID)

	byEmail, err := r.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)

	assert.ErrorIs(t, r.Deactivate(ctx, u.ID), domain.ErrNotFound)
}

func TestRedeemPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	changed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewUsersRepo(fakeHook(changed))

	u, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "h1", now.Add(10*time.Minute)))

	found, err := r.FindByResetToken(ctx, "h1", now)
	require.NoError(t, err)
	require.NotNil(t, found)

	expired, err := r.FindByResetToken(ctx, "h1", now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, expired)

	got, err := r.RedeemPasswordReset(ctx, "h1", now, "newpass123", "newpass123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hashed:newpass123", got.PasswordHash)
	assert.Nil(t, got.ResetTokenHash)
	assert.Nil(t, got.ResetExpires)
	require.NotNil(t, got.PasswordChangedAt)
	assert.Equal(t, changed, *got.PasswordChangedAt)

	again, err := r.RedeemPasswordReset(ctx, "h1", now, "otherpass1", "otherpass1")
	require.NoError(t, err)
	assert.Nil(t, again, "a token can be redeemed only once")
}

func TestRedeemPasswordReset_EmptyPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	u, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "h1", now.Add(time.Minute)))

	got, err := r.RedeemPasswordReset(ctx, "h1", now, "", "")
	require.Error(t, err)
	assert.Nil(t, got)

	stored, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hashed:pass1234", stored.PasswordHash)
	assert.NotNil(t, stored.ResetTokenHash, "a rejected password leaves the token live")
}

func TestSave_KeepsResetAndActiveState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))
	now := time.Now()

	u, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)
	stale, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "h1", now.Add(time.Minute)))
	stale.SetPassword("newpass123", "newpass123")
	require.NoError(t, r.Save(ctx, stale))

	stored, err := r.FindByResetToken(ctx, "h1", now)
	require.NoError(t, err)
	require.NotNil(t, stored, "saving a stale copy must not drop a newer reset token")
	assert.Equal(t, "hashed:newpass123", stored.PasswordHash)

	require.NoError(t, r.Deactivate(ctx, u.ID))
	stale.Name = "Back Again"
	assert.ErrorIs(t, r.Save(ctx, stale), domain.ErrNotFound)

	gone, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "saving a stale copy must not reactivate the user")
}

func TestRedeemPasswordReset_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	u, err := r.Create(ctx, newUser("ann@example.com"))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "h1", now.Add(time.Minute)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.RedeemPasswordReset(ctx, "h1", now, "newpass123", "newpass123")
			if err == nil && got != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestClearExpiredResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))
	now := time.Now()

	a, err := r.Create(ctx, newUser("a@example.com"))
	require.NoError(t, err)
	b, err := r.Create(ctx, newUser("b@example.com"))
	require.NoError(t, err)

	require.NoError(t, r.SetPasswordReset(ctx, a.ID, "ha", now.Add(-time.Minute)))
	require.NoError(t, r.SetPasswordReset(ctx, b.ID, "hb", now.Add(time.Minute)))

	n, err := r.ClearExpiredResets(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	live, err := r.FindByResetToken(ctx, "hb", now)
	require.NoError(t, err)
	assert.NotNil(t, live)
}

func TestUpdateProfileAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUsersRepo(fakeHook(time.Now()))

	a, err := r.Create(ctx, newUser("a@example.com"))
	require.NoError(t, err)
	_, err = r.Create(ctx, newUser("b@example.com"))
	require.NoError(t, err)

	name := "Annie"
	u, err := r.UpdateProfile(ctx, a.ID, domain.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Annie", u.Name)

	taken := "b@example.com"
	_, err = r.UpdateProfile(ctx, a.ID, domain.UserPatch{Email: &taken})
	var dup *domain.DuplicateError
	assert.True(t, errors.As(err, &dup))

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.Delete(ctx, a.ID))
	assert.ErrorIs(t, r.Delete(ctx, a.ID), domain.ErrNotFound)
	_, err = r.UpdateProfile(ctx, a.ID, domain.UserPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
