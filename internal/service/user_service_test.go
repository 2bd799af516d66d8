package service

import (
	"context"
	"testing"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "ann@example.com")

	_, err := f.svc.UpdateMe(ctx, u.ID, &domain.UpdateMeRequest{Password: ptr("newpass123")})
	requireAppErr(t, err, apperr.KindValidation, "This route is not for password updates. Please use /updateMyPassword.")

	got, err := f.svc.UpdateMe(ctx, u.ID, &domain.UpdateMeRequest{Name: ptr(" Annie "), Email: ptr("Annie@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", got.Name)
	assert.Equal(t, "annie@example.com", got.Email)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "ann@example.com")
	f.signup(t, "bob@example.com")

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := f.svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)

	promoted, err := f.svc.Update(ctx, u.ID, &domain.UpdateUserRequest{Role: ptr(domain.RoleGuide)})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuide, promoted.Role)

	_, err = f.svc.Update(ctx, u.ID, &domain.UpdateUserRequest{Role: ptr(domain.Role("root"))})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.NoError(t, f.svc.Delete(ctx, u.ID))

	_, err = f.svc.Get(ctx, u.ID)
	requireAppErr(t, err, apperr.KindNotFound, MsgNoDocument)
	err = f.svc.Delete(ctx, uuid.New())
	requireAppErr(t, err, apperr.KindNotFound, MsgNoDocument)
	_, err = f.svc.Update(ctx, uuid.New(), &domain.UpdateUserRequest{Name: ptr("x")})
	requireAppErr(t, err, apperr.KindNotFound, MsgNoDocument)
}
