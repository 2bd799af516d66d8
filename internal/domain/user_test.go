package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangedPasswordAfter(t *testing.T) {
	t.Parallel()

	changed := time.Unix(1_700_000_000, 0)
	u := &User{PasswordChangedAt: &changed}

	assert.True(t, u.ChangedPasswordAfter(changed.Unix()-1), "token issued before the change is stale")
	assert.False(t, u.ChangedPasswordAfter(changed.Unix()), "same second is not stale")
	assert.False(t, u.ChangedPasswordAfter(changed.Unix()+10))

	never := &User{}
	assert.False(t, never.ChangedPasswordAfter(0))
}

func TestPasswordModified(t *testing.T) {
	t.Parallel()

	u := &User{}
	assert.False(t, u.PasswordModified())

	u.SetPassword("", "")
	assert.True(t, u.PasswordModified(), "an empty change is still a change")

	u.ClearStagedPassword()
	assert.False(t, u.PasswordModified())
	assert.Empty(t, u.Password)
	assert.Empty(t, u.PasswordConfirm)
}

func TestResetTokenValid(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hash := "abc"
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Second)

	assert.True(t, (&User{ResetTokenHash: &hash, ResetExpires: &later}).ResetTokenValid(now))
	assert.False(t, (&User{ResetTokenHash: &hash, ResetExpires: &earlier}).ResetTokenValid(now))
	assert.False(t, (&User{ResetTokenHash: &hash, ResetExpires: &now}).ResetTokenValid(now))
	assert.False(t, (&User{ResetExpires: &later}).ResetTokenValid(now))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		confirm  string
		wantErr  string
	}{
		{"ok", "pass1234", "pass1234", ""},
		{"missing", "", "", "Please provide a password"},
		{"too short", "short", "short", "Password must have at least 8 characters"},
		{"no confirm", "pass1234", "", "Please confirm your password"},
		{"mismatch", "pass1234", "pass12345", "Passwords are not the same!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.confirm)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestSignupRequest_NormalizeAndValidate(t *testing.T) {
	t.Parallel()

	req := SignupRequest{Name: "  Ann ", Email: " Ann@Example.COM ", Password: "pass1234", PasswordConfirm: "pass1234"}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "Ann", req.Name)
	assert.Equal(t, "ann@example.com", req.Email)

	bad := SignupRequest{Name: "Ann", Email: "not-an-email", Password: "pass1234", PasswordConfirm: "pass1234"}
	assert.EqualError(t, bad.Validate(), "Please provide a valid email")

	noName := SignupRequest{Email: "a@b.co"}
	assert.EqualError(t, noName.Validate(), "Please tell us your name!")
}

func TestLoginRequest_Validate(t *testing.T) {
	t.Parallel()

	assert.EqualError(t, (&LoginRequest{Email: "a@b.co"}).Validate(), "Please provide email and password!")
	assert.EqualError(t, (&LoginRequest{Password: "x"}).Validate(), "Please provide email and password!")
	assert.NoError(t, (&LoginRequest{Email: "a@b.co", Password: "x"}).Validate())
}

func TestUpdateMeRequest_RejectsPassword(t *testing.T) {
	t.Parallel()

	pw := "newpass123"
	req := UpdateMeRequest{Password: &pw}
	assert.EqualError(t, req.Validate(), "This route is not for password updates. Please use /updateMyPassword.")

	name := "  Bob "
	ok := UpdateMeRequest{Name: &name}
	require.NoError(t, ok.Validate())
	patch := ok.Patch()
	require.NotNil(t, patch.Name)
	assert.Equal(t, "Bob", *patch.Name)
	assert.Nil(t, patch.Role)
}

func TestUpdateUserRequest_Role(t *testing.T) {
	t.Parallel()

	bogus := Role("superuser")
	assert.Error(t, (&UpdateUserRequest{Role: &bogus}).Validate())

	guide := RoleGuide
	req := UpdateUserRequest{Role: &guide}
	require.NoError(t, req.Validate())
	assert.False(t, req.Patch().Empty())
	assert.True(t, UserPatch{}.Empty())
}

func TestHasRole(t *testing.T) {
	t.Parallel()

	u := &User{Role: RoleLeadGuide}
	assert.True(t, u.HasRole(RoleAdmin, RoleLeadGuide))
	assert.False(t, u.HasRole(RoleUser))
	assert.False(t, u.HasRole())
}
