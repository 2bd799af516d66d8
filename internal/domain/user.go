package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/natours/internal/utils"
	"github.com/google/uuid"
)

type Role string

// Valid user roles
const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var validRoles = map[Role]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(role Role) bool {
	return validRoles[role]
}

const MinPasswordLength = 8

type User struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Photo             string     `json:"photo,omitempty"`
	Role              Role       `json:"role"`
	PasswordHash      string     `json:"-"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	ResetTokenHash    *string    `json:"-"`
	ResetExpires      *time.Time `json:"-"`
	Active            bool       `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	// Password and PasswordConfirm carry a pending plaintext change. The store's
	// before-save hook turns them into PasswordHash and clears them.
	Password        string `json:"-"`
	PasswordConfirm string `json:"-"`

	passwordStaged bool
}

// BeforeSaveFunc prepares a user record for persistence. isNew is true on insert.
type BeforeSaveFunc func(u *User, isNew bool) error

// SetPassword stages a password change for the next save.
func (u *User) SetPassword(password, confirm string) {
	u.Password = password
	u.PasswordConfirm = confirm
	u.passwordStaged = true
}

// PasswordModified reports whether a password change is staged, including an empty one.
func (u *User) PasswordModified() bool {
	return u.passwordStaged || u.Password != "" || u.PasswordConfirm != ""
}

// ClearStagedPassword drops any pending plaintext change.
func (u *User) ClearStagedPassword() {
	u.Password, u.PasswordConfirm = "", ""
	u.passwordStaged = false
}

// ChangedPasswordAfter reports whether the password changed after a token issued at iat
// (unix seconds). Comparison is in whole seconds.
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat < u.PasswordChangedAt.Unix()
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ResetTokenValid reports whether a stored reset token is still redeemable at now.
func (u *User) ResetTokenValid(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetExpires != nil && u.ResetExpires.After(now)
}

// ValidatePassword checks a staged password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if password == "" {
		return fmt.Errorf("Please provide a password")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("Password must have at least %d characters", MinPasswordLength)
	}
	if confirm == "" {
		return fmt.Errorf("Please confirm your password")
	}
	if password != confirm {
		return fmt.Errorf("Passwords are not the same!")
	}
	return nil
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Photo           string `json:"photo,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeRequest is the self-service profile update. Password fields are decoded
// only so they can be rejected.
type UpdateMeRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Photo           *string `json:"photo,omitempty"`
	Password        *string `json:"password,omitempty"`
	PasswordConfirm *string `json:"passwordConfirm,omitempty"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Photo *string `json:"photo,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

// UserPatch is a partial update applied by the store. Nil fields are left alone.
type UserPatch struct {
	Name  *string
	Email *string
	Photo *string
	Role  *Role
}

func (r *SignupRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
	r.Name = utils.NormalizeString(r.Name)
	r.Photo = utils.NormalizeString(r.Photo)
}

func (r *SignupRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("Please tell us your name!")
	}
	if r.Email == "" {
		return fmt.Errorf("Please provide your email")
	}
	if !utils.IsValidEmail(r.Email) {
		return fmt.Errorf("Please provide a valid email")
	}
	return ValidatePassword(r.Password, r.PasswordConfirm)
}

func (r *LoginRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("Please provide email and password!")
	}
	return nil
}

func (r *UpdateMeRequest) Validate() error {
	if r.Password != nil || r.PasswordConfirm != nil {
		return fmt.Errorf("This route is not for password updates. Please use /updateMyPassword.")
	}
	return validateProfile(r.Name, r.Email)
}

// Patch keeps only the fields a user may change on their own profile.
func (r *UpdateMeRequest) Patch() UserPatch {
	return UserPatch{Name: trimmed(r.Name), Email: normalizedEmail(r.Email), Photo: trimmed(r.Photo)}
}

func (r *UpdateUserRequest) Validate() error {
	if r.Role != nil && !IsValidRole(*r.Role) {
		return fmt.Errorf("Role is either: user, guide, lead-guide, admin")
	}
	return validateProfile(r.Name, r.Email)
}

func (r *UpdateUserRequest) Patch() UserPatch {
	return UserPatch{Name: trimmed(r.Name), Email: normalizedEmail(r.Email), Photo: trimmed(r.Photo), Role: r.Role}
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Photo == nil && p.Role == nil
}

func validateProfile(name, email *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return fmt.Errorf("Please tell us your name!")
	}
	if email != nil && !utils.IsValidEmail(*email) {
		return fmt.Errorf("Please provide a valid email")
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := utils.NormalizeString(*s)
	return &v
}

func normalizedEmail(s *string) *string {
	if s == nil {
		return nil
	}
	v := utils.NormalizeEmail(*s)
	return &v
}
