package service

import (
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) (bool, error)
}

type Argon2Hasher struct {
	params *argon2id.Params
}

func NewArgon2Hasher(memory, iterations uint32, parallelism uint8) *Argon2Hasher {
	p := *argon2id.DefaultParams
	if memory > 0 {
		p.Memory = memory
	}
	if iterations > 0 {
		p.Iterations = iterations
	}
	if parallelism > 0 {
		p.Parallelism = parallelism
	}
	return &Argon2Hasher{params: &p}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	return argon2id.CreateHash(password, h.params)
}

func (h *Argon2Hasher) Compare(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}

// PasswordHook returns the before-save hook for user records. When a password change is
// staged it validates it, replaces it with a hash and, for existing users, stamps
// PasswordChangedAt at now minus skew so a token issued in the same second stays valid.
func PasswordHook(hasher PasswordHasher, skew time.Duration, now func() time.Time) domain.BeforeSaveFunc {
	if now == nil {
		now = time.Now
	}
	return func(u *domain.User, isNew bool) error {
		if !u.PasswordModified() {
			return nil
		}
		if err := domain.ValidatePassword(u.Password, u.PasswordConfirm); err != nil {
			return apperr.Validation(err.Error())
		}
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		u.ClearStagedPassword()
		if !isNew {
			changed := now().Add(-skew)
			u.PasswordChangedAt = &changed
		}
		return nil
	}
}
