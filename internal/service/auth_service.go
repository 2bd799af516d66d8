package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/platform/mailer"
	"github.com/diagnosis/natours/internal/repo"
	"github.com/diagnosis/natours/internal/utils"
	"github.com/diagnosis/natours/pkg/auth"
	"github.com/diagnosis/natours/pkg/events"
	"github.com/diagnosis/natours/pkg/logger"
	"github.com/google/uuid"
)

// Client-facing messages for the authentication gate.
const (
	MsgNotLoggedIn       = "You are not logged in! Please log in to get access."
	MsgInvalidToken      = "Invalid token. Please log in again!"
	MsgExpiredToken      = "Your token has expired! Please log in again."
	MsgUserGone          = "The user belonging to this token does no longer exist."
	MsgPasswordChanged   = "User recently changed password! Please log in again."
	MsgForbidden         = "You do not have permission to perform this action"
	MsgBadCredentials    = "Incorrect email or password"
	MsgWrongPassword     = "Your current password is wrong."
	MsgNoUserWithEmail   = "There is no user with that email address."
	MsgResetTokenInvalid = "Token is invalid or has expired"
	MsgResetMailFailed   = "There was an error sending the email. Try again later!"
)

const resetTokenBytes = 32

type AuthService struct {
	users    repo.UsersRepo
	issuer   *auth.Issuer
	hasher   PasswordHasher
	mailer   mailer.Service
	events   events.Publisher
	resetTTL time.Duration
	now      func() time.Time
}

func NewAuthService(
	users repo.UsersRepo,
	issuer *auth.Issuer,
	hasher PasswordHasher,
	mail mailer.Service,
	publisher events.Publisher,
	resetTTL time.Duration,
) *AuthService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AuthService{
		users:    users,
		issuer:   issuer,
		hasher:   hasher,
		mailer:   mail,
		events:   publisher,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for reset expiry checks.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Signup creates a regular user. Any role in the request body is ignored.
func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", apperr.Validation(err.Error())
	}

	u := &domain.User{Name: req.Name, Email: req.Email, Photo: req.Photo, Role: domain.RoleUser}
	u.SetPassword(req.Password, req.PasswordConfirm)

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issue(created)
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, events.UserSignedUp, created)
	return created, token, nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", apperr.Validation(err.Error())
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, "", apperr.Authentication(MsgBadCredentials)
	}
	ok, err := s.hasher.Compare(req.Password, u.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, "", apperr.Authentication(MsgBadCredentials)
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to its active user. Checks run in a fixed order
// and stop at the first failure.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperr.Authentication(MsgNotLoggedIn)
	}

	claims, err := s.issuer.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperr.Authentication(MsgExpiredToken)
		}
		return nil, apperr.Authentication(MsgInvalidToken)
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, apperr.Authentication(MsgInvalidToken)
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, apperr.Authentication(MsgUserGone)
	}

	if u.ChangedPasswordAfter(claims.IssuedAtUnix()) {
		return nil, apperr.Authentication(MsgPasswordChanged)
	}
	return u, nil
}

// Authorize checks that u holds one of roles.
func (s *AuthService) Authorize(u *domain.User, roles ...domain.Role) error {
	return Authorize(u, roles...)
}

func Authorize(u *domain.User, roles ...domain.Role) error {
	if u == nil {
		return apperr.Authentication(MsgNotLoggedIn)
	}
	if !u.HasRole(roles...) {
		return apperr.Authorization(MsgForbidden)
	}
	return nil
}

// ForgotPassword stores a hashed reset token and mails the plaintext one. resetURL
// builds the link from the plaintext token. If delivery fails the token is withdrawn.
func (s *AuthService) ForgotPassword(ctx context.Context, req *domain.ForgotPasswordRequest, resetURL func(token string) string) error {
	req.Email = utils.NormalizeEmail(req.Email)
	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return apperr.NotFound(MsgNoUserWithEmail)
	}

	raw, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.users.SetPasswordReset(ctx, u.ID, HashResetToken(raw), s.now().Add(s.resetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg := mailer.PasswordResetMessage(u.Email, u.Name, resetURL(raw), s.resetTTL)
	if _, err := s.mailer.Send(ctx, msg); err != nil {
		if clearErr := s.users.ClearPasswordReset(ctx, u.ID); clearErr != nil {
			logger.ErrorContext(ctx, "failed to withdraw reset token", "error", clearErr, "user_id", u.ID)
		}
		logger.ErrorContext(ctx, "failed to send reset email", "error", err, "user_id", u.ID)
		return apperr.Delivery(MsgResetMailFailed, err)
	}

	s.publish(ctx, events.UserPasswordResetRequested, u)
	return nil
}

// ResetPassword redeems a plaintext reset token. The token is single-use: the password
// swap and token removal happen in one store operation.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	hash := HashResetToken(rawToken)
	now := s.now()

	holder, err := s.users.FindByResetToken(ctx, hash, now)
	if err != nil {
		return nil, "", fmt.Errorf("find reset token: %w", err)
	}
	if holder == nil {
		return nil, "", apperr.Validation(MsgResetTokenInvalid)
	}
	if err := domain.ValidatePassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, "", apperr.Validation(err.Error())
	}

	u, err := s.users.RedeemPasswordReset(ctx, hash, now, req.Password, req.PasswordConfirm)
	if err != nil {
		return nil, "", fmt.Errorf("redeem reset token: %w", err)
	}
	if u == nil {
		return nil, "", apperr.Validation(MsgResetTokenInvalid)
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, events.UserPasswordChanged, u)
	return u, token, nil
}

// UpdatePassword changes the password of an authenticated user after re-checking the
// current one.
func (s *AuthService) UpdatePassword(ctx context.Context, current *domain.User, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if current == nil {
		return nil, "", apperr.Authentication(MsgNotLoggedIn)
	}
	u, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, "", apperr.Authentication(MsgUserGone)
	}

	ok, err := s.hasher.Compare(req.PasswordCurrent, u.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, "", apperr.Authentication(MsgWrongPassword)
	}
	if err := domain.ValidatePassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, "", apperr.Validation(err.Error())
	}

	u.SetPassword(req.Password, req.PasswordConfirm)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, "", fmt.Errorf("save user: %w", err)
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, events.UserPasswordChanged, u)
	return u, token, nil
}

// TokenTTL reports how long an issued token is valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *AuthService) issue(u *domain.User) (string, error) {
	token, err := s.issuer.Issue(u.ID.String())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *AuthService) publish(ctx context.Context, subject string, u *domain.User) {
	evt := events.UserEvent{
		UserID:     u.ID.String(),
		Email:      u.Email,
		Role:       string(u.Role),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, subject, evt); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}

// HashResetToken is the stored form of a plaintext reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
