package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/repo"
	"github.com/diagnosis/natours/pkg/events"
	"github.com/diagnosis/natours/pkg/logger"
	"github.com/google/uuid"
)

const MsgNoDocument = "No document found with that ID"

type UserService struct {
	users  repo.UsersRepo
	events events.Publisher
}

func NewUserService(users repo.UsersRepo, publisher events.Publisher) *UserService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &UserService{users: users, events: publisher}
}

// UpdateMe applies a self-service profile change. Password fields are refused.
func (s *UserService) UpdateMe(ctx context.Context, id uuid.UUID, req *domain.UpdateMeRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	u, err := s.users.UpdateProfile(ctx, id, req.Patch())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperr.Authentication(MsgUserGone)
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// DeleteMe deactivates the account. The row is kept but no longer visible to finds.
func (s *UserService) DeleteMe(ctx context.Context, u *domain.User) error {
	if err := s.users.Deactivate(ctx, u.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperr.Authentication(MsgUserGone)
		}
		return fmt.Errorf("deactivate user: %w", err)
	}
	evt := events.UserEvent{UserID: u.ID.String(), Email: u.Email, Role: string(u.Role), OccurredAt: time.Now().UTC()}
	if err := s.events.Publish(ctx, events.UserDeactivated, evt); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", events.UserDeactivated, "error", err)
	}
	return nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound(MsgNoDocument)
	}
	return u, nil
}

// Update is the administrative edit. It never touches passwords.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	u, err := s.users.UpdateProfile(ctx, id, req.Patch())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperr.NotFound(MsgNoDocument)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return apperr.NotFound(MsgNoDocument)
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
