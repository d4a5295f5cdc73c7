package user

import (
	"context"
	"fmt"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
}

// PermissionSource supplies a user's effective permission names; the
// access control resolver satisfies this.
type PermissionSource interface {
	GetUserPermissions(ctx context.Context, userID int64, includeGroups bool) ([]string, error)
}

type Service struct {
	repo        Repository
	permissions PermissionSource
}

func NewService(repo Repository, permissions PermissionSource) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	perms, err := s.permissions.GetUserPermissions(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	u.Permissions = perms

	return u, nil
}
