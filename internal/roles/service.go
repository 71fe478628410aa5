package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, name, description string) (Role, error)
	Update(ctx context.Context, id int64, name, description string) (Role, error)
	Delete(ctx context.Context, id int64) error
	SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	Permissions(ctx context.Context, roleID int64) ([]rbac.Permission, error)
}

// PermissionResolver maps permission names to catalogue ids.
type PermissionResolver interface {
	ResolvePermissionIDs(ctx context.Context, names []string) ([]int64, error)
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	resolver PermissionResolver
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, resolver PermissionResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get returns the role with its permissions.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	perms, err := s.repo.Permissions(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("role permissions: %w", err)
	}
	return Detail{Role: role, Permissions: perms}, nil
}

func (s *Service) Create(ctx context.Context, name, description string) (Role, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Role{}, err
	}
	return s.repo.Create(ctx, name, strings.TrimSpace(description))
}

func (s *Service) Update(ctx context.Context, id int64, name, description string) (Role, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Role{}, err
	}
	return s.repo.Update(ctx, id, name, strings.TrimSpace(description))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", slog.Int64("role_id", id))
	return nil
}

// SetPermissions replaces the role's grants. Unknown names fail the whole
// call with a validation error and leave the grants untouched.
func (s *Service) SetPermissions(ctx context.Context, id int64, names []string) (Detail, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Detail{}, err
	}
	ids, err := s.resolver.ResolvePermissionIDs(ctx, names)
	if err != nil {
		return Detail{}, err
	}
	if err := s.repo.SetPermissions(ctx, id, ids); err != nil {
		return Detail{}, fmt.Errorf("set role permissions: %w", err)
	}
	s.logger.Info("role permissions replaced", slog.Int64("role_id", id), slog.Int("count", len(ids)))
	return s.Get(ctx, id)
}

// Permissions lists the grants of a role.
func (s *Service) Permissions(ctx context.Context, id int64) ([]rbac.Permission, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Permissions(ctx, id)
}

func normalizeName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 64 {
		return "", fmt.Errorf("%w: name is longer than 64 characters", ErrValidation)
	}
	return name, nil
}
