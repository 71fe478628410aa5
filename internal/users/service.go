package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	Roles(ctx context.Context, userID int64) ([]RoleRef, error)
}

// AuditPort records account changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	cost   int
}

var validate = validator.New()

// NewService builds Service instance. cost is the bcrypt cost; zero selects
// bcrypt.DefaultCost.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cost int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, audit: audit, logger: logger, cost: cost}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	return s.repo.List(ctx, filter)
}

// Get loads a user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: invalid id", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create registers an account with a hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return User{}, fmt.Errorf("%w: email %q is not valid", ErrValidation, email)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	created, err := s.repo.Create(ctx, User{Email: email, Name: name, PasswordHash: hash, IsActive: active})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "USER_CREATED", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// Update changes the name or active flag.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrValidation)
		}
		current.Name = name
	}
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "USER_UPDATED", id, map[string]any{"name": updated.Name, "is_active": updated.IsActive})
	return updated, nil
}

// ChangePassword stores a new password hash. Users changing their own
// password must present the current one.
func (s *Service) ChangePassword(ctx context.Context, id int64, in PasswordChange) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if shared.ActorID(ctx) == id {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Current)); err != nil {
			return ErrWrongPassword
		}
	}
	hash, err := s.hash(in.New)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, hash); err != nil {
		return err
	}
	s.record(ctx, "USER_PASSWORD_CHANGED", id, nil)
	return nil
}

// AssignRole grants roleID to the user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if roleID <= 0 {
		return fmt.Errorf("%w: invalid role id", ErrValidation)
	}
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, "USER_ROLE_ASSIGNED", userID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveRole revokes roleID from the user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, "USER_ROLE_REMOVED", userID, map[string]any{"role_id": roleID})
	return nil
}

// Roles lists the roles granted to the user.
func (s *Service) Roles(ctx context.Context, userID int64) ([]RoleRef, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Roles(ctx, userID)
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password is too long", ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprint(id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("user audit failed", slog.String("action", action), slog.Any("error", err))
	}
}
