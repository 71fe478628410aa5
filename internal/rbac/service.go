package rbac

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Service orchestrates RBAC operations.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// SyncCatalogue ensures every catalogue permission exists in storage.
func (s *Service) SyncCatalogue(ctx context.Context, catalogue []shared.PermissionInfo) error {
	for _, info := range catalogue {
		name := strings.TrimSpace(strings.ToLower(info.Name))
		if name == "" {
			continue
		}
		if _, err := s.store.UpsertPermission(ctx, name, strings.TrimSpace(info.Description)); err != nil {
			return fmt.Errorf("sync permission %s: %w", name, err)
		}
	}
	return nil
}

// ResolvePermissionIDs maps names to ids. Any name that is unknown yields
// ErrUnknownPermission.
func (s *Service) ResolvePermissionIDs(ctx context.Context, names []string) ([]int64, error) {
	wanted := normalizePermissions(names)
	if len(wanted) == 0 {
		return []int64{}, nil
	}
	perms, err := s.store.PermissionsByName(ctx, wanted)
	if err != nil {
		return nil, err
	}
	found := make(map[string]int64, len(perms))
	for _, p := range perms {
		found[p.Name] = p.ID
	}
	sort.Strings(wanted)
	ids := make([]int64, 0, len(wanted))
	for _, name := range wanted {
		id, ok := found[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EffectivePermissions returns deduplicated permission names for a user.
// Inactive users resolve to none.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.store.UserEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms := make([]string, len(rows))
	copy(perms, rows)
	return perms, nil
}
