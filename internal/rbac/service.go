package rbac

import (
	"context"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/permission"
)

// RepositoryPort defines the persistence operations the rbac service
// consumes.
type RepositoryPort interface {
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	PermissionsByRoleForUser(ctx context.Context, userID int64) (map[string][]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, name, description string) (Permission, error)
}

// Service orchestrates RBAC queries over the repository.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RoleNamesForUser returns the names of the roles held by a user.
func (s *Service) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.RoleNamesForUser(ctx, userID)
}

// EffectivePermissions returns the deduplicated permission names a user
// holds through all of its roles. The set is derived per call and never
// cached, so revoked grants take effect immediately.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	byRole, err := s.repo.PermissionsByRoleForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return permission.NewSet(byRole).Names(), nil
}

// EffectiveSet returns the user's effective permissions as a Set.
func (s *Service) EffectiveSet(ctx context.Context, userID int64) (permission.Set, error) {
	byRole, err := s.repo.PermissionsByRoleForUser(ctx, userID)
	if err != nil {
		return permission.Set{}, err
	}
	return permission.NewSet(byRole), nil
}

// HasAny reports whether the user holds at least one of the named
// permissions.
func (s *Service) HasAny(ctx context.Context, userID int64, names ...string) (bool, error) {
	set, err := s.EffectiveSet(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.ContainsAny(names...), nil
}

// HasAll reports whether the user holds every named permission.
func (s *Service) HasAll(ctx context.Context, userID int64, names ...string) (bool, error) {
	set, err := s.EffectiveSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if !set.Contains(n) {
			return false, nil
		}
	}
	return true, nil
}

// ListPermissions returns the full permission catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CatalogByResource returns the full permission catalog grouped by
// resource token for display.
func (s *Service) CatalogByResource(ctx context.Context) (map[string][]permission.Grouped, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return permission.NewSetFromNames(names).GroupedByResource(), nil
}

// EnsurePermission upserts a permission by name.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	return s.repo.EnsurePermission(ctx, strings.TrimSpace(name), strings.TrimSpace(description))
}

var _ Source = (*Service)(nil)
