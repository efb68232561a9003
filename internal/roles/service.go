package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gatehouse-app/gatehouse/internal/permission"
	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Service implements the role registry: role lifecycle, permission
// grants and the standard per-resource permission bundle.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles with their permissions attached.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := s.repo.PermissionsForRole(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// GetRole fetches a role with its permissions.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Permissions, err = s.repo.PermissionsForRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// CreateRole creates a role for a user-facing caller. A duplicate name
// is a validation error here, unlike the idempotent EnsureRole used by
// generators.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name is required")
	}
	if _, err := s.repo.GetRoleByName(ctx, name); err == nil {
		return Role{}, shared.NewValidationError("name", fmt.Sprintf("role %q already exists", name))
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}

	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		var integrityErr *shared.IntegrityError
		if errors.As(err, &integrityErr) {
			// Lost a race with a concurrent create.
			return Role{}, shared.NewValidationError("name", fmt.Sprintf("role %q already exists", name))
		}
		return Role{}, err
	}
	if len(permissionIDs) > 0 {
		if err := s.SyncPermissions(ctx, role.ID, permissionIDs); err != nil {
			return Role{}, err
		}
	}
	return s.GetRole(ctx, role.ID)
}

// EnsureRole returns the role with the given name, creating it when
// absent. Generator contexts call this instead of CreateRole.
func (s *Service) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name is required")
	}
	role, err := s.repo.GetRoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}
	role, err = s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		var integrityErr *shared.IntegrityError
		if errors.As(err, &integrityErr) {
			return s.repo.GetRoleByName(ctx, name)
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates a role's name and description.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name is required")
	}
	if existing, err := s.repo.GetRoleByName(ctx, name); err == nil && existing.ID != id {
		return Role{}, shared.NewValidationError("name", fmt.Sprintf("role %q already exists", name))
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role. Its menu items, permission grants and user
// assignments go with it, atomically.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deleted, err := tx.DeleteRoleCascade(ctx, id)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GrantPermissions attaches the given permissions to a role without
// detaching existing grants.
func (s *Service) GrantPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := s.validatePermissionIDs(ctx, permissionIDs); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockRole(ctx, roleID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if err := tx.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// SyncPermissions replaces a role's permission set atomically: the
// delta is computed and applied under a row lock in one transaction, so
// a failure leaves the previous set untouched and concurrent syncs
// cannot interleave.
func (s *Service) SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := s.validatePermissionIDs(ctx, permissionIDs); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockRole(ctx, roleID); err != nil {
			return err
		}
		current, err := tx.PermissionIDsForRole(ctx, roleID)
		if err != nil {
			return err
		}
		existing := make(map[int64]struct{}, len(current))
		for _, id := range current {
			existing[id] = struct{}{}
		}
		keep := make(map[int64]struct{}, len(permissionIDs))
		for _, id := range permissionIDs {
			keep[id] = struct{}{}
			if _, ok := existing[id]; !ok {
				if err := tx.AttachPermission(ctx, roleID, id); err != nil {
					return err
				}
			}
		}
		for id := range existing {
			if _, ok := keep[id]; !ok {
				if err := tx.DetachPermission(ctx, roleID, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// CreatePermissionsForResource generates the standard permission bundle
// for a resource, optionally with the own-qualified variants. Existing
// permissions keep their identity; running it again creates nothing
// new.
func (s *Service) CreatePermissionsForResource(ctx context.Context, resource string, includeOwn bool) ([]rbac.Permission, error) {
	resource = strings.TrimSpace(strings.ToLower(resource))
	if resource == "" {
		return nil, shared.NewValidationError("resource", "resource name is required")
	}

	titler := cases.Title(language.English)
	out := make([]rbac.Permission, 0, len(StandardActions)+len(OwnActions))
	for _, action := range StandardActions {
		name := permission.Format(action, false, resource)
		description := fmt.Sprintf("%s %s", titler.String(action), titler.String(resource))
		perm, err := s.repo.EnsurePermission(ctx, name, description)
		if err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	if includeOwn {
		for _, action := range OwnActions {
			name := permission.Format(action, true, resource)
			description := fmt.Sprintf("%s Own %s", titler.String(action), titler.String(resource))
			perm, err := s.repo.EnsurePermission(ctx, name, description)
			if err != nil {
				return nil, err
			}
			out = append(out, perm)
		}
	}
	return out, nil
}

func (s *Service) validatePermissionIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.repo.PermissionsExist(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return shared.NewValidationError("permissions", fmt.Sprintf("unknown permission id %d", id))
		}
	}
	return nil
}
