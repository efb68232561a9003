package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Service handles principal management: user lifecycle and role
// assignment.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users with their roles attached.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		roles, err := s.repo.RolesForUser(ctx, all[i].ID)
		if err != nil {
			return nil, err
		}
		all[i].Roles = roles
	}
	return all, nil
}

// GetUser fetches a user with roles.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Roles, err = s.repo.RolesForUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail fetches a user by normalized email address.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, err
	}
	user.Roles, err = s.repo.RolesForUser(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateUser registers a new user with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" {
		return User{}, shared.NewValidationError("email", "email is required")
	}
	if password == "" {
		return User{}, shared.NewValidationError("password", "password is required")
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return User{}, shared.NewValidationError("email", fmt.Sprintf("user %q already exists", email))
	} else if !errors.Is(err, shared.ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsActive:     true,
	})
}

// UpdateUser persists profile changes.
func (s *Service) UpdateUser(ctx context.Context, id int64, email, name string, isActive bool) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, shared.NewValidationError("email", "email is required")
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if other, err := s.repo.GetUserByEmail(ctx, email); err == nil && other.ID != id {
		return User{}, shared.NewValidationError("email", fmt.Sprintf("user %q already exists", email))
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return User{}, err
	}
	user.Email = email
	user.Name = strings.TrimSpace(name)
	user.IsActive = isActive
	return s.repo.UpdateUser(ctx, user)
}

// DeleteUser removes a user record. Authorization, including the
// self-deletion guard, is the engine's responsibility and happens
// before this is called.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignRole assigns a role to a user, keeping existing assignments.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if err := s.validateRoleIDs(ctx, []int64{roleID}); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		return tx.AttachRole(ctx, userID, roleID)
	})
}

// RemoveRole removes a single role assignment.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		return tx.DetachRole(ctx, userID, roleID)
	})
}

// SyncRoles replaces a user's role set atomically. The delta is applied
// under a row lock in one transaction: on failure no assignment
// changes, and concurrent syncs for the same user serialize.
func (s *Service) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if err := s.validateRoleIDs(ctx, roleIDs); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		current, err := tx.RoleIDsForUser(ctx, userID)
		if err != nil {
			return err
		}
		existing := make(map[int64]struct{}, len(current))
		for _, id := range current {
			existing[id] = struct{}{}
		}
		keep := make(map[int64]struct{}, len(roleIDs))
		for _, id := range roleIDs {
			keep[id] = struct{}{}
			if _, ok := existing[id]; !ok {
				if err := tx.AttachRole(ctx, userID, id); err != nil {
					return err
				}
			}
		}
		for id := range existing {
			if _, ok := keep[id]; !ok {
				if err := tx.DetachRole(ctx, userID, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Service) validateRoleIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.repo.RolesExist(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return shared.NewValidationError("roles", fmt.Sprintf("unknown role id %d", id))
		}
	}
	return nil
}
