package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/roles"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/users"
)

// UserOpsCLI offers operational helpers for bootstrapping accounts.
type UserOpsCLI struct {
	users *users.Service
	roles *roles.Service
}

// NewUserOpsCLI constructs a new helper instance.
func NewUserOpsCLI(usersService *users.Service, rolesService *roles.Service) *UserOpsCLI {
	return &UserOpsCLI{users: usersService, roles: rolesService}
}

// CreateSuperadminOptions configures the bootstrap command.
type CreateSuperadminOptions struct {
	Email    string
	Name     string
	Password string
	Stdout   io.Writer
	Stderr   io.Writer
}

// CreateSuperadminCommand creates (or reuses) a user account and makes
// sure it holds the superadmin role. Safe to run repeatedly.
func (c *UserOpsCLI) CreateSuperadminCommand(ctx context.Context, opts CreateSuperadminOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	email := strings.TrimSpace(opts.Email)
	if email == "" {
		fmt.Fprintln(opts.Stderr, "create-superadmin: --email is required")
		return 1
	}

	user, err := c.users.CreateUser(ctx, email, opts.Name, opts.Password)
	if err != nil {
		var vErr *shared.ValidationError
		if !errors.As(err, &vErr) {
			fmt.Fprintf(opts.Stderr, "create-superadmin: %v\n", err)
			return 1
		}
		// Account may already exist; reuse it.
		user, err = c.users.GetUserByEmail(ctx, email)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "create-superadmin: %v\n", vErr)
			return 1
		}
		fmt.Fprintf(opts.Stdout, "reusing existing account %s\n", user.Email)
	}

	role, err := c.roles.EnsureRole(ctx, "superadmin", "Full access, bypasses permission checks")
	if err != nil {
		fmt.Fprintf(opts.Stderr, "create-superadmin: ensure role: %v\n", err)
		return 1
	}
	if err := c.users.AssignRole(ctx, user.ID, role.ID); err != nil {
		fmt.Fprintf(opts.Stderr, "create-superadmin: assign role: %v\n", err)
		return 1
	}

	fmt.Fprintf(opts.Stdout, "superadmin ready: %s (user id %d)\n", user.Email, user.ID)
	return 0
}
