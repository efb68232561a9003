package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/roles"
)

// RoleOpsCLI offers operational helpers for role and permission setup.
type RoleOpsCLI struct {
	service *roles.Service
}

// NewRoleOpsCLI constructs a new helper instance.
func NewRoleOpsCLI(service *roles.Service) *RoleOpsCLI {
	return &RoleOpsCLI{service: service}
}

// GenerateResourceOptions configures the permission generator command.
type GenerateResourceOptions struct {
	Resource   string
	IncludeOwn bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// GenerateResourceSummary captures the structured reporting outcome.
type GenerateResourceSummary struct {
	Resource    string   `json:"resource"`
	Permissions []string `json:"permissions"`
}

// GenerateResourceCommand creates the standard permission bundle for a
// resource. Running it twice is safe: existing permissions keep their ids.
func (c *RoleOpsCLI) GenerateResourceCommand(ctx context.Context, opts GenerateResourceOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	resource := strings.TrimSpace(opts.Resource)
	if resource == "" {
		fmt.Fprintln(opts.Stderr, "generate-resource: resource name is required")
		return 1
	}

	perms, err := c.service.CreatePermissionsForResource(ctx, resource, opts.IncludeOwn)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "generate-resource: %v\n", err)
		return 1
	}

	summary := GenerateResourceSummary{Resource: strings.ToLower(resource)}
	for _, perm := range perms {
		summary.Permissions = append(summary.Permissions, perm.Name)
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "generate-resource: encode: %v\n", err)
			return 1
		}
		return 0
	}

	for _, name := range summary.Permissions {
		fmt.Fprintln(opts.Stdout, name)
	}
	return 0
}
