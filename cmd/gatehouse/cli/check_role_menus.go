package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gatehouse-app/gatehouse/internal/menu"
)

// MenuOpsCLI offers operational helpers for menu maintenance.
type MenuOpsCLI struct {
	service *menu.Service
}

// NewMenuOpsCLI constructs a new helper instance.
func NewMenuOpsCLI(service *menu.Service) *MenuOpsCLI {
	return &MenuOpsCLI{service: service}
}

// CheckRoleMenusOptions configures the duplicate scan command.
type CheckRoleMenusOptions struct {
	Fix        bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CheckRoleMenusSummary captures the structured reporting outcome.
type CheckRoleMenusSummary struct {
	Groups  []duplicateGroupReport `json:"groups"`
	Fixed   bool                   `json:"fixed"`
	Deleted int64                  `json:"deleted,omitempty"`
}

type duplicateGroupReport struct {
	RoleID int64   `json:"role_id"`
	Title  string  `json:"title"`
	Href   string  `json:"href"`
	IDs    []int64 `json:"ids"`
}

// CheckRoleMenusCommand scans for duplicate menu rows and optionally
// removes them, keeping the lowest id per group.
func (c *MenuOpsCLI) CheckRoleMenusCommand(ctx context.Context, opts CheckRoleMenusOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	groups, err := c.service.FindDuplicates(ctx)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "check-role-menus: %v\n", err)
		return 1
	}

	summary := CheckRoleMenusSummary{Groups: make([]duplicateGroupReport, 0, len(groups))}
	for _, group := range groups {
		ids := make([]int64, 0, len(group.Items))
		for _, item := range group.Items {
			ids = append(ids, item.ID)
		}
		summary.Groups = append(summary.Groups, duplicateGroupReport{
			RoleID: group.RoleID,
			Title:  group.Title,
			Href:   group.Href,
			IDs:    ids,
		})
	}

	if opts.Fix && len(groups) > 0 {
		deleted, err := c.service.FixDuplicates(ctx)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "check-role-menus: fix: %v\n", err)
			return 1
		}
		summary.Fixed = true
		summary.Deleted = deleted
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "check-role-menus: encode: %v\n", err)
			return 1
		}
		return 0
	}

	if len(summary.Groups) == 0 {
		fmt.Fprintln(opts.Stdout, "no duplicate menu rows found")
		return 0
	}
	for _, group := range summary.Groups {
		fmt.Fprintf(opts.Stdout, "role %d: %q -> %s ids=%v\n", group.RoleID, group.Title, group.Href, group.IDs)
	}
	if summary.Fixed {
		fmt.Fprintf(opts.Stdout, "removed %d duplicate rows\n", summary.Deleted)
	} else {
		fmt.Fprintln(opts.Stdout, "run with --fix to remove duplicates")
	}
	return 0
}
