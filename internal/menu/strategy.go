package menu

import (
	"context"
	"sort"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/permission"
)

// FilterStrategy produces the visible menu for a user. Two strategies
// exist because the data supports two shapes: hierarchical trees stored
// per role, and flat lists derived from a configured permission map.
type FilterStrategy interface {
	Menu(ctx context.Context, userID int64) ([]Node, error)
}

// PermissionSource supplies effective permission names for a user.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// RoleStrategy resolves menu items by role membership alone: every item
// attached to one of the user's roles is visible, independent of
// permission strings.
type RoleStrategy struct {
	repo RepositoryPort
}

// NewRoleStrategy builds a RoleStrategy over the repository.
func NewRoleStrategy(repo RepositoryPort) *RoleStrategy {
	return &RoleStrategy{repo: repo}
}

// Menu returns the hierarchical menu for the user's roles.
func (s *RoleStrategy) Menu(ctx context.Context, userID int64) ([]Node, error) {
	roleIDs, err := s.repo.RoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return []Node{}, nil
	}
	items, err := s.repo.ItemsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	return buildTree(items), nil
}

// PermissionStrategy filters a configured flat menu map by the user's
// effective permissions: an entry is visible when the user holds its
// permission. Entries whose permission is missing from the map key are
// matched by deriving "view <resource>" from the href.
type PermissionStrategy struct {
	source  PermissionSource
	entries []MapEntry
}

// NewPermissionStrategy builds a PermissionStrategy from the static
// permission-to-menu map.
func NewPermissionStrategy(source PermissionSource, entries []MapEntry) *PermissionStrategy {
	return &PermissionStrategy{source: source, entries: entries}
}

// Menu returns the flat menu entries the user is permitted to see,
// sorted by order (map position breaks ties) with duplicate
// (title, href) pairs collapsed.
func (s *PermissionStrategy) Menu(ctx context.Context, userID int64) ([]Node, error) {
	granted, err := s.source.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := permission.NewSetFromNames(granted)

	visible := make([]MapEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		perm := entry.Permission
		if perm == "" {
			perm = permission.Format("view", false, resourceFromHref(entry.Href))
		}
		if set.Contains(perm) {
			visible = append(visible, entry)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Order < visible[j].Order
	})

	// Entries sharing a (title, href) pair collapse to the first survivor,
	// which after the stable sort is the lowest-order occurrence.
	type key struct{ title, href string }
	seen := make(map[key]struct{}, len(visible))
	nodes := make([]Node, 0, len(visible))
	for _, entry := range visible {
		k := key{entry.Title, entry.Href}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		nodes = append(nodes, Node{Title: entry.Title, Href: entry.Href, Icon: entry.Icon})
	}
	return nodes, nil
}

// resourceFromHref derives the presumed resource token from a path,
// stripping the leading slash: "/users" guards on "view users".
func resourceFromHref(href string) string {
	return strings.TrimPrefix(href, "/")
}
