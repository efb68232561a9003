package menu

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"log/slog"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Strategy names accepted by configuration.
const (
	StrategyRole       = "role"
	StrategyPermission = "permission"
)

// RepositoryPort defines persistence operations for menu items.
type RepositoryPort interface {
	RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ItemsForRoles(ctx context.Context, roleIDs []int64) ([]Item, error)
	AllItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	DeleteItems(ctx context.Context, ids []int64) (int64, error)
}

// Service produces visible menus and maintains menu integrity.
type Service struct {
	repo     RepositoryPort
	strategy FilterStrategy
	cache    *Cache
	logger   *slog.Logger
}

// NewService selects the filter strategy by name and wires the optional
// cache. An unknown strategy name falls back to the role-driven one.
func NewService(repo RepositoryPort, strategyName string, source PermissionSource, entries []MapEntry, cache *Cache, logger *slog.Logger) *Service {
	var strategy FilterStrategy
	switch strategyName {
	case StrategyPermission:
		strategy = NewPermissionStrategy(source, entries)
	default:
		strategy = NewRoleStrategy(repo)
	}
	return &Service{repo: repo, strategy: strategy, cache: cache, logger: logger}
}

// VisibleMenu returns the ordered, de-duplicated, filtered menu for the
// user. Results are cached per user when a cache is configured;
// concurrent builds for the same user collapse into one.
func (s *Service) VisibleMenu(ctx context.Context, userID int64) ([]Node, error) {
	if s.cache == nil {
		return s.strategy.Menu(ctx, userID)
	}
	return s.cache.VisibleMenu(ctx, userID, func(ctx context.Context) ([]Node, error) {
		return s.strategy.Menu(ctx, userID)
	})
}

// CreateItem validates and persists a new menu item. A self or unknown
// parent is a validation error; a (role, title, href) duplicate is an
// integrity violation surfaced at write time.
func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	item.Title = strings.TrimSpace(item.Title)
	item.Href = strings.TrimSpace(item.Href)
	if item.Title == "" {
		return Item{}, shared.NewValidationError("title", "title is required")
	}
	if item.Href == "" {
		return Item{}, shared.NewValidationError("href", "href is required")
	}

	all, err := s.repo.AllItems(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, existing := range all {
		if existing.RoleID == item.RoleID && existing.Title == item.Title && existing.Href == item.Href {
			return Item{}, &shared.IntegrityError{
				Constraint: "uq_role_menus_role_title_href",
				Detail:     fmt.Sprintf("menu item %q (%s) already exists for role %d", item.Title, item.Href, item.RoleID),
			}
		}
	}
	if item.ParentID != nil {
		if _, err := s.repo.GetItem(ctx, *item.ParentID); err != nil {
			return Item{}, shared.NewValidationError("parent_id", "parent menu item does not exist")
		}
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateItem validates and persists changes to a menu item. Re-parenting
// is rejected when it would produce a cyclic chain.
func (s *Service) UpdateItem(ctx context.Context, item Item) (Item, error) {
	item.Title = strings.TrimSpace(item.Title)
	item.Href = strings.TrimSpace(item.Href)
	if item.Title == "" {
		return Item{}, shared.NewValidationError("title", "title is required")
	}
	if item.Href == "" {
		return Item{}, shared.NewValidationError("href", "href is required")
	}
	if _, err := s.repo.GetItem(ctx, item.ID); err != nil {
		return Item{}, err
	}

	all, err := s.repo.AllItems(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, existing := range all {
		if existing.ID != item.ID && existing.RoleID == item.RoleID && existing.Title == item.Title && existing.Href == item.Href {
			return Item{}, &shared.IntegrityError{
				Constraint: "uq_role_menus_role_title_href",
				Detail:     fmt.Sprintf("menu item %q (%s) already exists for role %d", item.Title, item.Href, item.RoleID),
			}
		}
	}
	if item.ParentID != nil {
		if *item.ParentID == item.ID {
			return Item{}, shared.NewValidationError("parent_id", "menu item cannot be its own parent")
		}
		if _, err := s.repo.GetItem(ctx, *item.ParentID); err != nil {
			return Item{}, shared.NewValidationError("parent_id", "parent menu item does not exist")
		}
		if wouldCycle(all, item.ID, *item.ParentID) {
			return Item{}, &shared.IntegrityError{
				Constraint: "ck_role_menus_acyclic",
				Detail:     fmt.Sprintf("parenting item %d under %d would create a cycle", item.ID, *item.ParentID),
			}
		}
	}

	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteItem removes a menu item and all of its descendants.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	if _, err := s.repo.GetItem(ctx, id); err != nil {
		return err
	}
	all, err := s.repo.AllItems(ctx)
	if err != nil {
		return err
	}
	ids := append(descendantIDs(all, id), id)
	if _, err := s.repo.DeleteItems(ctx, ids); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// FindDuplicates reports groups of menu items violating the
// (role, title, href) uniqueness invariant. Groups and their members
// are returned in stable order.
func (s *Service) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	all, err := s.repo.AllItems(ctx)
	if err != nil {
		return nil, err
	}

	type key struct {
		roleID int64
		title  string
		href   string
	}
	grouped := make(map[key][]Item)
	for _, item := range all {
		k := key{roleID: item.RoleID, title: item.Title, href: item.Href}
		grouped[k] = append(grouped[k], item)
	}

	var groups []DuplicateGroup
	for k, items := range grouped {
		if len(items) < 2 {
			continue
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		groups = append(groups, DuplicateGroup{RoleID: k.roleID, Title: k.title, Href: k.href, Items: items})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].RoleID != groups[j].RoleID {
			return groups[i].RoleID < groups[j].RoleID
		}
		if groups[i].Title != groups[j].Title {
			return groups[i].Title < groups[j].Title
		}
		return groups[i].Href < groups[j].Href
	})
	return groups, nil
}

// FixDuplicates repairs every duplicate group by keeping the item with
// the lowest id and deleting the rest. Running it again once the data
// is clean deletes nothing.
func (s *Service) FixDuplicates(ctx context.Context) (int64, error) {
	groups, err := s.FindDuplicates(ctx)
	if err != nil {
		return 0, err
	}
	var doomed []int64
	for _, group := range groups {
		for _, item := range group.Items[1:] {
			doomed = append(doomed, item.ID)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteItems(ctx, doomed)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("repaired duplicate menu items",
			slog.Int("groups", len(groups)), slog.Int64("deleted", deleted))
	}
	s.invalidate(ctx)
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("menu cache invalidation failed", slog.Any("error", err))
	}
}
