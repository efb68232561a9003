package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	items     map[int64]*Item
	userRoles map[int64][]int64
	nextID    int64

	allItemsErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		items:     make(map[int64]*Item),
		userRoles: make(map[int64][]int64),
		nextID:    1,
	}
}

func (m *mockRepository) add(item Item) Item {
	if item.ID == 0 {
		item.ID = m.nextID
		m.nextID++
	} else if item.ID >= m.nextID {
		m.nextID = item.ID + 1
	}
	stored := item
	m.items[item.ID] = &stored
	return stored
}

func (m *mockRepository) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return m.userRoles[userID], nil
}

func (m *mockRepository) ItemsForRoles(ctx context.Context, roleIDs []int64) ([]Item, error) {
	allowed := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		allowed[id] = struct{}{}
	}
	var out []Item
	for id := int64(1); id < m.nextID; id++ {
		item, ok := m.items[id]
		if !ok {
			continue
		}
		if _, ok := allowed[item.RoleID]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockRepository) AllItems(ctx context.Context) ([]Item, error) {
	if m.allItemsErr != nil {
		return nil, m.allItemsErr
	}
	var out []Item
	for id := int64(1); id < m.nextID; id++ {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockRepository) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return *item, nil
}

func (m *mockRepository) CreateItem(ctx context.Context, item Item) (Item, error) {
	return m.add(item), nil
}

func (m *mockRepository) UpdateItem(ctx context.Context, item Item) (Item, error) {
	if _, ok := m.items[item.ID]; !ok {
		return Item{}, shared.ErrNotFound
	}
	stored := item
	m.items[item.ID] = &stored
	return stored, nil
}

func (m *mockRepository) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			delete(m.items, id)
			deleted++
		}
	}
	return deleted, nil
}

type mockPermissionSource struct {
	perms map[int64][]string
}

func (m *mockPermissionSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return m.perms[userID], nil
}

func newRoleService(repo RepositoryPort) *Service {
	return NewService(repo, StrategyRole, nil, nil, nil, nil)
}

func int64Ptr(v int64) *int64 { return &v }

// ============================================================================
// ROLE-DRIVEN STRATEGY
// ============================================================================

func TestVisibleMenuOrdering(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10}
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 2})
	repo.add(Item{RoleID: 10, Title: "Dashboard", Href: "/dashboard", Order: 1})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Dashboard", nodes[0].Title)
	assert.Equal(t, "Users", nodes[1].Title)
}

func TestVisibleMenuOrderTieBrokenByID(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10}
	repo.add(Item{ID: 5, RoleID: 10, Title: "Second", Href: "/second", Order: 1})
	repo.add(Item{ID: 3, RoleID: 10, Title: "First", Href: "/first", Order: 1})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "First", nodes[0].Title)
	assert.Equal(t, "Second", nodes[1].Title)
}

func TestVisibleMenuHierarchy(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10}
	parent := repo.add(Item{RoleID: 10, Title: "Admin", Href: "/admin", Order: 1})
	repo.add(Item{RoleID: 10, Title: "Roles", Href: "/admin/roles", Order: 2, ParentID: int64Ptr(parent.ID)})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/admin/users", Order: 1, ParentID: int64Ptr(parent.ID)})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 2)
	assert.Equal(t, "Users", nodes[0].Children[0].Title)
	assert.Equal(t, "Roles", nodes[0].Children[1].Title)
}

func TestVisibleMenuDeduplicatesAcrossRoles(t *testing.T) {
	// The same (title, href) attached to two roles the user holds
	// appears exactly once.
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10, 20}
	repo.add(Item{RoleID: 10, Title: "Dashboard", Href: "/dashboard", Order: 1})
	repo.add(Item{RoleID: 20, Title: "Dashboard", Href: "/dashboard", Order: 3})
	repo.add(Item{RoleID: 20, Title: "Reports", Href: "/reports", Order: 2})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Dashboard", nodes[0].Title, "lowest order copy wins")
	assert.Equal(t, "Reports", nodes[1].Title)
}

func TestVisibleMenuIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10, 20}
	repo.add(Item{RoleID: 10, Title: "Dashboard", Href: "/dashboard", Order: 1})
	repo.add(Item{RoleID: 20, Title: "Dashboard", Href: "/dashboard", Order: 1})
	parent := repo.add(Item{RoleID: 10, Title: "Admin", Href: "/admin", Order: 2})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/admin/users", Order: 1, ParentID: int64Ptr(parent.ID)})

	service := newRoleService(repo)
	first, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	second, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVisibleMenuSkipsOrphanedChildren(t *testing.T) {
	// Item whose parent belongs to a role the user lacks is dropped.
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10}
	parent := repo.add(Item{RoleID: 99, Title: "Hidden", Href: "/hidden", Order: 1})
	repo.add(Item{RoleID: 10, Title: "Child", Href: "/hidden/child", Order: 1, ParentID: int64Ptr(parent.ID)})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestVisibleMenuNoRoles(t *testing.T) {
	repo := newMockRepository()
	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestVisibleMenuCyclicParentChainTerminates(t *testing.T) {
	// Corrupt data: two items parented to each other. The build must
	// terminate and neither can appear as a top-level node.
	repo := newMockRepository()
	repo.userRoles[1] = []int64{10}
	repo.add(Item{ID: 1, RoleID: 10, Title: "A", Href: "/a", Order: 1, ParentID: int64Ptr(2)})
	repo.add(Item{ID: 2, RoleID: 10, Title: "B", Href: "/b", Order: 2, ParentID: int64Ptr(1)})
	repo.add(Item{ID: 3, RoleID: 10, Title: "Home", Href: "/home", Order: 0})

	service := newRoleService(repo)
	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Home", nodes[0].Title)
}

// ============================================================================
// PERMISSION-DRIVEN STRATEGY
// ============================================================================

func TestPermissionStrategyFiltersByGrant(t *testing.T) {
	entries := []MapEntry{
		{Permission: "view dashboard", Title: "Dashboard", Href: "/dashboard", Icon: "LayoutGrid", Order: 1},
		{Permission: "view users", Title: "Users", Href: "/users", Icon: "Users", Order: 2},
		{Permission: "view roles", Title: "Roles", Href: "/roles", Icon: "Shield", Order: 3},
	}
	source := &mockPermissionSource{perms: map[int64][]string{
		1: {"view dashboard", "view roles"},
	}}
	service := NewService(newMockRepository(), StrategyPermission, source, entries, nil, nil)

	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Dashboard", nodes[0].Title)
	assert.Equal(t, "Roles", nodes[1].Title)
}

func TestPermissionStrategyDerivesPermissionFromHref(t *testing.T) {
	entries := []MapEntry{
		{Title: "Reports", Href: "/reports", Order: 1},
	}
	source := &mockPermissionSource{perms: map[int64][]string{
		1: {"view reports"},
		2: {"view dashboard"},
	}}
	service := NewService(newMockRepository(), StrategyPermission, source, entries, nil, nil)

	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	nodes, err = service.VisibleMenu(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPermissionStrategyStableOrder(t *testing.T) {
	entries := []MapEntry{
		{Permission: "view users", Title: "Users", Href: "/users", Order: 2},
		{Permission: "view dashboard", Title: "Dashboard", Href: "/dashboard", Order: 1},
	}
	source := &mockPermissionSource{perms: map[int64][]string{
		1: {"view dashboard", "view users"},
	}}
	service := NewService(newMockRepository(), StrategyPermission, source, entries, nil, nil)

	first, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	second, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "Dashboard", first[0].Title)
}

func TestPermissionStrategyCollapsesDuplicateEntries(t *testing.T) {
	entries := []MapEntry{
		{Permission: "view users", Title: "Users", Href: "/users", Icon: "Users", Order: 5},
		{Permission: "manage users", Title: "Users", Href: "/users", Icon: "UserCog", Order: 2},
		{Permission: "view dashboard", Title: "Dashboard", Href: "/dashboard", Order: 1},
	}
	source := &mockPermissionSource{perms: map[int64][]string{
		1: {"view users", "manage users", "view dashboard"},
	}}
	service := NewService(newMockRepository(), StrategyPermission, source, entries, nil, nil)

	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Dashboard", nodes[0].Title)
	// The lowest-order duplicate survives.
	assert.Equal(t, "UserCog", nodes[1].Icon)
}

func TestPermissionStrategyOrderTiesKeepMapPosition(t *testing.T) {
	entries := []MapEntry{
		{Permission: "view users", Title: "Users", Href: "/users", Order: 1},
		{Permission: "view roles", Title: "Roles", Href: "/roles", Order: 1},
	}
	source := &mockPermissionSource{perms: map[int64][]string{
		1: {"view users", "view roles"},
	}}
	service := NewService(newMockRepository(), StrategyPermission, source, entries, nil, nil)

	nodes, err := service.VisibleMenu(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Users", nodes[0].Title)
	assert.Equal(t, "Roles", nodes[1].Title)
}

// ============================================================================
// WRITE-TIME INTEGRITY
// ============================================================================

func TestCreateItemRejectsDuplicateTuple(t *testing.T) {
	repo := newMockRepository()
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 1})
	service := newRoleService(repo)

	_, err := service.CreateItem(context.Background(), Item{RoleID: 10, Title: "Users", Href: "/users", Order: 5})
	var integrityErr *shared.IntegrityError
	require.ErrorAs(t, err, &integrityErr)

	// Same tuple under a different role is fine.
	_, err = service.CreateItem(context.Background(), Item{RoleID: 20, Title: "Users", Href: "/users", Order: 5})
	require.NoError(t, err)
}

func TestCreateItemValidation(t *testing.T) {
	service := newRoleService(newMockRepository())

	_, err := service.CreateItem(context.Background(), Item{RoleID: 10, Href: "/users"})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "title")

	_, err = service.CreateItem(context.Background(), Item{RoleID: 10, Title: "Users"})
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "href")
}

func TestCreateItemRejectsUnknownParent(t *testing.T) {
	service := newRoleService(newMockRepository())

	_, err := service.CreateItem(context.Background(), Item{
		RoleID: 10, Title: "Users", Href: "/users", ParentID: int64Ptr(999),
	})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "parent_id")
}

func TestUpdateItemRejectsSelfParent(t *testing.T) {
	repo := newMockRepository()
	item := repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 1})
	service := newRoleService(repo)

	item.ParentID = int64Ptr(item.ID)
	_, err := service.UpdateItem(context.Background(), item)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "parent_id")
}

func TestUpdateItemRejectsCyclicParentChain(t *testing.T) {
	repo := newMockRepository()
	a := repo.add(Item{RoleID: 10, Title: "A", Href: "/a", Order: 1})
	b := repo.add(Item{RoleID: 10, Title: "B", Href: "/b", Order: 2, ParentID: int64Ptr(a.ID)})
	c := repo.add(Item{RoleID: 10, Title: "C", Href: "/c", Order: 3, ParentID: int64Ptr(b.ID)})

	service := newRoleService(repo)

	// Re-parenting A under its grandchild C would close a cycle.
	a.ParentID = int64Ptr(c.ID)
	_, err := service.UpdateItem(context.Background(), a)
	var integrityErr *shared.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
}

func TestDeleteItemCascadesToDescendants(t *testing.T) {
	repo := newMockRepository()
	root := repo.add(Item{RoleID: 10, Title: "Admin", Href: "/admin", Order: 1})
	child := repo.add(Item{RoleID: 10, Title: "Users", Href: "/admin/users", Order: 1, ParentID: int64Ptr(root.ID)})
	repo.add(Item{RoleID: 10, Title: "Sessions", Href: "/admin/users/sessions", Order: 1, ParentID: int64Ptr(child.ID)})
	other := repo.add(Item{RoleID: 10, Title: "Home", Href: "/home", Order: 0})

	service := newRoleService(repo)
	require.NoError(t, service.DeleteItem(context.Background(), root.ID))

	remaining, err := repo.AllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ID)
}

func TestDeleteItemNotFound(t *testing.T) {
	service := newRoleService(newMockRepository())
	err := service.DeleteItem(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ============================================================================
// DUPLICATE MAINTENANCE
// ============================================================================

func TestFindDuplicates(t *testing.T) {
	repo := newMockRepository()
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 2})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 7})
	repo.add(Item{RoleID: 10, Title: "Dashboard", Href: "/dashboard", Order: 1})
	repo.add(Item{RoleID: 20, Title: "Users", Href: "/users", Order: 2})

	service := newRoleService(repo)
	groups, err := service.FindDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(10), groups[0].RoleID)
	assert.Equal(t, "Users", groups[0].Title)
	assert.Len(t, groups[0].Items, 2)
}

func TestFixDuplicatesKeepsLowestID(t *testing.T) {
	repo := newMockRepository()
	first := repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 9})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 1})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 4})

	service := newRoleService(repo)
	deleted, err := service.FixDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.AllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, first.ID, remaining[0].ID)
}

func TestFixDuplicatesIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 1})
	repo.add(Item{RoleID: 10, Title: "Users", Href: "/users", Order: 2})

	service := newRoleService(repo)
	deleted, err := service.FixDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = service.FixDuplicates(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	groups, err := service.FindDuplicates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}
