package roles

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	roles       map[int64]*Role
	rolesByName map[string]*Role
	nextRoleID  int64

	perms       map[int64]*rbac.Permission
	permsByName map[string]*rbac.Permission
	nextPermID  int64

	rolePerms map[int64]map[int64]struct{}
	menus     map[int64][]int64 // role id -> menu item ids
	userRoles map[int64]map[int64]struct{}

	txError     error
	attachError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[int64]*Role),
		rolesByName: make(map[string]*Role),
		nextRoleID:  1,
		perms:       make(map[int64]*rbac.Permission),
		permsByName: make(map[string]*rbac.Permission),
		nextPermID:  1,
		rolePerms:   make(map[int64]map[int64]struct{}),
		menus:       make(map[int64][]int64),
		userRoles:   make(map[int64]map[int64]struct{}),
	}
}

func (m *mockRepository) addPermission(name string) rbac.Permission {
	if p, ok := m.permsByName[name]; ok {
		return *p
	}
	p := &rbac.Permission{ID: m.nextPermID, Name: name}
	m.nextPermID++
	m.perms[p.ID] = p
	m.permsByName[name] = p
	return *p
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for id := int64(1); id < m.nextRoleID; id++ {
		if role, ok := m.roles[id]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return *role, nil
}

func (m *mockRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, ok := m.rolesByName[name]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return *role, nil
}

func (m *mockRepository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	if _, ok := m.rolesByName[name]; ok {
		return Role{}, &shared.IntegrityError{Constraint: "uq_roles_name"}
	}
	role := &Role{ID: m.nextRoleID, Name: name, Description: description}
	m.nextRoleID++
	m.roles[role.ID] = role
	m.rolesByName[name] = role
	return *role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	delete(m.rolesByName, role.Name)
	role.Name = name
	role.Description = description
	m.rolesByName[name] = role
	return *role, nil
}

func (m *mockRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for id := range m.rolePerms[roleID] {
		out = append(out, *m.perms[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) PermissionsExist(ctx context.Context, ids []int64) ([]int64, error) {
	var found []int64
	for _, id := range ids {
		if _, ok := m.perms[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (m *mockRepository) EnsurePermission(ctx context.Context, name, description string) (rbac.Permission, error) {
	if p, ok := m.permsByName[name]; ok {
		p.Description = description
		return *p, nil
	}
	p := &rbac.Permission{ID: m.nextPermID, Name: name, Description: description}
	m.nextPermID++
	m.perms[p.ID] = p
	m.permsByName[name] = p
	return *p, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	// Stage changes and apply on success, mirroring commit/rollback.
	staged := &mockTxRepo{mock: m, rolePerms: make(map[int64]map[int64]struct{})}
	for roleID, ids := range m.rolePerms {
		copied := make(map[int64]struct{}, len(ids))
		for id := range ids {
			copied[id] = struct{}{}
		}
		staged.rolePerms[roleID] = copied
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	m.rolePerms = staged.rolePerms
	for _, roleID := range staged.deletedRoles {
		role := m.roles[roleID]
		if role != nil {
			delete(m.rolesByName, role.Name)
		}
		delete(m.roles, roleID)
		delete(m.rolePerms, roleID)
		delete(m.menus, roleID)
		for _, assigned := range m.userRoles {
			delete(assigned, roleID)
		}
	}
	return nil
}

type mockTxRepo struct {
	mock         *mockRepository
	rolePerms    map[int64]map[int64]struct{}
	deletedRoles []int64
}

func (t *mockTxRepo) LockRole(ctx context.Context, roleID int64) error {
	if _, ok := t.mock.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (t *mockTxRepo) PermissionIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	for id := range t.rolePerms[roleID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *mockTxRepo) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	if t.mock.attachError != nil {
		return t.mock.attachError
	}
	if t.rolePerms[roleID] == nil {
		t.rolePerms[roleID] = make(map[int64]struct{})
	}
	t.rolePerms[roleID][permissionID] = struct{}{}
	return nil
}

func (t *mockTxRepo) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	delete(t.rolePerms[roleID], permissionID)
	return nil
}

func (t *mockTxRepo) DeleteRoleCascade(ctx context.Context, roleID int64) (int64, error) {
	if _, ok := t.mock.roles[roleID]; !ok {
		return 0, nil
	}
	t.deletedRoles = append(t.deletedRoles, roleID)
	return 1, nil
}

// ============================================================================
// ROLE LIFECYCLE
// ============================================================================

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	_, err := service.CreateRole(context.Background(), "editor", "", nil)
	require.NoError(t, err)

	_, err = service.CreateRole(context.Background(), "editor", "", nil)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "name")
}

func TestCreateRoleRequiresName(t *testing.T) {
	service := NewService(newMockRepository())
	_, err := service.CreateRole(context.Background(), "   ", "", nil)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestEnsureRoleIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	first, err := service.EnsureRole(context.Background(), "admin", "administrators")
	require.NoError(t, err)
	second, err := service.EnsureRole(context.Background(), "admin", "administrators")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteRoleCascades(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	role, err := service.EnsureRole(context.Background(), "manager", "")
	require.NoError(t, err)
	perm := repo.addPermission("view users")
	require.NoError(t, service.GrantPermissions(context.Background(), role.ID, []int64{perm.ID}))
	repo.userRoles[1] = map[int64]struct{}{role.ID: {}}

	require.NoError(t, service.DeleteRole(context.Background(), role.ID))

	_, err = repo.GetRole(context.Background(), role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.rolePerms[role.ID])
	assert.Empty(t, repo.userRoles[1])
}

func TestDeleteRoleNotFound(t *testing.T) {
	service := NewService(newMockRepository())
	err := service.DeleteRole(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ============================================================================
// PERMISSION SYNC
// ============================================================================

func TestSyncPermissionsReplacesSet(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	role, err := service.EnsureRole(context.Background(), "editor", "")
	require.NoError(t, err)
	view := repo.addPermission("view posts")
	edit := repo.addPermission("edit posts")
	del := repo.addPermission("delete posts")

	require.NoError(t, service.SyncPermissions(context.Background(), role.ID, []int64{view.ID, edit.ID}))
	require.NoError(t, service.SyncPermissions(context.Background(), role.ID, []int64{edit.ID, del.ID}))

	perms, err := repo.PermissionsForRole(context.Background(), role.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"delete posts", "edit posts"}, names)
}

func TestSyncPermissionsRejectsUnknownID(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	role, err := service.EnsureRole(context.Background(), "editor", "")
	require.NoError(t, err)

	err = service.SyncPermissions(context.Background(), role.ID, []int64{999})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "permissions")
}

func TestSyncPermissionsAtomicOnFailure(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	role, err := service.EnsureRole(context.Background(), "editor", "")
	require.NoError(t, err)
	view := repo.addPermission("view posts")
	edit := repo.addPermission("edit posts")
	require.NoError(t, service.SyncPermissions(context.Background(), role.ID, []int64{view.ID}))

	repo.attachError = errors.New("write failed")
	err = service.SyncPermissions(context.Background(), role.ID, []int64{edit.ID})
	require.Error(t, err)

	// The failed sync must leave the previous set untouched.
	perms, err := repo.PermissionsForRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "view posts", perms[0].Name)
}

func TestSyncPermissionsUnknownRole(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	perm := repo.addPermission("view posts")

	err := service.SyncPermissions(context.Background(), 404, []int64{perm.ID})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ============================================================================
// PERMISSION GENERATOR
// ============================================================================

func TestCreatePermissionsForResource(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	perms, err := service.CreatePermissionsForResource(context.Background(), "invoices", false)
	require.NoError(t, err)
	require.Len(t, perms, len(StandardActions))

	names := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		names[p.Name] = struct{}{}
	}
	for _, action := range StandardActions {
		assert.Contains(t, names, action+" invoices")
	}
}

func TestCreatePermissionsForResourceWithOwn(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	perms, err := service.CreatePermissionsForResource(context.Background(), "posts", true)
	require.NoError(t, err)
	require.Len(t, perms, len(StandardActions)+len(OwnActions))

	names := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		names[p.Name] = struct{}{}
	}
	assert.Contains(t, names, "view own posts")
	assert.Contains(t, names, "edit own posts")
	assert.Contains(t, names, "delete own posts")
}

func TestCreatePermissionsForResourceIdempotent(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	first, err := service.CreatePermissionsForResource(context.Background(), "invoices", false)
	require.NoError(t, err)
	second, err := service.CreatePermissionsForResource(context.Background(), "invoices", false)
	require.NoError(t, err)

	// Identity is preserved across runs; nothing is duplicated.
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	assert.Equal(t, len(StandardActions), len(repo.perms))
}

func TestCreatePermissionsForResourceNormalizesName(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	perms, err := service.CreatePermissionsForResource(context.Background(), "  Invoices ", false)
	require.NoError(t, err)
	assert.Equal(t, "view invoices", perms[0].Name)
}
