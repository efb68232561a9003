package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-app/gatehouse/internal/menu"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

type stubMenuRepo struct {
	items map[int64]menu.Item
}

func newStubMenuRepo(items ...menu.Item) *stubMenuRepo {
	repo := &stubMenuRepo{items: make(map[int64]menu.Item, len(items))}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (s *stubMenuRepo) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func (s *stubMenuRepo) ItemsForRoles(ctx context.Context, roleIDs []int64) ([]menu.Item, error) {
	return nil, nil
}

func (s *stubMenuRepo) AllItems(ctx context.Context) ([]menu.Item, error) {
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]menu.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *stubMenuRepo) GetItem(ctx context.Context, id int64) (menu.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return menu.Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (s *stubMenuRepo) CreateItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	return item, nil
}

func (s *stubMenuRepo) UpdateItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	return item, nil
}

func (s *stubMenuRepo) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestCheckRoleMenusCommandReportsDuplicates(t *testing.T) {
	repo := newStubMenuRepo(
		menu.Item{ID: 1, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 1},
		menu.Item{ID: 2, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 2},
		menu.Item{ID: 3, RoleID: 2, Title: "Users", Href: "/users", Order: 1},
	)
	service := menu.NewService(repo, menu.StrategyRole, nil, nil, nil, nil)
	cli := NewMenuOpsCLI(service)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.CheckRoleMenusCommand(context.Background(), CheckRoleMenusOptions{
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary CheckRoleMenusSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Len(t, summary.Groups, 1)
	require.Equal(t, []int64{1, 2}, summary.Groups[0].IDs)
	require.False(t, summary.Fixed)

	// the scan alone must not delete anything
	require.Len(t, repo.items, 3)
}

func TestCheckRoleMenusCommandFixKeepsLowestID(t *testing.T) {
	repo := newStubMenuRepo(
		menu.Item{ID: 1, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 1},
		menu.Item{ID: 2, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 2},
		menu.Item{ID: 3, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 3},
	)
	service := menu.NewService(repo, menu.StrategyRole, nil, nil, nil, nil)
	cli := NewMenuOpsCLI(service)

	stdout := new(bytes.Buffer)
	exitCode := cli.CheckRoleMenusCommand(context.Background(), CheckRoleMenusOptions{
		Fix:        true,
		JSONOutput: true,
		Stdout:     stdout,
	})
	require.Zero(t, exitCode)

	var summary CheckRoleMenusSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.Fixed)
	require.Equal(t, int64(2), summary.Deleted)

	_, survivor := repo.items[1]
	require.True(t, survivor)
	require.Len(t, repo.items, 1)
}

func TestCheckRoleMenusCommandCleanTree(t *testing.T) {
	repo := newStubMenuRepo(
		menu.Item{ID: 1, RoleID: 1, Title: "Dashboard", Href: "/dashboard", Order: 1},
	)
	service := menu.NewService(repo, menu.StrategyRole, nil, nil, nil, nil)
	cli := NewMenuOpsCLI(service)

	stdout := new(bytes.Buffer)
	exitCode := cli.CheckRoleMenusCommand(context.Background(), CheckRoleMenusOptions{Stdout: stdout})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "no duplicate menu rows found")
}
