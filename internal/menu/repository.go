package menu

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository provides PostgreSQL backed persistence for menu items.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, role_id, title, href, icon, "order", parent_id, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.RoleID, &item.Title, &item.Href, &item.Icon,
		&item.Order, &item.ParentID, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RoleIDsForUser returns the ids of the roles assigned to a user.
func (r *Repository) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ItemsForRoles returns every menu item attached to one of the roles.
func (r *Repository) ItemsForRoles(ctx context.Context, roleIDs []int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM role_menus WHERE role_id = ANY($1) ORDER BY "order", id`, roleIDs)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// AllItems returns every menu item ordered by id.
func (r *Repository) AllItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM role_menus ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// GetItem fetches a menu item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM role_menus WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// CreateItem inserts a new menu item.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	created, err := scanItem(r.pool.QueryRow(ctx, `
		INSERT INTO role_menus (role_id, title, href, icon, "order", parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+itemColumns,
		item.RoleID, item.Title, item.Href, item.Icon, item.Order, item.ParentID))
	if err != nil {
		return Item{}, shared.MapPGError(err)
	}
	return created, nil
}

// UpdateItem persists changes to an existing menu item.
func (r *Repository) UpdateItem(ctx context.Context, item Item) (Item, error) {
	updated, err := scanItem(r.pool.QueryRow(ctx, `
		UPDATE role_menus
		SET role_id = $2, title = $3, href = $4, icon = $5, "order" = $6, parent_id = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.RoleID, item.Title, item.Href, item.Icon, item.Order, item.ParentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, shared.MapPGError(err)
	}
	return updated, nil
}

// DeleteItems removes the given menu items, returning how many rows
// were deleted.
func (r *Repository) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_menus WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ RepositoryPort = (*Repository)(nil)
