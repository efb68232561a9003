package menu

import "time"

// Item is a persisted menu row. Each item belongs to exactly one role;
// parent/child links are resolved by id, never by embedded references.
type Item struct {
	ID        int64
	RoleID    int64
	Title     string
	Href      string
	Icon      string
	Order     int
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Node is a visible entry in the navigation tree returned to a user.
type Node struct {
	Title    string `json:"title"`
	Href     string `json:"href"`
	Icon     string `json:"icon,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// DuplicateGroup collects menu items that share the same
// (role, title, href) tuple, which the schema treats as unique.
type DuplicateGroup struct {
	RoleID int64
	Title  string
	Href   string
	Items  []Item
}

// MapEntry is one row of the static permission-to-menu map consumed by
// the permission-driven strategy: holding the permission makes the
// entry visible.
type MapEntry struct {
	Permission string `json:"permission"`
	Title      string `json:"title"`
	Href       string `json:"href"`
	Icon       string `json:"icon"`
	Order      int    `json:"order"`
}
