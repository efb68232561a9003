package roles

import (
	"time"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
)

// Role represents a role for management, optionally with its granted
// permissions attached.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Permissions []rbac.Permission
}

// StandardActions is the permission bundle generated for every managed
// resource.
var StandardActions = []string{
	"view", "create", "edit", "delete",
	"approve", "publish", "archive", "restore",
	"export", "import", "manage", "assign",
}

// OwnActions are the own-qualified permissions generated alongside the
// standard bundle when requested.
var OwnActions = []string{"view", "edit", "delete"}
