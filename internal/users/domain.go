package users

import (
	"time"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
)

// User represents a principal: an authenticated account evaluated
// against the authorization engine.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Roles []rbac.Role
}

// OwnerID makes a user record its own owner for ownership checks, so
// own-qualified permissions and the self-deletion guard apply to it.
func (u User) OwnerID() int64 { return u.ID }

var _ rbac.Resource = User{}
