package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability identified by its name.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// Resource is a concrete resource instance with an owner identity,
// supplied when an authorization check should consider ownership.
type Resource interface {
	OwnerID() int64
}

// OwnedBy adapts a bare owner id into a Resource.
type OwnedBy int64

// OwnerID returns the wrapped owner id.
func (o OwnedBy) OwnerID() int64 { return int64(o) }
