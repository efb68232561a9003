package rbac

import (
	"context"

	"github.com/gatehouse-app/gatehouse/internal/permission"
)

// Default actions and resource names used by the engine guards.
const (
	ActionView        = "view"
	ActionEdit        = "edit"
	ActionDelete      = "delete"
	ActionForceDelete = "force-delete"

	// UserResource is the resource token of principal records.
	UserResource = "users"
)

// Decision is the outcome of an authorization check. Deny is a normal
// result, not an error; callers map it to a 403-class signal.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Source supplies the role and permission state the engine evaluates.
// Implementations fetch from persistence; the engine itself is pure.
type Source interface {
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Engine decides allow/deny for an (actor, action, resource) triple.
type Engine struct {
	source      Source
	bypassRoles map[string]struct{}
	selfActions map[string]struct{}
	onDecision  func(Decision)
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithBypassRoles replaces the set of roles that short-circuit all
// permission checks.
func WithBypassRoles(names ...string) EngineOption {
	return func(e *Engine) {
		e.bypassRoles = make(map[string]struct{}, len(names))
		for _, n := range names {
			e.bypassRoles[n] = struct{}{}
		}
	}
}

// WithSelfActions replaces the actions a principal may always perform
// on its own record, regardless of granted permissions.
func WithSelfActions(actions ...string) EngineOption {
	return func(e *Engine) {
		e.selfActions = make(map[string]struct{}, len(actions))
		for _, a := range actions {
			e.selfActions[a] = struct{}{}
		}
	}
}

// WithDecisionHook registers a callback invoked with every decision the
// engine reaches, typically to feed metrics.
func WithDecisionHook(fn func(Decision)) EngineOption {
	return func(e *Engine) {
		e.onDecision = fn
	}
}

// NewEngine constructs an Engine. By default the bypass roles are
// superadmin and admin, and a principal may always view and edit its
// own record.
func NewEngine(source Source, opts ...EngineOption) *Engine {
	e := &Engine{
		source: source,
		bypassRoles: map[string]struct{}{
			"superadmin": {},
			"admin":      {},
		},
		selfActions: map[string]struct{}{
			ActionView: {},
			ActionEdit: {},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize evaluates the guards in order, first match wins:
//
//  1. self-deletion of the principal record is denied unconditionally,
//     before any role or permission is consulted;
//  2. a bypass role grants everything else;
//  3. a general "<action> <resource>" permission covers all instances;
//  4. an own-qualified "<action> own <resource>" permission covers
//     instances owned by the actor, as do the always-allowed self
//     actions on the principal's own record.
//
// Only persistence fetch failures return an error; an unauthorized
// request is a normal Deny decision.
func (e *Engine) Authorize(ctx context.Context, userID int64, action, resourceType string, resource Resource) (Decision, error) {
	decision, err := e.decide(ctx, userID, action, resourceType, resource)
	if err == nil && e.onDecision != nil {
		e.onDecision(decision)
	}
	return decision, err
}

func (e *Engine) decide(ctx context.Context, userID int64, action, resourceType string, resource Resource) (Decision, error) {
	ownsResource := resource != nil && resource.OwnerID() == userID

	if ownsResource && resourceType == UserResource && (action == ActionDelete || action == ActionForceDelete) {
		return deny("self-deletion is never permitted"), nil
	}

	roleNames, err := e.source.RoleNamesForUser(ctx, userID)
	if err != nil {
		return deny("role lookup failed"), err
	}
	for _, name := range roleNames {
		if _, ok := e.bypassRoles[name]; ok {
			return allow("bypass role " + name), nil
		}
	}

	granted, err := e.source.EffectivePermissions(ctx, userID)
	if err != nil {
		return deny("permission lookup failed"), err
	}
	set := permission.NewSetFromNames(granted)

	if set.Contains(permission.Format(action, false, resourceType)) {
		return allow("permission " + permission.Format(action, false, resourceType)), nil
	}

	if ownsResource {
		if resourceType == UserResource {
			if _, ok := e.selfActions[action]; ok {
				return allow("own record"), nil
			}
		}
		if set.Contains(permission.Format(action, true, resourceType)) {
			return allow("permission " + permission.Format(action, true, resourceType)), nil
		}
	}

	return deny("no matching permission"), nil
}
