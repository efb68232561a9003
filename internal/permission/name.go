package permission

import "strings"

// FallbackResource is assigned when a name carries no resource token.
const FallbackResource = "other"

// OwnQualifier marks a permission restricted to resources owned by the actor.
const OwnQualifier = "own"

// Name is the decomposed form of a permission string such as
// "edit own users": an action verb, an optional ownership qualifier
// and a resource token.
type Name struct {
	Action   string
	Own      bool
	Resource string
}

// Parse decomposes a permission string. The grammar is total: every
// input yields a Name. Single-token names ("dashboard") keep the token
// as the action and fall back to resource "other"; the ownership
// qualifier is only recognised as the second of three tokens.
func Parse(raw string) Name {
	parts := strings.Split(raw, " ")
	name := Name{Action: parts[0], Resource: FallbackResource}
	if len(parts) < 2 {
		return name
	}
	if parts[1] == OwnQualifier {
		name.Own = true
		if len(parts) > 2 {
			name.Resource = parts[2]
		}
		return name
	}
	name.Resource = parts[1]
	return name
}

// String reassembles the permission string. It is the inverse of Parse
// for names that match the grammar exactly.
func (n Name) String() string {
	if n.Own {
		return n.Action + " " + OwnQualifier + " " + n.Resource
	}
	return n.Action + " " + n.Resource
}

// DisplayAction renders the action for grouping views, attaching the
// ownership qualifier ("edit own") without folding it into the
// resource bucket.
func (n Name) DisplayAction() string {
	if n.Own {
		return n.Action + " " + OwnQualifier
	}
	return n.Action
}

// Format builds the canonical permission string for an action on a
// resource, optionally own-qualified.
func Format(action string, own bool, resource string) string {
	return Name{Action: action, Own: own, Resource: resource}.String()
}
