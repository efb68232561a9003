package permission

import "sort"

// Set is the effective permission set of a principal: the union of the
// permissions of every role the principal holds. It is derived on each
// query and never persisted.
type Set struct {
	names map[string]struct{}
}

// NewSet builds a Set from a role-name to permission-names mapping.
func NewSet(byRole map[string][]string) Set {
	s := Set{names: make(map[string]struct{})}
	for _, perms := range byRole {
		for _, p := range perms {
			s.names[p] = struct{}{}
		}
	}
	return s
}

// NewSetFromNames builds a Set from a flat list of permission names.
func NewSetFromNames(names []string) Set {
	s := Set{names: make(map[string]struct{}, len(names))}
	for _, p := range names {
		s.names[p] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the exact permission name.
func (s Set) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// ContainsAny reports whether the set holds at least one of the names.
func (s Set) ContainsAny(names ...string) bool {
	for _, n := range names {
		if s.Contains(n) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct permission names.
func (s Set) Len() int {
	return len(s.names)
}

// Names returns the permission names sorted lexicographically.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Grouped is one display entry inside a resource bucket.
type Grouped struct {
	Name   string `json:"name"`
	Action string `json:"action"`
	Own    bool   `json:"own"`
}

// GroupedByResource buckets the permissions by their resource token.
// The bucket key is the exact resource token; own-qualified names stay
// in their resource bucket with the qualifier attached to the action.
// Entries within a bucket are sorted by name for stable output.
func (s Set) GroupedByResource() map[string][]Grouped {
	grouped := make(map[string][]Grouped)
	for _, raw := range s.Names() {
		name := Parse(raw)
		grouped[name.Resource] = append(grouped[name.Resource], Grouped{
			Name:   raw,
			Action: name.DisplayAction(),
			Own:    name.Own,
		})
	}
	return grouped
}
