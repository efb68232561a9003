package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw      string
		action   string
		own      bool
		resource string
	}{
		{"view users", "view", false, "users"},
		{"edit own users", "edit", true, "users"},
		{"delete roles", "delete", false, "roles"},
		{"manage settings", "manage", false, "settings"},
		{"view dashboard", "view", false, "dashboard"},
		{"dashboard", "dashboard", false, "other"},
		{"view own", "view", true, "other"},
		{"", "", false, "other"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			name := Parse(tc.raw)
			assert.Equal(t, tc.action, name.Action)
			assert.Equal(t, tc.own, name.Own)
			assert.Equal(t, tc.resource, name.Resource)
		})
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{"", " ", "  ", "a b c d e", "own", "own own own", "view  users"}
	for _, raw := range inputs {
		assert.NotPanics(t, func() { _ = Parse(raw) }, "input %q", raw)
	}
}

func TestStringRoundTrip(t *testing.T) {
	wellFormed := []string{
		"view users",
		"create users",
		"edit own users",
		"delete own posts",
		"view dashboard",
	}
	for _, raw := range wellFormed {
		assert.Equal(t, raw, Parse(raw).String())
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "view users", Format("view", false, "users"))
	assert.Equal(t, "edit own users", Format("edit", true, "users"))
}

func TestDisplayAction(t *testing.T) {
	assert.Equal(t, "edit own", Parse("edit own users").DisplayAction())
	assert.Equal(t, "view", Parse("view users").DisplayAction())
}
