package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gatehouse-app/gatehouse/internal/menu"
)

// defaultMenuMap is used when MENU_MAP_PATH is not set. Entries with an
// empty permission derive one from their href.
var defaultMenuMap = []menu.MapEntry{
	{Title: "Dashboard", Href: "/dashboard", Icon: "home", Order: 1},
	{Title: "Users", Href: "/users", Icon: "users", Order: 2},
	{Title: "Roles", Href: "/roles", Icon: "shield", Order: 3},
	{Title: "Menus", Href: "/menu/items", Icon: "list", Order: 4, Permission: "manage menus"},
}

// LoadMenuMap reads the permission-driven menu map from a JSON file. An
// empty path falls back to the built-in map.
func LoadMenuMap(path string) ([]menu.MapEntry, error) {
	if path == "" {
		return defaultMenuMap, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu map: %w", err)
	}
	var entries []menu.MapEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse menu map: %w", err)
	}
	return entries, nil
}
