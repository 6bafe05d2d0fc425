package settings

import (
	_ "embed"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultRoleMenuYAML []byte

type (
	// Permissions maps a permission key (read, write, upload...) to whether it is granted.
	Permissions map[string]bool

	// RoleMenu maps role -> menu -> permissions.
	RoleMenu map[string]map[string]Permissions

	Change struct {
		Role   string `json:"role"`
		Menu   string `json:"menu"`
		Key    string `json:"key"`
		Before bool   `json:"before"`
		After  bool   `json:"after"`
	}

	LogEntry struct {
		Time    time.Time `json:"time"`
		Changes []Change  `json:"changes"`
	}
)

// DefaultRoleMenu returns a fresh copy of the built-in matrix.
func DefaultRoleMenu() (RoleMenu, error) {
	var rm RoleMenu
	if err := yaml.Unmarshal(defaultRoleMenuYAML, &rm); err != nil {
		return nil, errors.Wrap(err, "decoding default role menu")
	}
	return rm, nil
}

// Allowed reports whether role holds the permission key on menu.
func (rm RoleMenu) Allowed(role, menu, key string) bool {
	return rm[role][menu][key]
}

// DiffRoleMenu lists every permission of next whose value differs from prev.
// Permissions missing from prev count as not granted. The result is sorted by role, menu, key.
func DiffRoleMenu(prev, next RoleMenu) []Change {
	changes := make([]Change, 0)
	for _, role := range sortedKeys(next) {
		menus := next[role]
		for _, menu := range sortedKeys(menus) {
			perms := menus[menu]
			for _, key := range sortedKeys(perms) {
				before := prev[role][menu][key]
				if after := perms[key]; after != before {
					changes = append(changes, Change{Role: role, Menu: menu, Key: key, Before: before, After: after})
				}
			}
		}
	}
	return changes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
