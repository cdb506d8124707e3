package config

import (
	"fmt"

	"github.com/florentina1509/dizidunya/pkg/state"
)

// CompilePermissions takes a slice of permission names and returns a combined bitmap.
func CompilePermissions(names []string) (state.Permission, error) {
	var bitmap state.Permission
	for _, name := range names {
		value, ok := state.BuiltInPerms[name]
		if !ok {
			return 0, fmt.Errorf("permission '%s' not found", name)
		}
		bitmap |= value
	}
	return bitmap, nil
}
