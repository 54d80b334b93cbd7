package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against the allowed set. Enum values are
// lowercase snake_case on the wire and in the database.
func parse[T ~string](value string, allowed []T, kind string) (T, error) {
	if v := T(value); slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
