package utils

import (
	"strconv"
	"strings"
)

// IndexPlaceholder is replaced by the unit's position in its group.
const IndexPlaceholder = "{n}"

// GroupDisplayID names the index-th unit of a group. A pattern with "{n}" gets the
// index substituted; any other pattern (or the group name when the pattern is
// empty) gets " #index" appended.
func GroupDisplayID(pattern, groupName string, index int) string {
	n := strconv.Itoa(index)
	base := strings.TrimSpace(pattern)
	if base == "" {
		base = strings.TrimSpace(groupName)
	}
	if strings.Contains(base, IndexPlaceholder) {
		return strings.ReplaceAll(base, IndexPlaceholder, n)
	}
	return base + " #" + n
}

// SameVehicleKind reports whether two vehicles may be pooled together.
func SameVehicleKind(typeA, categoryA, typeB, categoryB string) bool {
	return strings.EqualFold(strings.TrimSpace(typeA), strings.TrimSpace(typeB)) &&
		strings.EqualFold(strings.TrimSpace(categoryA), strings.TrimSpace(categoryB))
}
