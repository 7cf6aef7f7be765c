package domain

import (
	"strings"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
)

// Deduplicate keeps one representative per unique group name, where
// uniqueness is case-insensitive, trimmed name equality. The first
// occurrence wins and input order is preserved, so the pass is
// idempotent: Deduplicate(Deduplicate(x)) == Deduplicate(x).
func Deduplicate(groups []contactdomain.Group) []contactdomain.Group {
	seen := make(map[string]struct{}, len(groups))
	out := make([]contactdomain.Group, 0, len(groups))
	for _, group := range groups {
		key := strings.ToLower(strings.TrimSpace(group.Name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, group)
	}
	return out
}

// Truncate caps a group list at maxGroups, applying the default when the
// caller set none.
func Truncate(groups []contactdomain.Group, maxGroups int) []contactdomain.Group {
	if maxGroups <= 0 {
		maxGroups = DefaultMaxGroups
	}
	if len(groups) <= maxGroups {
		return groups
	}
	return groups[:maxGroups]
}
