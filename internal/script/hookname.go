package script

import "strings"

// NormalizedHookName carries the three casings hook classification works in.
type NormalizedHookName struct {
	Trimmed    string
	Normalized string
	Simplified string
}

// NormalizeHookName trims, lowercases, and strips underscores from a hook
// name. Blank input yields false.
func NormalizeHookName(input string) (NormalizedHookName, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return NormalizedHookName{}, false
	}
	normalized := strings.ToLower(trimmed)
	simplified := strings.ReplaceAll(normalized, "_", "")
	return NormalizedHookName{
		Trimmed:    trimmed,
		Normalized: normalized,
		Simplified: simplified,
	}, true
}
