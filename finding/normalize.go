package finding

import "strings"

// NormalizeTestName canonicalizes a control-test name for comparison:
// lowercase, with spaces and hyphens folded to underscores. Names that
// differ only by case or separator style compare equal after normalization.
func NormalizeTestName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

// NormalizeTestNames normalizes a list of control-test names into a set.
func NormalizeTestNames(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[NormalizeTestName(n)] = struct{}{}
	}
	return out
}
