package resolve

// Dedup concatenates lists and drops exact-string repeats, keeping the
// first occurrence and the original order. It never returns nil.
func Dedup(lists ...[]string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
