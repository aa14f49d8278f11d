package config

// MergeTrees layers l over g and returns a new tree. Neither input is
// modified.
//
//   - scalars: l replaces g
//   - arrays: g followed by l, no deduplication
//   - tables: merged key by key with the same rules
//
// A key whose kinds differ between the layers (table in one, scalar in the
// other) takes the l value.
func MergeTrees(g, l map[string]any) map[string]any {
	out := make(map[string]any, len(g)+len(l))
	for k, v := range g {
		out[k] = cloneValue(v)
	}
	for k, lv := range l {
		gv, ok := out[k]
		if !ok {
			out[k] = cloneValue(lv)
			continue
		}
		out[k] = mergeValue(gv, lv)
	}
	return out
}

func mergeValue(g, l any) any {
	switch lv := l.(type) {
	case map[string]any:
		if gm, ok := g.(map[string]any); ok {
			return MergeTrees(gm, lv)
		}
	case []any:
		if ga, ok := g.([]any); ok {
			merged := make([]any, 0, len(ga)+len(lv))
			for _, v := range ga {
				merged = append(merged, cloneValue(v))
			}
			for _, v := range lv {
				merged = append(merged, cloneValue(v))
			}
			return merged
		}
	}
	return cloneValue(l)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return MergeTrees(t, nil)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
