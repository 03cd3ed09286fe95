package domain

// IsHandleViewed treats a handle id and its progress key as aliases.
func IsHandleViewed(viewed map[string]struct{}, handleID, progressKey string) bool {
	if _, ok := viewed[handleID]; ok {
		return true
	}
	if progressKey == "" {
		return false
	}
	_, ok := viewed[progressKey]
	return ok
}

type HandleKey struct {
	HandleID    string
	ProgressKey string
}

// ExpandViewedKeys returns a copy of viewed where every handle whose id or
// progress key is present also contributes the other alias.
func ExpandViewedKeys(viewed map[string]struct{}, handles []HandleKey) map[string]struct{} {
	out := make(map[string]struct{}, len(viewed))
	for k := range viewed {
		out[k] = struct{}{}
	}
	for _, h := range handles {
		if h.ProgressKey == "" {
			continue
		}
		if _, ok := out[h.HandleID]; ok {
			out[h.ProgressKey] = struct{}{}
		}
		if _, ok := out[h.ProgressKey]; ok {
			out[h.HandleID] = struct{}{}
		}
	}
	return out
}
