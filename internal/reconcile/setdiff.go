package reconcile

// Diff computes desired − installed and installed − desired. Output order
// follows the input slices and duplicates collapse to their first occurrence.
func Diff[K comparable](desired, installed []K) (toAdd, toRemove []K) {
	want := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		want[k] = struct{}{}
	}
	have := make(map[K]struct{}, len(installed))
	for _, k := range installed {
		have[k] = struct{}{}
	}

	seen := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := have[k]; !ok {
			toAdd = append(toAdd, k)
		}
	}

	clear(seen)
	for _, k := range installed {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := want[k]; !ok {
			toRemove = append(toRemove, k)
		}
	}
	return toAdd, toRemove
}
