package memory

// Dedupe merges the hot and warm tiers, dropping warm items whose
// identity key already appears in the hot tier (the hot instance is the
// more precise one). Output ordering is load-bearing for truncation:
// hot items first in recency order, then the surviving warm items in
// descending similarity order, so the tail is always the first to go.
//
// Pure function of its inputs.
func Dedupe(hot, warm []*Item) []*Item {
	seen := make(map[string]struct{}, len(hot))
	merged := make([]*Item, 0, len(hot)+len(warm))

	for _, it := range hot {
		seen[it.Key] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range warm {
		if _, dup := seen[it.Key]; dup {
			continue
		}
		seen[it.Key] = struct{}{}
		merged = append(merged, it)
	}
	return merged
}
