package feed

import "github.com/samber/lo"

// MergeItems returns every item of primary in its order followed by the items
// of secondary whose identity is not already included, in secondary's order.
// The primary copy of a duplicate wins. No date ordering is applied.
func MergeItems(primary, secondary []Item) []Item {
	seen := lo.SliceToMap(primary, func(item Item) (Identity, struct{}) {
		return item.Identity(), struct{}{}
	})

	novel := lo.Filter(secondary, func(item Item, _ int) bool {
		id := item.Identity()
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	})

	merged := make([]Item, 0, len(primary)+len(novel))
	merged = append(merged, primary...)
	return append(merged, novel...)
}
