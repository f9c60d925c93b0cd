package core

import "sort"

// selectTop keeps the k highest-valued points, then restores ascending key order.
// Equal values keep their bucket order. k <= 0 keeps everything.
func selectTop(points []point, k int) []point {
	if k <= 0 || len(points) == 0 {
		return points
	}

	ranked := make([]point, len(points))
	copy(ranked, points)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].value > ranked[j].value
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].key < ranked[j].key
	})
	return ranked
}
