package core

import "github.com/huangsam/chartkit/internal/contract"

// remapLabels renames bucket keys in one pass over the computed points.
// Renames are applied in sorted old-key order; when several keys land on the
// same new key the last applied one provides the value, at the position of the
// first. Keys not mentioned keep their value and position.
func remapLabels(points []point, labels map[string]string) []point {
	if len(labels) == 0 || len(points) == 0 {
		return points
	}

	// rank orders writers to a key: untouched keys first, then renames in application order.
	rank := make(map[string]int, len(labels))
	for i, old := range contract.SortedLabelKeys(labels) {
		rank[old] = i
	}

	out := make([]point, 0, len(points))
	position := make(map[string]int, len(points))
	writer := make(map[string]int, len(points))
	for _, p := range points {
		key, r := p.key, -1
		if newKey, ok := labels[p.key]; ok {
			key, r = newKey, rank[p.key]
		}
		i, exists := position[key]
		if !exists {
			position[key] = len(out)
			writer[key] = r
			out = append(out, point{key: key, at: p.at, value: p.value})
			continue
		}
		if r > writer[key] {
			writer[key] = r
			out[i].value = p.value
		}
	}
	return out
}
