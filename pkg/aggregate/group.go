// Package aggregate holds the in-memory aggregations shared by the dashboard views.
package aggregate

// Group is one key and the value reduced over every item that mapped to it.
type Group[K comparable, V any] struct {
	Key   K
	Value V
}

// GroupBy folds items into groups. key extracts the group key, init creates the starting
// value the first time a key is seen, and reduce folds an item into its group's value.
// Groups are returned in the order their keys were first seen.
func GroupBy[T any, K comparable, V any](
	items []T,
	key func(T) K,
	init func(K) V,
	reduce func(V, T) V,
) []Group[K, V] {
	index := make(map[K]int)
	groups := make([]Group[K, V], 0)
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, V]{Key: k, Value: init(k)})
		}
		groups[i].Value = reduce(groups[i].Value, item)
	}
	return groups
}

// Values drops the keys and returns the reduced values in group order.
func Values[K comparable, V any](groups []Group[K, V]) []V {
	out := make([]V, len(groups))
	for i, g := range groups {
		out[i] = g.Value
	}
	return out
}
