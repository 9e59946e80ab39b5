package attr

import "sort"

// Encode converts a client-shaped attribute map into the pair list the store
// persists. Pairs are emitted in ascending name order so the stored document
// is deterministic for a given map.
func Encode(m Map) []Pair {
	if len(m) == 0 {
		return []Pair{}
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]Pair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, Pair{Name: name, Value: m[name]})
	}
	return pairs
}

// Decode converts a stored pair list back into the flattened map returned to
// clients. Decode(Encode(m)) == m for any map with unique keys. The reverse
// composition Encode(Decode(p)) reproduces p only up to pair ordering: the
// intermediate map is unordered by contract, and clients never depend on
// attribute order. Duplicate names keep the last pair, matching map overwrite
// semantics.
func Decode(pairs []Pair) Map {
	m := make(Map, len(pairs))
	for _, p := range pairs {
		m[p.Name] = p.Value
	}
	return m
}
