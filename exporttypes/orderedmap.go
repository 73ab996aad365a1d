package exporttypes

import (
	"encoding/json"
)

// OrderedMap is a mapping that remembers insertion order. Its JSON form is a
// list of {"key": ..., "value": ...} entries.
//
// The zero value is ready to use.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

type entry[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// Set inserts key or, when already present, replaces its value in place.
func (m *OrderedMap[K, V]) Set(key K, value V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Add inserts key only if it is absent and reports whether it did.
func (m *OrderedMap[K, V]) Add(key K, value V) bool {
	if m.Has(key) {
		return false
	}
	m.Set(key, value)
	return true
}

func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.values[key]
	return ok
}

func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	return append([]K(nil), m.keys...)
}

// Each calls fn for every entry in insertion order.
func (m *OrderedMap[K, V]) Each(fn func(K, V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Clone returns a shallow copy that can be modified independently.
func (m *OrderedMap[K, V]) Clone() OrderedMap[K, V] {
	var out OrderedMap[K, V]
	m.Each(out.Set)
	return out
}

func (m OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	entries := make([]entry[K, V], 0, len(m.keys))
	for _, k := range m.keys {
		entries = append(entries, entry[K, V]{Key: k, Value: m.values[k]})
	}
	return json.Marshal(entries)
}

func (m *OrderedMap[K, V]) UnmarshalJSON(data []byte) error {
	var entries []entry[K, V]
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*m = OrderedMap[K, V]{}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return nil
}
