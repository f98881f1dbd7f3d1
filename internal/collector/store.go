package collector

// Store is an insertion-ordered key → item map holding the items a collector
// has accepted so far. Overwriting an existing key keeps its original
// position; deleting removes the key with no trace.
type Store[T any] struct {
	keys  []string
	items map[string]T
}

// NewStore creates an empty store
func NewStore[T any]() *Store[T] {
	return &Store[T]{items: make(map[string]T)}
}

// Set inserts or overwrites the item stored under key
func (s *Store[T]) Set(key string, item T) {
	if _, ok := s.items[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.items[key] = item
}

// Get returns the item stored under key
func (s *Store[T]) Get(key string) (T, bool) {
	item, ok := s.items[key]
	return item, ok
}

// Has returns true if key is present
func (s *Store[T]) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Delete removes key and returns the item it held
func (s *Store[T]) Delete(key string) (T, bool) {
	item, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.items, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return item, true
}

// Len returns the number of stored items
func (s *Store[T]) Len() int {
	return len(s.items)
}

// Keys returns the stored keys in insertion order
func (s *Store[T]) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// First returns the earliest-inserted item
func (s *Store[T]) First() (T, bool) {
	if len(s.keys) == 0 {
		var zero T
		return zero, false
	}
	return s.items[s.keys[0]], true
}

// Last returns the latest-inserted item
func (s *Store[T]) Last() (T, bool) {
	if len(s.keys) == 0 {
		var zero T
		return zero, false
	}
	return s.items[s.keys[len(s.keys)-1]], true
}

// Each calls fn for every entry in insertion order.
// Returning false stops the iteration.
func (s *Store[T]) Each(fn func(key string, item T) bool) {
	for _, k := range s.keys {
		if !fn(k, s.items[k]) {
			return
		}
	}
}
