package cmap

// Keys returns a snapshot of the key set. Keys added or removed after a
// shard has been copied are not reflected.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// GetOrSet returns the existing value for key if present. Otherwise it
// stores and returns value. loaded is true when the value was present.
func (m *Map[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	s.items[key] = value
	return value, false
}

// SetIfAbsent sets the value only if the key does not exist.
// Returns true if the value was set.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	_, loaded := m.GetOrSet(key, value)
	return !loaded
}

// Update atomically replaces the value for key with fn(existing, exists).
func (m *Map[K, V]) Update(key K, fn func(existing V, exists bool) V) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[key]
	v := fn(existing, exists)
	s.items[key] = v
	return v
}

// DeleteIf removes key only when match reports true for the current value.
// Returns true if the key was removed.
func (m *Map[K, V]) DeleteIf(key K, match func(V) bool) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if !ok || !match(val) {
		return false
	}
	delete(s.items, key)
	return true
}
