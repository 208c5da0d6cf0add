// Package cimap provides a map keyed by strings that are compared under a
// case-folding rule, such as the case mapping an IRC server advertises.
package cimap

// Folder normalizes a name so that case variants compare equal.
type Folder interface {
	Fold(name string) string
}

// FolderFunc allows a bare function to be used as a Folder.
type FolderFunc func(string) string

func (f FolderFunc) Fold(name string) string {
	return f(name)
}

type entry[V any] struct {
	key   string
	value V
}

// Map is a case-insensitive map. Iteration follows the order in which each
// distinct folded key was first inserted.
//
// A Map is not safe for concurrent mutation, its owner has to guard it.
type Map[V any] struct {
	folder  Folder
	entries map[string]*entry[V]
	order   []string
}

// New creates an empty map that folds keys using the given folder.
func New[V any](folder Folder) *Map[V] {
	if folder == nil {
		panic("cimap: folder must not be nil")
	}
	return &Map[V]{
		folder:  folder,
		entries: map[string]*entry[V]{},
	}
}

// Folder returns the folder this map compares keys with.
func (m *Map[V]) Folder() Folder {
	return m.folder
}

func (m *Map[V]) Get(key string) (value V, ok bool) {
	e, ok := m.entries[m.folder.Fold(key)]
	if !ok {
		return
	}
	return e.value, true
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.entries[m.folder.Fold(key)]
	return ok
}

// Put stores value under key. If an entry with an equally folded key exists,
// its key and value are replaced but its position is kept.
func (m *Map[V]) Put(key string, value V) {
	folded := m.folder.Fold(key)
	if e, ok := m.entries[folded]; ok {
		e.key = key
		e.value = value
		return
	}
	m.entries[folded] = &entry[V]{key: key, value: value}
	m.order = append(m.order, folded)
}

// Delete removes the entry for key and returns its value, if there was one.
func (m *Map[V]) Delete(key string) (value V, ok bool) {
	folded := m.folder.Fold(key)
	e, ok := m.entries[folded]
	if !ok {
		return
	}
	delete(m.entries, folded)
	for index, k := range m.order {
		if k == folded {
			m.order = append(m.order[:index], m.order[index+1:]...)
			break
		}
	}
	return e.value, true
}

func (m *Map[V]) Len() int {
	return len(m.order)
}

// Keys returns the keys as they were last stored, in iteration order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, len(m.order))
	for _, folded := range m.order {
		keys = append(keys, m.entries[folded].key)
	}
	return keys
}

func (m *Map[V]) Values() []V {
	values := make([]V, 0, len(m.order))
	for _, folded := range m.order {
		values = append(values, m.entries[folded].value)
	}
	return values
}

// Range calls f for every entry in iteration order until f returns false.
// f must not modify the map.
func (m *Map[V]) Range(f func(key string, value V) bool) {
	for _, folded := range m.order {
		e := m.entries[folded]
		if !f(e.key, e.value) {
			return
		}
	}
}

// Clone returns a shallow copy of the map using the same folder.
func (m *Map[V]) Clone() *Map[V] {
	c := &Map[V]{
		folder:  m.folder,
		entries: make(map[string]*entry[V], len(m.entries)),
		order:   make([]string, len(m.order)),
	}
	copy(c.order, m.order)
	for folded, e := range m.entries {
		c.entries[folded] = &entry[V]{key: e.key, value: e.value}
	}
	return c
}
