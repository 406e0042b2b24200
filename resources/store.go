package resources

import (
	"fmt"
	"slices"
	"strings"
)

// Store keeps resources by their names and aliases.  A Store is not safe for
// concurrent use if any of the goroutines modify it.
type Store struct {
	// byKey maps names and aliases to resources.
	byKey map[string]*Resource
}

// NewStore returns a new empty *Store.
func NewStore() (s *Store) {
	return &Store{
		byKey: map[string]*Resource{},
	}
}

// Add adds a copy of r to the store.  A resource with the same key, be it a
// name or an alias, is replaced.
func (s *Store) Add(r *Resource) (err error) {
	err = r.validate()
	if err != nil {
		return fmt.Errorf("adding resource: %w", err)
	}

	s.add(r.clone())

	return nil
}

// add adds r without validation.
func (s *Store) add(r *Resource) {
	for _, key := range append([]string{r.Name}, r.Aliases...) {
		if prev, ok := s.byKey[key]; ok && prev != r {
			s.detach(prev, key)
		}

		s.byKey[key] = r
	}
}

// detach removes key from the keys of prev.  The keys still pointing to prev
// are moved to a copy of it, so that the resources returned to the callers are
// never modified.
func (s *Store) detach(prev *Resource, key string) {
	var keys []string
	for _, k := range append([]string{prev.Name}, prev.Aliases...) {
		if k != key && s.byKey[k] == prev {
			keys = append(keys, k)
		}
	}

	if len(keys) == 0 {
		return
	}

	next := prev.clone()
	next.Name, next.Aliases = keys[0], keys[1:]
	for _, k := range keys {
		s.byKey[k] = next
	}
}

// Get returns the resource by its name or alias.
func (s *Store) Get(key string) (r *Resource, ok bool) {
	r, ok = s.byKey[key]

	return r, ok
}

// Scriptlet returns the resource of the scriptlet with the given name.  The
// name may be given with or without the ".js" extension.
func (s *Store) Scriptlet(name string) (r *Resource, ok bool) {
	if r, ok = s.byKey[name]; ok {
		return r, true
	}

	if base, found := strings.CutSuffix(name, ".js"); found {
		r, ok = s.byKey[base]
	} else {
		r, ok = s.byKey[name+".js"]
	}

	return r, ok
}

// Resources returns all unique resources of the store sorted by name.
func (s *Store) Resources() (rs []*Resource) {
	for key, r := range s.byKey {
		if key == r.Name {
			rs = append(rs, r)
		}
	}

	slices.SortFunc(rs, func(a, b *Resource) (res int) {
		return strings.Compare(a.Name, b.Name)
	})

	return rs
}

// Len returns the number of keys in the store.
func (s *Store) Len() (n int) {
	return len(s.byKey)
}

// Clone returns a copy of the store that can be modified independently.
func (s *Store) Clone() (c *Store) {
	c = NewStore()
	for _, r := range s.Resources() {
		c.add(r.clone())
	}

	return c
}
