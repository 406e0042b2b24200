package lookup

import (
	"strings"

	"github.com/AdguardTeam/adblock/internal/ufnet"
	iradix "github.com/hashicorp/go-immutable-radix"
)

// DomainIndex maps domain names to values.  A lookup returns the values of the
// hostname itself and of all its parent domains.  The keys are the reversed
// labels of the domains, so that the parents of a hostname are the prefixes of
// its key.
//
// DomainIndex is not safe for concurrent use while being filled, but it is
// safe for concurrent lookups once all values are added.
type DomainIndex[T any] struct {
	tree *iradix.Tree
	len  int
}

// NewDomainIndex returns a new empty *DomainIndex.
func NewDomainIndex[T any]() (idx *DomainIndex[T]) {
	return &DomainIndex[T]{
		tree: iradix.New(),
	}
}

// Add adds v to the values of domain.  domain must be a valid lower-cased
// domain name.
func (idx *DomainIndex[T]) Add(domain string, v T) {
	key := []byte(ufnet.ReverseLabels(domain))

	var bucket []T
	if prev, ok := idx.tree.Get(key); ok {
		bucket = prev.([]T)
	}

	idx.tree, _, _ = idx.tree.Insert(key, append(bucket, v))
	idx.len++
}

// Lookup calls fn for every value of host and of its parent domains, from the
// top-level ones to host itself.  depth is the number of labels of the domain
// the value was added for.  fn returns false to stop the iteration.
func (idx *DomainIndex[T]) Lookup(host string, fn func(v T, depth int) (cont bool)) {
	if host == "" || idx.len == 0 {
		return
	}

	path := []byte(ufnet.ReverseLabels(host))
	idx.tree.Root().WalkPath(path, func(k []byte, raw any) (stop bool) {
		depth := strings.Count(string(k), ".")
		for _, v := range raw.([]T) {
			if !fn(v, depth) {
				return true
			}
		}

		return false
	})
}

// Len returns the number of values in the index.
func (idx *DomainIndex[T]) Len() (n int) {
	return idx.len
}
