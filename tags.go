package adblock

import (
	"slices"

	"github.com/AdguardTeam/golibs/container"
)

// Tags is the set of the enabled tags.  A network rule with the $tag modifier
// only takes part in matching when its tag is enabled.  Tags is not safe for
// concurrent mutation.
type Tags struct {
	enabled *container.MapSet[string]
}

// newTags returns a new *Tags with the given tags enabled.
func newTags(enabled ...string) (t *Tags) {
	return &Tags{
		enabled: container.NewMapSet(enabled...),
	}
}

// Enable enables tag.  It returns false if it was already enabled.
func (t *Tags) Enable(tag string) (changed bool) {
	if t.enabled.Has(tag) {
		return false
	}

	t.enabled.Add(tag)

	return true
}

// Disable disables tag.  It returns false if it was not enabled.
func (t *Tags) Disable(tag string) (changed bool) {
	if !t.enabled.Has(tag) {
		return false
	}

	t.enabled.Delete(tag)

	return true
}

// Has returns true if tag is enabled.
func (t *Tags) Has(tag string) (ok bool) {
	return t.enabled.Has(tag)
}

// List returns the sorted enabled tags.
func (t *Tags) List() (tags []string) {
	tags = t.enabled.Values()
	slices.Sort(tags)

	return tags
}

// isVisible returns true if the rule takes part in matching, that is it either
// has no tag or its tag is enabled.
func (t *Tags) isVisible(tag string) (ok bool) {
	return tag == "" || t.enabled.Has(tag)
}
