package adblock

import (
	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/golibs/errors"
)

// ErrFilterSetConsumed is returned when a *FilterSet is used after an engine
// has been built from it.
const ErrFilterSetConsumed errors.Error = "filter set is already consumed"

// FilterSet accumulates the filter lists an *Engine is built from.  A filter
// set can only be used to build one engine.
type FilterSet struct {
	// metadata is the metadata of the first list that declares any.
	metadata *filterlist.Metadata

	lists    []filterlist.RuleList
	consumed bool
}

// NewFilterSet returns a new empty *FilterSet.
func NewFilterSet() (fs *FilterSet) {
	return &FilterSet{}
}

// AddFilterList adds the text of a filter list to the set and returns the
// identifier assigned to the list.
func (fs *FilterSet) AddFilterList(text string) (listID int, err error) {
	if fs.consumed {
		return 0, ErrFilterSetConsumed
	}

	listID = len(fs.lists)
	fs.lists = append(fs.lists, &filterlist.StringRuleList{
		RulesText: text,
		ID:        listID,
	})

	if fs.metadata.IsEmpty() {
		fs.metadata = filterlist.ParseMetadata(text)
	}

	return listID, nil
}

// AddRuleList adds a custom rule list to the set.  Its identifier must be
// unique within the set.
func (fs *FilterSet) AddRuleList(l filterlist.RuleList) (err error) {
	if fs.consumed {
		return ErrFilterSetConsumed
	}

	fs.lists = append(fs.lists, l)

	return nil
}

// Len returns the number of lists in the set.
func (fs *FilterSet) Len() (n int) {
	return len(fs.lists)
}

// consume marks the set as used and returns its contents.
func (fs *FilterSet) consume() (lists []filterlist.RuleList, md *filterlist.Metadata, err error) {
	if fs.consumed {
		return nil, nil, ErrFilterSetConsumed
	}

	fs.consumed = true
	lists, md = fs.lists, fs.metadata
	fs.lists, fs.metadata = nil, nil

	return lists, md, nil
}
