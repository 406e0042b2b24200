package filterlist

import (
	"fmt"
	"slices"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/c2h5oh/datasize"
)

// RuleStorage combines the parsed rules of several rule lists and allows
// retrieving rules by their storage index.
//
// Storage index is an int64 value that actually consists of two int32 values:
// one is the rule list identifier, and the second is the index of the rule
// inside of that list.
type RuleStorage struct {
	// lists are the parsed rules.  The map key is the list ID.
	lists map[int][]rules.Rule

	// parseErrors are the errors of the skipped lines of all lists.
	parseErrors []*ParseError

	// ids are the list identifiers in the order of addition.
	ids []int
}

// NewRuleStorage parses the lists and creates a new *RuleStorage.  Every list
// must be no larger than maxListSize, zero means no limit.  The lines that
// cannot be parsed are skipped and available through
// [RuleStorage.ParseErrors].
func NewRuleStorage(lists []RuleList, maxListSize datasize.ByteSize) (s *RuleStorage, err error) {
	s = &RuleStorage{
		lists: make(map[int][]rules.Rule, len(lists)),
	}

	for i, l := range lists {
		id := l.GetID()
		if _, ok := s.lists[id]; ok {
			return nil, fmt.Errorf("list at index %d: duplicate list id: %d", i, id)
		}

		s.addList(id)

		sc := l.NewScanner()
		sc.MaxSize = maxListSize
		for sc.Scan() {
			r, _ := sc.Rule()
			s.lists[id] = append(s.lists[id], r)
		}

		s.parseErrors = append(s.parseErrors, sc.ParseErrors()...)

		err = sc.Err()
		if err != nil {
			return nil, fmt.Errorf("list at index %d: %w", i, err)
		}
	}

	return s, nil
}

// addList registers an empty list with the given id.
func (s *RuleStorage) addList(id int) {
	if _, ok := s.lists[id]; !ok {
		s.lists[id] = nil
		s.ids = append(s.ids, id)
	}
}

// Add appends a parsed rule to the list with the rule's filter list ID and
// returns its storage index.
func (s *RuleStorage) Add(r rules.Rule) (storageIdx int64) {
	id := r.GetFilterListID()
	s.addList(id)

	s.lists[id] = append(s.lists[id], r)

	return ruleListIdxToStorageIdx(id, len(s.lists[id])-1)
}

// NewRuleStorageScanner creates a new instance of *RuleStorageScanner.  It
// can be used to iterate over all the storage contents.
func (s *RuleStorage) NewRuleStorageScanner() (sc *RuleStorageScanner) {
	return &RuleStorageScanner{
		storage: s,
		listIdx: 0,
		ruleIdx: -1,
	}
}

// RetrieveRule looks for the filtering rule in this storage.  storageIdx is
// the lookup index that you can get from the rule storage scanner.
func (s *RuleStorage) RetrieveRule(storageIdx int64) (r rules.Rule, err error) {
	listID, ruleIdx := storageIdxToRuleListIdx(storageIdx)

	list, ok := s.lists[listID]
	if !ok {
		return nil, fmt.Errorf("list %d: %w", listID, ErrRuleRetrieval)
	}

	if ruleIdx < 0 || ruleIdx >= len(list) {
		return nil, fmt.Errorf("list %d: rule %d: %w", listID, ruleIdx, ErrRuleRetrieval)
	}

	return list[ruleIdx], nil
}

// RetrieveNetworkRule is a helper method that retrieves a network rule from
// the storage.  It returns nil if there is no such rule or it is not a network
// rule.
func (s *RuleStorage) RetrieveNetworkRule(storageIdx int64) (nr *rules.NetworkRule) {
	r, err := s.RetrieveRule(storageIdx)
	if err != nil {
		return nil
	}

	nr, _ = r.(*rules.NetworkRule)

	return nr
}

// ListIDs returns the identifiers of the lists in the order of addition.
func (s *RuleStorage) ListIDs() (ids []int) {
	return slices.Clone(s.ids)
}

// Rules returns the rules of the list with the given id.  The caller must not
// modify the returned slice.
func (s *RuleStorage) Rules(listID int) (rs []rules.Rule) {
	return s.lists[listID]
}

// Len returns the total number of rules in the storage.
func (s *RuleStorage) Len() (n int) {
	for _, l := range s.lists {
		n += len(l)
	}

	return n
}

// ParseErrors returns the errors about the lines skipped while parsing the
// lists.
func (s *RuleStorage) ParseErrors() (errs []*ParseError) {
	return s.parseErrors
}

// Close releases the rules.  It is safe to call it several times.
func (s *RuleStorage) Close() (err error) {
	s.lists = map[int][]rules.Rule{}
	s.ids = nil
	s.parseErrors = nil

	return nil
}
