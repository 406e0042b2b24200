package filterlist

import (
	"github.com/AdguardTeam/adblock/rules"
)

// RuleStorageScanner scans all the rules of a [RuleStorage], list by list.
type RuleStorageScanner struct {
	storage *RuleStorage

	// listIdx is the index of the current list in storage.ids.
	listIdx int

	// ruleIdx is the index of the current rule in the current list.
	ruleIdx int
}

// Scan advances the scanner to the next rule.  It returns false when there are
// no more rules.
func (s *RuleStorageScanner) Scan() (ok bool) {
	for s.listIdx < len(s.storage.ids) {
		list := s.storage.lists[s.storage.ids[s.listIdx]]
		if s.ruleIdx+1 < len(list) {
			s.ruleIdx++

			return true
		}

		s.listIdx++
		s.ruleIdx = -1
	}

	return false
}

// Rule returns the current rule and its storage index.  It returns nil if the
// scanner is exhausted.
func (s *RuleStorageScanner) Rule() (r rules.Rule, storageIdx int64) {
	if s.listIdx >= len(s.storage.ids) || s.ruleIdx < 0 {
		return nil, 0
	}

	id := s.storage.ids[s.listIdx]

	return s.storage.lists[id][s.ruleIdx], ruleListIdxToStorageIdx(id, s.ruleIdx)
}

// ruleListIdxToStorageIdx converts pair of listID and rule list index to a
// single int64 "storage index".
func ruleListIdxToStorageIdx(listID, ruleIdx int) (storageIdx int64) {
	return int64(listID)<<32 | int64(ruleIdx)&0xFFFFFFFF
}

// storageIdxToRuleListIdx converts the "storage index" to two integers:
// listID, the rule list identifier, and ruleIdx, the index of the rule in the
// list.
func storageIdxToRuleListIdx(storageIdx int64) (listID, ruleIdx int) {
	return int(storageIdx >> 32), int(uint32(storageIdx))
}
