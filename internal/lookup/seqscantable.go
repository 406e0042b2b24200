package lookup

import (
	"slices"

	"github.com/AdguardTeam/adblock/rules"
)

// SeqScanTable is basically just a list of network rules that are scanned
// sequentially.  Here we put the rules that are not eligible for other
// tables.
type SeqScanTable struct {
	rules []*rules.NetworkRule
}

// type check
var _ Table = (*SeqScanTable)(nil)

// TryAdd implements the [Table] interface for *SeqScanTable.  It only rejects
// duplicates of the rules already added.
func (s *SeqScanTable) TryAdd(f *rules.NetworkRule, _ int64) (ok bool) {
	if slices.ContainsFunc(s.rules, func(r *rules.NetworkRule) (found bool) {
		return r.RuleText == f.RuleText && r.FilterListID == f.FilterListID
	}) {
		return false
	}

	s.rules = append(s.rules, f)

	return true
}

// MatchAll implements the [Table] interface for *SeqScanTable.
func (s *SeqScanTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for _, rule := range s.rules {
		if rule.Match(r) {
			result = append(result, rule)
		}
	}

	return result
}

// Len returns the number of rules in the table.
func (s *SeqScanTable) Len() (n int) {
	return len(s.rules)
}
