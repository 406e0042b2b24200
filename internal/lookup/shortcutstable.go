package lookup

import (
	"math"
	"strings"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/internal/fasthash"
	"github.com/AdguardTeam/adblock/rules"
)

// shortcutLength is the length of the part of the shortcut used as the key.
const shortcutLength = 5

// ShortcutsTable is a table that relies on the rule "shortcuts" to quickly
// find matching rules.  Here's how it works:
//
//  1. We extract from the rule the longest substring without special
//     characters from, this string is called a "shortcut".
//  2. We take a part of it of length "shortcutLength" and put it to the
//     internal hashmap.
//  3. When we match a request, we take all substrings of length
//     "shortcutsLength" from it and check if there're any rules in the
//     hashmap.
//
// Note that only the rules with a shortcut are eligible for this table.
type ShortcutsTable struct {
	// ruleStorage is the storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// shortcutsLookupTable is the map where the key is the hash of the
	// shortcut and value is a list of rules' indexes.
	shortcutsLookupTable map[uint32][]int64

	// shortcutsHistogram helps us choose the best shortcut for the shortcuts
	// lookup table.
	shortcutsHistogram map[uint32]int
}

// type check
var _ Table = (*ShortcutsTable)(nil)

// NewShortcutsTable creates a new instance of the ShortcutsTable.
func NewShortcutsTable(rs *filterlist.RuleStorage) (s *ShortcutsTable) {
	return &ShortcutsTable{
		ruleStorage:          rs,
		shortcutsLookupTable: map[uint32][]int64{},
		shortcutsHistogram:   map[uint32]int{},
	}
}

// TryAdd implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool) {
	shortcuts := getRuleShortcuts(f)
	if len(shortcuts) == 0 {
		return false
	}

	// Find the applicable shortcut, the least used one.
	var shortcutHash uint32
	minCount := math.MaxInt32
	for _, sh := range shortcuts {
		hash := fasthash.String(sh)
		if count := s.shortcutsHistogram[hash]; count < minCount {
			minCount = count
			shortcutHash = hash
		}
	}

	s.shortcutsHistogram[shortcutHash] = minCount + 1
	s.shortcutsLookupTable[shortcutHash] = append(s.shortcutsLookupTable[shortcutHash], storageIdx)

	return true
}

// MatchAll implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for i := 0; i <= len(r.URLLowerCase)-shortcutLength; i++ {
		// The shortcutsLookupTable contains the shortcuts of rules of fixed
		// length.  Go through all the substrings of the URL having such
		// length to find matching rules.
		hash := fasthash.Between(r.URLLowerCase, i, i+shortcutLength)
		matchingRules, ok := s.shortcutsLookupTable[hash]
		if !ok {
			continue
		}

		for _, ruleIdx := range matchingRules {
			rule := s.ruleStorage.RetrieveNetworkRule(ruleIdx)

			// The same rule may be found twice when the URL has a
			// repeating pattern.
			if rule != nil && rule.Match(r) {
				result = appendUnique(result, rule)
			}
		}
	}

	return result
}

// getRuleShortcuts returns a list of shortcuts that can be used for the
// lookup table.
func getRuleShortcuts(f *rules.NetworkRule) (shortcuts []string) {
	if len(f.Shortcut) < shortcutLength || isAnyURLShortcut(f) {
		return nil
	}

	for i := 0; i <= len(f.Shortcut)-shortcutLength; i++ {
		shortcuts = append(shortcuts, f.Shortcut[i:i+shortcutLength])
	}

	return shortcuts
}

// isAnyURLShortcut checks if the rule potentially matches too many URLs.
// We'd better use another type of lookup table for this kind of rules.
func isAnyURLShortcut(f *rules.NetworkRule) (ok bool) {
	switch shLen := len(f.Shortcut); {
	case
		shLen < len("ws://")+1 && strings.HasPrefix(f.Shortcut, "ws:"),
		shLen < len("wss://")+1 && strings.HasPrefix(f.Shortcut, "wss:"),
		shLen < len("https://")+1 && strings.HasPrefix(f.Shortcut, "http"):
		return true
	default:
		return false
	}
}
