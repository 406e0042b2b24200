package adblock

import (
	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/internal/lookup"
	"github.com/AdguardTeam/adblock/rules"
)

// NetworkEngine is the engine that supports quick search over network rules.
type NetworkEngine struct {
	// ruleStorage is a storage for the network rules.  The lookup tables keep
	// storage indexes and retrieve the rules when they're needed.
	ruleStorage *filterlist.RuleStorage

	// lookupTables is the array of lookup tables which we need to speed up
	// the matching speed.  The order of lookup tables is important: a rule is
	// added to the first table that accepts it, and the faster tables go
	// first.
	lookupTables []lookup.Table

	// RulesCount is the count of rules added to the engine.
	RulesCount int
}

// NewNetworkEngine builds an instance of the network engine.  It scans the
// specified rule storage and adds all the network rules found there to the
// internal lookup tables.
func NewNetworkEngine(s *filterlist.RuleStorage) (engine *NetworkEngine) {
	engine = &NetworkEngine{
		ruleStorage: s,
		lookupTables: []lookup.Table{
			lookup.NewHostnameTable(s),
			lookup.NewDomainsTable(s),
			lookup.NewShortcutsTable(s),
			&lookup.SeqScanTable{},
		},
	}

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, idx := scanner.Rule()
		if rule, ok := f.(*rules.NetworkRule); ok {
			engine.AddRule(rule, idx)
		}
	}

	return engine
}

// MatchAll finds all rules matching the specified request regardless of the
// rule types.  It will find both blocking rules and exceptions.
func (n *NetworkEngine) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for _, table := range n.lookupTables {
		result = append(result, table.MatchAll(r)...)
	}

	return result
}

// AddRule adds rule to the network engine.
func (n *NetworkEngine) AddRule(f *rules.NetworkRule, storageIdx int64) {
	for _, table := range n.lookupTables {
		if table.TryAdd(f, storageIdx) {
			n.RulesCount++

			return
		}
	}
}
