package lookup

import (
	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/rules"
)

// DomainsTable is a lookup table that uses domains from the $domain modifier
// to speed up the rules search.  Only the rules with permitted domains and no
// wildcard entries are eligible for this lookup table.  The rules are looked
// up by the hostname of the source page.
type DomainsTable struct {
	// ruleStorage is the storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// index maps permitted domains to storage indexes.
	index *DomainIndex[int64]
}

// type check
var _ Table = (*DomainsTable)(nil)

// NewDomainsTable creates a new instance of the DomainsTable.
func NewDomainsTable(rs *filterlist.RuleStorage) (s *DomainsTable) {
	return &DomainsTable{
		ruleStorage: rs,
		index:       NewDomainIndex[int64](),
	}
}

// TryAdd implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool) {
	scope := f.Domains()
	permitted := scope.Permitted()
	if len(permitted) == 0 || scope.HasWildcard() {
		return false
	}

	for _, domain := range permitted {
		d.index.Add(domain, storageIdx)
	}

	return true
}

// MatchAll implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	d.index.Lookup(r.SourceHostname, func(idx int64, _ int) (cont bool) {
		rule := d.ruleStorage.RetrieveNetworkRule(idx)
		if rule != nil && rule.Match(r) {
			// A rule may be added for both a domain and its subdomain.
			result = appendUnique(result, rule)
		}

		return true
	})

	return result
}
