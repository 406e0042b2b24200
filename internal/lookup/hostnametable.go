package lookup

import (
	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/rules"
)

// HostnameTable is a lookup table for the rules that block or unblock a
// hostname and all its subdomains, like "||ads.example.org^".  The rules are
// looked up by the hostname of the request.
type HostnameTable struct {
	// ruleStorage is the storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// index maps hostnames to storage indexes.
	index *DomainIndex[int64]
}

// type check
var _ Table = (*HostnameTable)(nil)

// NewHostnameTable creates a new instance of the HostnameTable.
func NewHostnameTable(rs *filterlist.RuleStorage) (s *HostnameTable) {
	return &HostnameTable{
		ruleStorage: rs,
		index:       NewDomainIndex[int64](),
	}
}

// TryAdd implements the [Table] interface for *HostnameTable.
func (h *HostnameTable) TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool) {
	host, ok := f.HostnamePattern()
	if !ok {
		return false
	}

	h.index.Add(host, storageIdx)

	return true
}

// MatchAll implements the [Table] interface for *HostnameTable.
func (h *HostnameTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	h.index.Lookup(r.Hostname, func(idx int64, _ int) (cont bool) {
		rule := h.ruleStorage.RetrieveNetworkRule(idx)
		if rule != nil && rule.Match(r) {
			result = append(result, rule)
		}

		return true
	})

	return result
}
