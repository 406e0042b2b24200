package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/adblock/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// wildcardTLD is the suffix of a domain entry that matches any public suffix,
// e.g. "google.*" matches both "google.com" and "www.google.co.uk".
const wildcardTLD = ".*"

// DomainScope is the set of permitted and restricted domains of a rule, as
// specified by the $domain modifier of a network rule or by the domain list
// in front of a cosmetic rule marker.  An entry matches a hostname if the
// hostname is the entry itself or one of its subdomains.
//
// When a hostname matches both permitted and restricted entries, the most
// specific entry, the one with the most labels, decides.  If the most specific
// permitted and restricted entries have the same number of labels, the
// restricted one wins.
type DomainScope struct {
	// permitted is the sorted list of permitted domains.
	permitted []string

	// restricted is the sorted list of restricted domains, the ones with the
	// "~" prefix.
	restricted []string
}

// ParseDomainScope parses a list of domains separated by sep.  Entries are
// lower-cased.  It returns an error wrapping [ErrInvalidDomainScope] if the
// list has empty entries, invalid domain names, or entries that are both
// permitted and restricted.
func ParseDomainScope(value string, sep byte) (s *DomainScope, err error) {
	if value == "" {
		return nil, ErrInvalidDomainScope
	}

	s = &DomainScope{}
	for _, d := range strings.Split(value, string(sep)) {
		d = strings.ToLower(strings.TrimSpace(d))

		restricted := strings.HasPrefix(d, "~")
		if restricted {
			d = d[1:]
		}

		if !isValidScopeDomain(d) {
			return nil, fmt.Errorf("%w: bad entry %q", ErrInvalidDomainScope, d)
		}

		if restricted {
			s.restricted = append(s.restricted, d)
		} else {
			s.permitted = append(s.permitted, d)
		}
	}

	if err = s.normalize(); err != nil {
		return nil, err
	}

	return s, nil
}

// NewDomainScope returns a new *DomainScope from already parsed lists.  It
// performs the same validation as [ParseDomainScope].  It returns nil if both
// lists are empty.
func NewDomainScope(permitted, restricted []string) (s *DomainScope, err error) {
	if len(permitted) == 0 && len(restricted) == 0 {
		return nil, nil
	}

	s = &DomainScope{
		permitted:  slices.Clone(permitted),
		restricted: slices.Clone(restricted),
	}

	for _, d := range slices.Concat(s.permitted, s.restricted) {
		if !isValidScopeDomain(d) {
			return nil, fmt.Errorf("%w: bad entry %q", ErrInvalidDomainScope, d)
		}
	}

	if err = s.normalize(); err != nil {
		return nil, err
	}

	return s, nil
}

// normalize sorts and deduplicates the lists and checks that they don't
// intersect.
func (s *DomainScope) normalize() (err error) {
	slices.Sort(s.permitted)
	s.permitted = slices.Compact(s.permitted)

	slices.Sort(s.restricted)
	s.restricted = slices.Compact(s.restricted)

	for _, d := range s.permitted {
		if _, ok := slices.BinarySearch(s.restricted, d); ok {
			return fmt.Errorf("%w: %q is both permitted and restricted", ErrInvalidDomainScope, d)
		}
	}

	return nil
}

// isValidScopeDomain returns true if d can be used as a domain scope entry.
func isValidScopeDomain(d string) (ok bool) {
	if base, found := strings.CutSuffix(d, wildcardTLD); found {
		return ufnet.IsDomainName(base)
	}

	return ufnet.IsDomainName(d)
}

// Permitted returns the sorted list of permitted domains.  The caller must not
// modify it.
func (s *DomainScope) Permitted() (domains []string) {
	if s == nil {
		return nil
	}

	return s.permitted
}

// Restricted returns the sorted list of restricted domains.  The caller must
// not modify it.
func (s *DomainScope) Restricted() (domains []string) {
	if s == nil {
		return nil
	}

	return s.restricted
}

// IsEmpty returns true if s has no entries.  s may be nil.
func (s *DomainScope) IsEmpty() (ok bool) {
	return s == nil || (len(s.permitted) == 0 && len(s.restricted) == 0)
}

// HasWildcard returns true if any of the entries of s is a wildcard-TLD one.
func (s *DomainScope) HasWildcard() (ok bool) {
	isWildcard := func(d string) (ok bool) { return strings.HasSuffix(d, wildcardTLD) }

	return slices.ContainsFunc(s.Permitted(), isWildcard) ||
		slices.ContainsFunc(s.Restricted(), isWildcard)
}

// Equal returns true if s and other have the same entries.  Both may be nil.
func (s *DomainScope) Equal(other *DomainScope) (ok bool) {
	return slices.Equal(s.Permitted(), other.Permitted()) &&
		slices.Equal(s.Restricted(), other.Restricted())
}

// Match returns true if the rule with this scope applies on host.  An empty
// scope matches everything, including an empty host.
func (s *DomainScope) Match(host string) (ok bool) {
	if s.IsEmpty() {
		return true
	}

	host = strings.ToLower(host)
	allow := mostSpecific(host, s.permitted)
	deny := mostSpecific(host, s.restricted)

	switch {
	case allow == 0 && deny == 0:
		// No entry matches, so the rule applies only if it is not limited to
		// a set of permitted domains.
		return len(s.permitted) == 0
	case deny >= allow:
		return false
	default:
		return true
	}
}

// mostSpecific returns the number of labels of the most specific entry of
// domains matching host, or zero if there are none.
func mostSpecific(host string, domains []string) (labels int) {
	if host == "" {
		return 0
	}

	for _, d := range domains {
		if n := matchDomainEntry(host, d); n > labels {
			labels = n
		}
	}

	return labels
}

// matchDomainEntry returns the number of labels of entry if it matches host
// and zero otherwise.
func matchDomainEntry(host, entry string) (labels int) {
	base, isWildcard := strings.CutSuffix(entry, wildcardTLD)
	if !isWildcard {
		if ufnet.IsSubdomainOrSelf(host, entry) {
			return ufnet.LabelCount(entry)
		}

		return 0
	}

	// A pattern like "google.*" will match any "google.TLD" domain or
	// subdomain, where TLD is a public suffix.
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return 0
	}

	name := strings.TrimSuffix(host, "."+suffix)
	if !ufnet.IsSubdomainOrSelf(name, base) {
		return 0
	}

	return ufnet.LabelCount(base) + ufnet.LabelCount(suffix)
}
