package rules

import (
	"slices"
)

// CosmeticOption is the enumeration of the parts of cosmetic filtering that
// are enabled on a page.  The parts can be disabled by $elemhide and
// $generichide exceptions.
type CosmeticOption uint8

// CosmeticOption enumeration
const (
	// CosmeticOptionGenericCSS means that generic element hiding and CSS
	// rules are enabled.  Can be disabled by a $generichide rule.
	CosmeticOptionGenericCSS CosmeticOption = 1 << iota

	// CosmeticOptionCSS means that domain-specific element hiding and CSS
	// rules are enabled.  Can be disabled by an $elemhide rule.
	CosmeticOptionCSS

	// CosmeticOptionJS means that scriptlets are enabled.
	CosmeticOptionJS

	// CosmeticOptionAll means that everything is enabled.
	CosmeticOptionAll = CosmeticOptionGenericCSS | CosmeticOptionCSS | CosmeticOptionJS

	// CosmeticOptionNone means that everything is disabled.
	CosmeticOptionNone = CosmeticOption(0)
)

// MatchingResult contains all the rules matching a web request, and decides
// how the request should be processed.  The precedence is:
//
//  1. an $important blocking rule blocks the request regardless of
//     exceptions;
//  2. otherwise, an exception unblocks the request;
//  3. otherwise, a blocking rule blocks the request.
type MatchingResult struct {
	// BasicRule is the rule that decided the verdict: the blocking rule with
	// the highest priority if the request is blocked, or the exception that
	// suppressed blocking.  It is nil if no blocking rule matched.
	BasicRule *NetworkRule

	// blockingRules are the blocking rules of the winning class, sorted by
	// priority.
	blockingRules []*NetworkRule

	// cosmeticRules are the $elemhide and $generichide exceptions.
	cosmeticRules []*NetworkRule

	// cspRules are the rules with the $csp modifier, both blocking ones and
	// exceptions.
	cspRules []*NetworkRule

	// important is true if the request is blocked by an $important rule.
	important bool

	// exception is true if an exception suppressed a blocking rule.
	exception bool
}

// NewMatchingResult creates an instance of the MatchingResult struct and
// fills it with the rules matching the request.
func NewMatchingResult(rules []*NetworkRule) (res *MatchingResult) {
	rules = removeBadfilterRules(rules)

	res = &MatchingResult{}

	var important, blocking []*NetworkRule
	var exception *NetworkRule
	for _, rule := range rules {
		switch {
		case rule.IsCosmeticException():
			res.cosmeticRules = append(res.cosmeticRules, rule)
		case rule.IsOptionEnabled(OptionCsp):
			res.cspRules = append(res.cspRules, rule)
		case rule.Whitelist:
			if exception == nil || rule.IsHigherPriority(exception) {
				exception = rule
			}
		case rule.IsOptionEnabled(OptionImportant):
			important = append(important, rule)
		default:
			blocking = append(blocking, rule)
		}
	}

	switch {
	case len(important) > 0:
		res.important = true
		res.blockingRules = sortByPriority(important)
		res.BasicRule = res.blockingRules[0]
	case len(blocking) > 0 && exception != nil:
		res.exception = true
		res.BasicRule = exception
	case len(blocking) > 0:
		res.blockingRules = sortByPriority(blocking)
		res.BasicRule = res.blockingRules[0]
	}

	return res
}

// sortByPriority sorts rules by priority, highest first, and returns them.
func sortByPriority(rules []*NetworkRule) (sorted []*NetworkRule) {
	slices.SortStableFunc(rules, func(a, b *NetworkRule) (res int) {
		switch {
		case a.IsHigherPriority(b):
			return -1
		case b.IsHigherPriority(a):
			return 1
		default:
			return 0
		}
	})

	return rules
}

// IsBlocked returns true if the request should be blocked.
func (m *MatchingResult) IsBlocked() (ok bool) {
	return len(m.blockingRules) > 0
}

// IsImportant returns true if the request is blocked by an $important rule.
func (m *MatchingResult) IsImportant() (ok bool) {
	return m.important
}

// IsException returns true if an exception rule suppressed a blocking rule.
func (m *MatchingResult) IsException() (ok bool) {
	return m.exception
}

// RedirectRules returns the blocking rules with the $redirect modifier that
// decided the verdict, the highest priority first.  It returns nil if the
// request is not blocked.
func (m *MatchingResult) RedirectRules() (rules []*NetworkRule) {
	for _, r := range m.blockingRules {
		if r.RedirectKey != "" {
			rules = append(rules, r)
		}
	}

	return rules
}

// GetCosmeticOption returns a bit-flag with the list of cosmetic options.
func (m *MatchingResult) GetCosmeticOption() (option CosmeticOption) {
	option = CosmeticOptionAll
	for _, r := range m.cosmeticRules {
		if r.IsOptionEnabled(OptionElemhide) {
			option &^= CosmeticOptionCSS | CosmeticOptionGenericCSS
		}

		if r.IsOptionEnabled(OptionGenerichide) {
			option &^= CosmeticOptionGenericCSS
		}
	}

	return option
}

// CSPDirectives returns the sorted Content-Security-Policy directives to add
// to the response.  An exception with a value disables the directive with the
// same value, and an exception without a value disables all of them.
func (m *MatchingResult) CSPDirectives() (directives []string) {
	disabled := map[string]struct{}{}
	for _, r := range m.cspRules {
		if !r.Whitelist {
			continue
		}

		if r.CSP == "" {
			return nil
		}

		disabled[r.CSP] = struct{}{}
	}

	for _, r := range m.cspRules {
		if _, ok := disabled[r.CSP]; !r.Whitelist && !ok {
			directives = append(directives, r.CSP)
		}
	}

	slices.Sort(directives)

	return slices.Compact(directives)
}

// removeBadfilterRules looks if there are any matching $badfilter rules and
// removes them as well as the rules they negate.
func removeBadfilterRules(rules []*NetworkRule) (filtered []*NetworkRule) {
	var badfilters []*NetworkRule
	for _, r := range rules {
		if r.IsOptionEnabled(OptionBadfilter) {
			badfilters = append(badfilters, r)
		}
	}

	if len(badfilters) == 0 {
		return rules
	}

	filtered = make([]*NetworkRule, 0, len(rules))
	for _, r := range rules {
		if r.IsOptionEnabled(OptionBadfilter) {
			continue
		}

		negated := slices.ContainsFunc(badfilters, func(b *NetworkRule) (ok bool) {
			return b.negatesBadfilter(r)
		})
		if !negated {
			filtered = append(filtered, r)
		}
	}

	return filtered
}
