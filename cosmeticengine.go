package adblock

import (
	"slices"
	"strings"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/internal/lookup"
	"github.com/AdguardTeam/adblock/rules"
)

// CosmeticEngine combines all the cosmetic rules and allows to quickly find
// the ones applicable to a hostname.
type CosmeticEngine struct {
	// specific contains the rules with permitted domains, both regular ones
	// and exceptions.
	specific *lookup.DomainIndex[*rules.CosmeticRule]

	// wildcard are the rules with permitted domains like "example.*", which
	// can't be put into the index.
	wildcard []*rules.CosmeticRule

	// generic are the rules without permitted domains, except the ones in
	// genericHide.
	generic []*rules.CosmeticRule

	// genericHide are the sorted selectors of the element hiding rules that
	// apply on every page.  These are the bulk of the generic rules, so they
	// and their stylesheet are prepared once.
	genericHide []string

	// genericCSS is the stylesheet hiding genericHide, except the extended
	// selectors.
	genericCSS string

	// extended are the extended selectors of genericHide.
	extended map[string]struct{}

	// byToken maps the class and id tokens of the generic element hiding
	// selectors to these selectors.  Only the selectors applicable everywhere
	// and containing at least one token are here.
	byToken map[string][]*tokenSelector

	// RulesCount is the count of rules added to the engine.
	RulesCount int
}

// tokenSelector is a generic selector and the class and id tokens an element
// set must contain for the selector to be applicable.
type tokenSelector struct {
	selector string

	// alternatives are the token sets of the comma-separated parts of the
	// selector.  The selector is applicable if any of the sets is fully
	// present.
	alternatives [][]string
}

// NewCosmeticEngine builds a new *CosmeticEngine from the cosmetic rules of
// s.
func NewCosmeticEngine(s *filterlist.RuleStorage) (e *CosmeticEngine) {
	e = &CosmeticEngine{
		specific: lookup.NewDomainIndex[*rules.CosmeticRule](),
		byToken:  map[string][]*tokenSelector{},
		extended: map[string]struct{}{},
	}

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, _ := scanner.Rule()
		if rule, ok := f.(*rules.CosmeticRule); ok {
			e.addRule(rule)
		}
	}

	e.prepareGeneric()

	return e
}

// AddRule adds rule to the engine.  Adding a generic hiding rule rebuilds the
// generic stylesheet, so prefer [NewCosmeticEngine] for bulk loading.
func (e *CosmeticEngine) AddRule(f *rules.CosmeticRule) {
	if e.addRule(f) {
		e.prepareGeneric()
	}
}

// addRule adds rule to the engine.  It returns true if the rule is added to
// genericHide, which must then be prepared again.
func (e *CosmeticEngine) addRule(f *rules.CosmeticRule) (isGenericHide bool) {
	e.RulesCount++

	scope := f.Domains()
	switch {
	case f.IsGeneric() && scope.IsEmpty() && isPlainHiding(f):
		e.genericHide = append(e.genericHide, f.Selector)
		if f.ExtendedCSS {
			e.extended[f.Selector] = struct{}{}
		} else {
			e.addTokenSelector(f.Selector)
		}

		return true
	case f.IsGeneric():
		e.generic = append(e.generic, f)
	case scope.HasWildcard():
		e.wildcard = append(e.wildcard, f)
	default:
		for _, d := range scope.Permitted() {
			e.specific.Add(d, f)
		}
	}

	return false
}

// isPlainHiding returns true if f is an element hiding rule and not an
// exception.
func isPlainHiding(f *rules.CosmeticRule) (ok bool) {
	return f.Type == rules.CosmeticElementHiding && !f.Whitelist
}

// prepareGeneric sorts genericHide and renders its stylesheet.
func (e *CosmeticEngine) prepareGeneric() {
	e.genericHide = sortedUnique(e.genericHide)
	e.genericCSS = hidingCSS(e.genericHide, e.extended)
}

// genericHiding returns the selectors of the generic hiding rules that apply
// on every page, except the ones in exceptions, and their stylesheet.  The
// selectors are sorted.
func (e *CosmeticEngine) genericHiding(exceptions map[string]struct{}) (selectors []string, css string) {
	excepted := false
	for key := range exceptions {
		if _, excepted = slices.BinarySearch(e.genericHide, key); excepted {
			break
		}
	}

	if !excepted {
		return slices.Clone(e.genericHide), e.genericCSS
	}

	selectors = make([]string, 0, len(e.genericHide))
	for _, sel := range e.genericHide {
		if _, ok := exceptions[sel]; !ok {
			selectors = append(selectors, sel)
		}
	}

	return selectors, hidingCSS(selectors, e.extended)
}

// addTokenSelector indexes selector by the first token of each of its
// alternatives.  Selectors without tokens aren't indexed.
func (e *CosmeticEngine) addTokenSelector(selector string) {
	ts := &tokenSelector{
		selector:     selector,
		alternatives: selectorTokens(selector),
	}

	for _, alt := range ts.alternatives {
		if len(alt) == 0 {
			// The alternative is applicable regardless of the tokens, so the
			// selector can't be served by tokens.
			return
		}
	}

	for _, alt := range ts.alternatives {
		if !slices.Contains(e.byToken[alt[0]], ts) {
			e.byToken[alt[0]] = append(e.byToken[alt[0]], ts)
		}
	}
}

// Match returns the cosmetic rules applicable to hostname.  The generic rules
// are only included if withGeneric is true.  The result contains no
// duplicates.
func (e *CosmeticEngine) Match(hostname string, withGeneric bool) (matched []*rules.CosmeticRule) {
	e.specific.Lookup(hostname, func(f *rules.CosmeticRule, _ int) (cont bool) {
		if !slices.Contains(matched, f) && f.Match(hostname) {
			matched = append(matched, f)
		}

		return true
	})

	for _, f := range e.wildcard {
		if f.Match(hostname) {
			matched = append(matched, f)
		}
	}

	if !withGeneric {
		return matched
	}

	for _, f := range e.generic {
		if f.Match(hostname) {
			matched = append(matched, f)
		}
	}

	return matched
}

// HiddenClassIDSelectors returns the generic selectors that may hide some of
// the elements with the given classes and ids.  Every class and id a selector
// requires is present in the given sets.  The selectors from exceptions are
// excluded.  The result is sorted.
func (e *CosmeticEngine) HiddenClassIDSelectors(classes, ids, exceptions []string) (selectors []string) {
	present := make(map[string]struct{}, len(classes)+len(ids))
	for _, c := range classes {
		present["."+c] = struct{}{}
	}

	for _, id := range ids {
		present["#"+id] = struct{}{}
	}

	for tok := range present {
		for _, ts := range e.byToken[tok] {
			if ts.isApplicable(present) && !slices.Contains(exceptions, ts.selector) {
				selectors = append(selectors, ts.selector)
			}
		}
	}

	slices.Sort(selectors)

	return slices.Compact(selectors)
}

// isApplicable returns true if all tokens of any alternative are present.
func (ts *tokenSelector) isApplicable(present map[string]struct{}) (ok bool) {
	return slices.ContainsFunc(ts.alternatives, func(alt []string) (all bool) {
		for _, tok := range alt {
			if _, ok = present[tok]; !ok {
				return false
			}
		}

		return true
	})
}

// selectorTokens returns the class and id tokens, like ".banner" and "#ad",
// of every comma-separated part of selector.  The tokens inside of attribute
// selectors, strings, and the arguments of ":not()" aren't required for an
// element to match, so they're skipped.
func selectorTokens(selector string) (alternatives [][]string) {
	var cur []string

	// groups are the open brackets and parentheses, true for the ones which
	// contents are skipped.
	var groups []bool
	skipped := 0
	for i := 0; i < len(selector); i++ {
		switch c := selector[i]; c {
		case '\\':
			i++
		case '"', '\'':
			i = skipQuoted(selector, i)
		case '[', '(':
			skip := c == '[' || strings.HasSuffix(strings.ToLower(selector[:i]), ":not")
			groups = append(groups, skip)
			if skip {
				skipped++
			}
		case ']', ')':
			if len(groups) == 0 {
				continue
			}

			if groups[len(groups)-1] {
				skipped--
			}

			groups = groups[:len(groups)-1]
		case ',':
			if len(groups) == 0 {
				alternatives = append(alternatives, cur)
				cur = nil
			}
		case '.', '#':
			if skipped > 0 {
				continue
			}

			name, end := readIdent(selector, i+1)
			if name != "" && !slices.Contains(cur, string(c)+name) {
				cur = append(cur, string(c)+name)
			}

			i = end - 1
		}
	}

	return append(alternatives, cur)
}

// skipQuoted returns the index of the quote closing the string that starts at
// start.  If there is no such quote, it returns the index of the last byte.
func skipQuoted(s string, start int) (end int) {
	q := s[start]
	for end = start + 1; end < len(s); end++ {
		switch s[end] {
		case '\\':
			end++
		case q:
			return end
		}
	}

	return len(s) - 1
}

// readIdent reads a CSS identifier starting at start and returns it
// unescaped along with the index of the first byte after it.
func readIdent(s string, start int) (ident string, end int) {
	b := &strings.Builder{}
	for end = start; end < len(s); end++ {
		c := s[end]
		switch {
		case c == '\\' && end+1 < len(s):
			end++
			b.WriteByte(s[end])
		case isIdentByte(c):
			b.WriteByte(c)
		default:
			return b.String(), end
		}
	}

	return b.String(), end
}

// isIdentByte returns true if c may be a part of a CSS identifier.  All
// non-ASCII bytes are.
func isIdentByte(c byte) (ok bool) {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c >= 0x80
}
