package adblock

import (
	"maps"
	"slices"
	"strings"

	"github.com/AdguardTeam/adblock/rules"
)

// CosmeticResources are the cosmetic filters to apply to a page.
type CosmeticResources struct {
	// StyleSelectors maps selectors to the styles to apply to the matching
	// elements.
	StyleSelectors map[string][]string `json:"style_selectors"`

	// InjectedScript is the code of the scriptlets to run on the page.
	InjectedScript string `json:"injected_script"`

	// InjectStylesheet is the stylesheet that applies both the hiding
	// selectors and the styles.  It doesn't contain the extended selectors
	// that a browser can't apply.
	InjectStylesheet string `json:"inject_stylesheet"`

	// HideSelectors are the selectors of the elements to hide.
	HideSelectors []string `json:"hide_selectors"`

	// Exceptions are the selectors disabled on the page by exception rules.
	// They should be passed to [Engine.HiddenClassIDSelectors].
	Exceptions []string `json:"exceptions"`

	// Resources are the names of the scriptlet resources used in
	// InjectedScript.
	Resources []string `json:"resources"`

	// Generichide is true if the generic rules are disabled on the page.
	Generichide bool `json:"generichide"`
}

// URLCosmeticResources returns the cosmetic filters for the page at url.  The
// slices of the result are never nil.
func (e *Engine) URLCosmeticResources(url string) (res *CosmeticResources) {
	r := rules.NewRequestWithResolver(url, url, rules.TypeDocument, e.resolve)
	opt := e.matchingResult(r).GetCosmeticOption()

	res = &CosmeticResources{
		StyleSelectors: map[string][]string{},
		HideSelectors:  []string{},
		Exceptions:     []string{},
		Resources:      []string{},
		Generichide:    opt&rules.CosmeticOptionGenericCSS == 0,
	}

	if r.Hostname == "" {
		return res
	}

	withGeneric := !res.Generichide
	matched := e.cosmetic.Match(r.Hostname, withGeneric)

	exceptions, allScripts := cosmeticExceptions(matched)
	extended := map[string]struct{}{}

	var hide []string
	var scriptlets []*rules.CosmeticRule
	for _, f := range matched {
		if f.ExtendedCSS {
			extended[f.Selector] = struct{}{}
		}

		if f.Whitelist {
			if f.Type == rules.CosmeticElementHiding {
				res.Exceptions = append(res.Exceptions, f.Selector)
			}

			continue
		}

		if _, ok := exceptions[cosmeticKey(f)]; ok {
			continue
		}

		switch f.Type {
		case rules.CosmeticElementHiding:
			if opt&rules.CosmeticOptionCSS != 0 || f.IsGeneric() {
				hide = append(hide, f.Selector)
			}
		case rules.CosmeticCSS:
			if opt&rules.CosmeticOptionCSS != 0 || f.IsGeneric() {
				res.StyleSelectors[f.Selector] = append(res.StyleSelectors[f.Selector], f.Style)
			}
		case rules.CosmeticScriptlet:
			if !allScripts && opt&rules.CosmeticOptionJS != 0 {
				scriptlets = append(scriptlets, f)
			}
		default:
			e.logger.Warn("unexpected cosmetic rule type", "type", f.Type, "rule", f.RuleText)
		}
	}

	var genericHide []string
	var css string
	if withGeneric {
		genericHide, css = e.cosmetic.genericHiding(exceptions)
	}

	// Only the selectors missing from genericHide need to be rendered.
	hide = slices.DeleteFunc(sortedUnique(hide), func(sel string) (found bool) {
		_, found = slices.BinarySearch(genericHide, sel)

		return found
	})

	res.HideSelectors = mergeSorted(genericHide, hide)
	res.Exceptions = sortedUnique(res.Exceptions)
	for sel, styles := range res.StyleSelectors {
		res.StyleSelectors[sel] = sortedUnique(styles)
	}

	res.InjectedScript, res.Resources = e.injectedScript(scriptlets)
	res.InjectStylesheet = css + hidingCSS(hide, extended) + stylesCSS(res.StyleSelectors, extended)

	return res
}

// cosmeticExceptions returns the keys of the rules disabled by the exceptions
// in matched.  allScripts is true if all scriptlets are disabled.
func cosmeticExceptions(matched []*rules.CosmeticRule) (keys map[string]struct{}, allScripts bool) {
	keys = map[string]struct{}{}
	for _, f := range matched {
		if !f.Whitelist {
			continue
		}

		if f.Type == rules.CosmeticScriptlet && f.ScriptletName == "" {
			allScripts = true

			continue
		}

		keys[cosmeticKey(f)] = struct{}{}
	}

	return keys, allScripts
}

// cosmeticKey returns the string that an exception shares with the rules it
// disables.
func cosmeticKey(f *rules.CosmeticRule) (key string) {
	switch f.Type {
	case rules.CosmeticCSS:
		return f.Selector + " {" + f.Style + "}"
	case rules.CosmeticScriptlet:
		return "+js(" + strings.Join(append([]string{f.ScriptletName}, f.ScriptletArgs...), "\x00") + ")"
	default:
		return f.Selector
	}
}

// injectedScript returns the code of scriptlets and the names of the
// resources used.  The scriptlets with missing resources are skipped.
func (e *Engine) injectedScript(scriptlets []*rules.CosmeticRule) (script string, names []string) {
	slices.SortFunc(scriptlets, func(a, b *rules.CosmeticRule) (res int) {
		return strings.Compare(cosmeticKey(a), cosmeticKey(b))
	})

	b := &strings.Builder{}
	names = []string{}
	var prevKey string
	for _, f := range scriptlets {
		key := cosmeticKey(f)
		if key == prevKey {
			continue
		}

		prevKey = key
		res, ok := e.resources.Scriptlet(f.ScriptletName)
		if !ok {
			e.logger.Debug("scriptlet resource not found", "name", f.ScriptletName)

			continue
		}

		b.WriteString("try {\n")
		b.WriteString(res.Scriptlet(f.ScriptletArgs))
		b.WriteString("\n} catch (e) {}\n")

		names = append(names, res.Name)
	}

	return b.String(), sortedUnique(names)
}

// hidingCSS renders the selectors, except the extended ones, as a stylesheet
// hiding the elements.
func hidingCSS(selectors []string, extended map[string]struct{}) (css string) {
	b := &strings.Builder{}
	for _, sel := range selectors {
		if _, ok := extended[sel]; !ok {
			b.WriteString(sel)
			b.WriteString(" {display:none!important}\n")
		}
	}

	return b.String()
}

// stylesCSS renders the styles, except the ones of the extended selectors, as
// a stylesheet.
func stylesCSS(styles map[string][]string, extended map[string]struct{}) (css string) {
	b := &strings.Builder{}
	for _, sel := range slices.Sorted(maps.Keys(styles)) {
		if _, ok := extended[sel]; ok {
			continue
		}

		b.WriteString(sel)
		b.WriteString(" {")
		b.WriteString(strings.Join(styles[sel], "; "))
		b.WriteString("}\n")
	}

	return b.String()
}

// mergeSorted merges the sorted slices a and b without duplicates into a new
// non-nil slice.
func mergeSorted(a, b []string) (merged []string) {
	merged = make([]string, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		switch c := strings.Compare(a[0], b[0]); {
		case c < 0:
			merged, a = append(merged, a[0]), a[1:]
		case c > 0:
			merged, b = append(merged, b[0]), b[1:]
		default:
			merged, a, b = append(merged, a[0]), a[1:], b[1:]
		}
	}

	merged = append(merged, a...)

	return append(merged, b...)
}

// sortedUnique sorts s and removes the duplicates.
func sortedUnique(s []string) (res []string) {
	slices.Sort(s)

	return slices.Compact(s)
}
