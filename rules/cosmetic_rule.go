package rules

import (
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// CosmeticRuleType is the enumeration of different cosmetic rules.
type CosmeticRuleType uint8

// CosmeticRuleType enumeration
const (
	// CosmeticElementHiding is the "##" rules type, the content is a CSS
	// selector of the elements to hide.
	CosmeticElementHiding CosmeticRuleType = iota

	// CosmeticCSS is the "#$#" and "##selector:style(...)" rules type, the
	// content is a selector with a style to apply.
	CosmeticCSS

	// CosmeticScriptlet is the "##+js(...)" rules type, the content is a
	// scriptlet call.
	CosmeticScriptlet
)

// String implements the fmt.Stringer interface for CosmeticRuleType.
func (t CosmeticRuleType) String() (s string) {
	switch t {
	case CosmeticElementHiding:
		return "element_hiding"
	case CosmeticCSS:
		return "css"
	case CosmeticScriptlet:
		return "scriptlet"
	default:
		return "unknown"
	}
}

// cosmeticRuleMarker is a special marker that defines what type of cosmetic
// rule we are dealing with.
type cosmeticRuleMarker string

// cosmeticRuleMarker enumeration
const (
	markerElementHiding                cosmeticRuleMarker = "##"
	markerElementHidingException       cosmeticRuleMarker = "#@#"
	markerElementHidingExtCSS          cosmeticRuleMarker = "#?#"
	markerElementHidingExtCSSException cosmeticRuleMarker = "#@?#"

	markerCSS                cosmeticRuleMarker = "#$#"
	markerCSSException       cosmeticRuleMarker = "#@$#"
	markerCSSExtCSS          cosmeticRuleMarker = "#$?#"
	markerCSSExtCSSException cosmeticRuleMarker = "#@$?#"

	markerJS          cosmeticRuleMarker = "#%#"
	markerJSException cosmeticRuleMarker = "#@%#"

	markerHTML          cosmeticRuleMarker = "$$"
	markerHTMLException cosmeticRuleMarker = "$@$"
)

// cosmeticRulesMarkers contains all possible cosmetic rule markers, longest
// first, which is important for findCosmeticRuleMarker.
var cosmeticRulesMarkers = func() (markers []string) {
	markers = []string{
		string(markerElementHiding), string(markerElementHidingException),
		string(markerElementHidingExtCSS), string(markerElementHidingExtCSSException),
		string(markerCSS), string(markerCSSException),
		string(markerCSSExtCSS), string(markerCSSExtCSSException),
		string(markerJS), string(markerJSException),
		string(markerHTML), string(markerHTMLException),
	}

	slices.SortStableFunc(markers, func(a, b string) (res int) {
		return len(b) - len(a)
	})

	return markers
}()

// cosmeticRuleMarkersFirstChars are the distinct first characters of the
// markers.
var cosmeticRuleMarkersFirstChars = []byte{'#', '$'}

const (
	scriptletPrefix = "+js("
	stylePseudo     = ":style("
)

// CosmeticRule represents a cosmetic rule: element hiding, CSS style, or
// scriptlet injection.  It is immutable once created.
type CosmeticRule struct {
	// domains is the scope of the rule, nil for generic rules.
	domains *DomainScope

	// RuleText is the original rule text.
	RuleText string

	// Content meaning depends on the rule type.  Element hiding: content is
	// just a selector.  CSS: content is a selector + style definition.
	// Scriptlet: content is the "+js(...)" call.
	Content string

	// Selector is the CSS selector of the element hiding and CSS rules.
	Selector string

	// Style is the style declaration of CSS rules, without braces.
	Style string

	// ScriptletName is the name of the scriptlet resource of scriptlet
	// rules.  It is empty for an exception that disables all scriptlets.
	ScriptletName string

	// ScriptletArgs are the arguments of the scriptlet call.
	ScriptletArgs []string

	// FilterListID is the identifier of the filter list.
	FilterListID int

	// Type of the rule.
	Type CosmeticRuleType

	// Whitelist means that this rule is meant to disable rules with the same
	// content on the specified domains.
	Whitelist bool

	// ExtendedCSS means that this rule uses procedural pseudo-classes that
	// a browser cannot apply in a plain stylesheet.
	ExtendedCSS bool
}

// NewCosmeticRule parses the rule text and creates a new *CosmeticRule.  The
// errors are of type *RuleSyntaxError.
func NewCosmeticRule(ruleText string, filterListID int) (f *CosmeticRule, err error) {
	index, m := findCosmeticRuleMarker(ruleText)
	if index == -1 {
		return nil, newRuleSyntaxError(ruleText, nil, "cannot find cosmetic marker")
	}

	f = &CosmeticRule{
		RuleText:     ruleText,
		FilterListID: filterListID,
	}

	if index > 0 {
		// This means that the marker is preceded by the list of domains.
		f.domains, err = ParseDomainScope(ruleText[:index], ',')
		if err != nil {
			return nil, newRuleSyntaxError(ruleText, err, "loading domains")
		}
	}

	f.Content = strings.TrimSpace(ruleText[index+len(m):])
	if f.Content == "" {
		return nil, newRuleSyntaxError(ruleText, nil, "empty rule content")
	}

	switch marker := cosmeticRuleMarker(m); marker {
	case
		markerElementHiding,
		markerElementHidingException,
		markerElementHidingExtCSS,
		markerElementHidingExtCSSException:
		f.Whitelist = marker == markerElementHidingException ||
			marker == markerElementHidingExtCSSException
		f.ExtendedCSS = marker == markerElementHidingExtCSS ||
			marker == markerElementHidingExtCSSException
		err = f.loadHidingContent()
	case markerCSS, markerCSSException:
		f.Whitelist = marker == markerCSSException
		err = f.loadCSSContent()
	default:
		return nil, newRuleSyntaxError(ruleText, ErrUnsupportedRule, "marker %s", marker)
	}

	if err != nil {
		return nil, newRuleSyntaxError(ruleText, err, "loading content")
	}

	if f.Whitelist && len(f.domains.Permitted()) == 0 {
		return nil, newRuleSyntaxError(
			ruleText,
			ErrInvalidDomainScope,
			"exception rule must have at least one domain specified",
		)
	}

	return f, nil
}

// loadHidingContent parses the content of a "##" rule, which can be a plain
// selector, a selector with the :style() pseudo-class, or a scriptlet call.
func (f *CosmeticRule) loadHidingContent() (err error) {
	if strings.HasPrefix(f.Content, scriptletPrefix) {
		return f.loadScriptlet()
	}

	if i := strings.LastIndex(f.Content, stylePseudo); i > 0 && strings.HasSuffix(f.Content, ")") {
		f.Type = CosmeticCSS

		return f.setStyle(f.Content[:i], f.Content[i+len(stylePseudo):len(f.Content)-1])
	}

	f.Type = CosmeticElementHiding

	return f.setSelector(f.Content)
}

// loadCSSContent parses the content of a "#$#" rule, which is a selector
// followed by a style declaration in braces.
func (f *CosmeticRule) loadCSSContent() (err error) {
	open := strings.IndexByte(f.Content, '{')
	if open <= 0 || !strings.HasSuffix(f.Content, "}") {
		return ErrUnsupportedRule
	}

	f.Type = CosmeticCSS

	return f.setStyle(f.Content[:open], f.Content[open+1:len(f.Content)-1])
}

// setSelector validates and sets the selector.
func (f *CosmeticRule) setSelector(selector string) (err error) {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "":
		return errors.Error("empty selector")
	case strings.ContainsAny(selector, "{}"), strings.Contains(selector, "</"):
		return errors.Error("selector contains forbidden characters")
	default:
		f.Selector = selector

		return nil
	}
}

// setStyle validates and sets the selector and the style.
func (f *CosmeticRule) setStyle(selector, style string) (err error) {
	err = f.setSelector(selector)
	if err != nil {
		return err
	}

	style = strings.TrimSpace(style)
	switch {
	case style == "":
		return errors.Error("empty style")
	case strings.ContainsAny(style, "{}<>"), strings.Contains(strings.ToLower(style), "url("):
		return errors.Error("style contains forbidden characters")
	default:
		f.Style = style

		return nil
	}
}

// loadScriptlet parses a "+js(name, arg1, arg2)" call.
func (f *CosmeticRule) loadScriptlet() (err error) {
	if !strings.HasSuffix(f.Content, ")") {
		return errors.Error("unclosed scriptlet call")
	}

	f.Type = CosmeticScriptlet
	args := splitScriptletArgs(f.Content[len(scriptletPrefix) : len(f.Content)-1])
	if len(args) == 0 {
		if !f.Whitelist {
			return errors.Error("empty scriptlet name")
		}

		return nil
	}

	f.ScriptletName = args[0]
	f.ScriptletArgs = args[1:]

	return nil
}

// splitScriptletArgs splits the scriptlet arguments by commas outside of
// quotes and removes the quotes.  A single empty argument list results in no
// arguments.
func splitScriptletArgs(s string) (args []string) {
	s = strings.TrimSpace(s)
	for s != "" {
		i := indexUnquoted(s, ',')
		if i == -1 {
			i = len(s)
		}

		args = append(args, unquoteArg(strings.TrimSpace(s[:i])))
		if i == len(s) {
			break
		}

		s = s[i+1:]
	}

	return args
}

// unquoteArg removes the matching quotes around arg and unescapes commas.
func unquoteArg(arg string) (unquoted string) {
	if len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'') && arg[len(arg)-1] == arg[0] {
		arg = arg[1 : len(arg)-1]
	}

	return strings.ReplaceAll(arg, `\,`, ",")
}

// Text implements the [Rule] interface for *CosmeticRule.
func (f *CosmeticRule) Text() (text string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *CosmeticRule.
func (f *CosmeticRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// String returns original rule text.
func (f *CosmeticRule) String() (s string) {
	return f.RuleText
}

// Domains returns the domain scope of the rule, nil for generic rules.
func (f *CosmeticRule) Domains() (s *DomainScope) {
	return f.domains
}

// IsGeneric returns true if rule can be considered generic, that is it is not
// limited to a specific domain.
func (f *CosmeticRule) IsGeneric() (ok bool) {
	return len(f.domains.Permitted()) == 0
}

// Match returns true if this rule can be used on the specified hostname.
func (f *CosmeticRule) Match(hostname string) (ok bool) {
	return f.domains.Match(hostname)
}

// isCosmetic checks if this is a cosmetic filtering rule.
func isCosmetic(line string) (ok bool) {
	index, _ := findCosmeticRuleMarker(line)

	return index != -1
}

// findCosmeticRuleMarker looks for a cosmetic rule marker in the rule text and
// returns the start index and the marker found.  If nothing found, it returns
// -1.
func findCosmeticRuleMarker(ruleText string) (index int, marker string) {
	for _, firstMarkerChar := range cosmeticRuleMarkersFirstChars {
		startIndex := strings.IndexByte(ruleText, firstMarkerChar)
		if startIndex == -1 {
			continue
		}

		// Handling false positives while looking for cosmetic rules in host
		// files, e.g.:
		//
		//	0.0.0.0 jackbootedroom.com  ## phishing
		if startIndex > 0 && ruleText[startIndex-1] == ' ' {
			continue
		}

		for _, m := range cosmeticRulesMarkers {
			if startsAtIndexWith(ruleText, startIndex, m) {
				return startIndex, m
			}
		}
	}

	return -1, ""
}
