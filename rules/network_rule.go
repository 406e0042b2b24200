package rules

import (
	"fmt"
	"math/bits"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskWhiteList    = "@@"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// ErrTooWideRule is returned if the rule matches all URLs but has no
// permitted domains.
const ErrTooWideRule errors.Error = "the rule is too wide, add domain restrictions or make it more specific"

// NetworkRuleOption is the enumeration of various rule options.  In order to
// save memory, we store some options as a flag.
type NetworkRuleOption uint32

// NetworkRuleOption enumeration
const (
	OptionThirdParty NetworkRuleOption = 1 << iota // $third-party modifier
	OptionMatchCase                                // $match-case modifier
	OptionImportant                                // $important modifier
	OptionBadfilter                                // $badfilter modifier

	// Exception rules modifiers.  Each of them disables a part of the
	// cosmetic filtering on the matching pages.

	OptionElemhide    // $elemhide modifier
	OptionGenerichide // $generichide modifier

	OptionRedirect // $redirect modifier
	OptionCsp      // $csp modifier

	// Blocking-only options.
	OptionBlacklistOnly = OptionImportant | OptionRedirect

	// Exception-only options.
	OptionWhitelistOnly = OptionElemhide | OptionGenerichide
)

// Count returns the count of enabled options.
func (o NetworkRuleOption) Count() (n int) {
	return bits.OnesCount32(uint32(o))
}

// optionNames is used for the error messages.
var optionNames = map[NetworkRuleOption]string{
	OptionThirdParty:  "third-party",
	OptionMatchCase:   "match-case",
	OptionImportant:   "important",
	OptionBadfilter:   "badfilter",
	OptionElemhide:    "elemhide",
	OptionGenerichide: "generichide",
	OptionRedirect:    "redirect",
	OptionCsp:         "csp",
}

// String implements the fmt.Stringer interface for NetworkRuleOption.
func (o NetworkRuleOption) String() (s string) {
	if name, ok := optionNames[o]; ok {
		return name
	}

	return fmt.Sprintf("NetworkRuleOption(%d)", uint32(o))
}

// NetworkRule is a basic filtering rule.  It is immutable once created and is
// safe for concurrent use.
type NetworkRule struct {
	// RuleText is the original rule text.
	RuleText string

	// Shortcut is the longest substring of the rule pattern with no special
	// characters, in lower case.
	Shortcut string

	// RedirectKey is the key of the resource to respond with, from the
	// $redirect modifier.
	RedirectKey string

	// Tag is the tag that must be enabled for this rule to be active, from
	// the $tag modifier.
	Tag string

	// CSP is the Content-Security-Policy directive of a $csp rule.  It is
	// empty for an exception that disables all directives.
	CSP string

	// domains is the scope from the $domain modifier.  It is nil if the rule
	// has no such modifier.
	domains *DomainScope

	// regex is the regular expression compiled from the pattern.  It is nil
	// if the pattern matches every URL.
	regex *regexp.Regexp

	// pattern is the basic rule pattern.
	pattern string

	// FilterListID is the identifier of the filter list.
	FilterListID int

	enabledOptions  NetworkRuleOption // Flag with all enabled rule options
	disabledOptions NetworkRuleOption // Flag with all disabled rule options

	permittedRequestTypes  RequestType // Flag with all permitted request types. 0 means ALL.
	restrictedRequestTypes RequestType // Flag with all restricted request types. 0 means NONE.

	// Whitelist is true if this is an exception rule.
	Whitelist bool
}

// NewNetworkRule parses the rule text and returns a filter rule.  The errors
// are of type *RuleSyntaxError.
func NewNetworkRule(ruleText string, filterListID int) (r *NetworkRule, err error) {
	pattern, options, whitelist, err := parseRuleText(ruleText)
	if err != nil {
		return nil, newRuleSyntaxError(ruleText, err, "splitting rule")
	}

	r = &NetworkRule{
		RuleText:     ruleText,
		Whitelist:    whitelist,
		FilterListID: filterListID,
		pattern:      pattern,
	}

	err = r.loadOptions(options)
	if err != nil {
		return nil, newRuleSyntaxError(ruleText, err, "loading options")
	}

	// example.org/* -> example.org^
	if p, ok := strings.CutSuffix(r.pattern, "/*"); ok && !isRegexPattern(r.pattern) {
		r.pattern = p + MaskSeparator
	}

	err = r.validate()
	if err != nil {
		return nil, newRuleSyntaxError(ruleText, err, "validating rule")
	}

	err = r.compile()
	if err != nil {
		return nil, newRuleSyntaxError(ruleText, err, "compiling pattern")
	}

	return r, nil
}

// validate checks the rule invariants that involve several options.
func (f *NetworkRule) validate() (err error) {
	if (isMatchAllPattern(f.pattern) || len(f.pattern) < 3) &&
		len(f.domains.Permitted()) == 0 &&
		!f.IsOptionEnabled(OptionCsp) {
		// Rule matches too much and does not have any domain restrictions.
		// We should not allow this kind of rules.
		return ErrTooWideRule
	}

	if f.IsOptionEnabled(OptionCsp) && f.CSP == "" && !f.Whitelist {
		return errors.Error("$csp requires a value in a blocking rule")
	}

	return nil
}

// compile compiles the pattern into a regular expression and extracts the
// shortcut.  Regular expressions are compiled eagerly so that matching never
// mutates the rule.
func (f *NetworkRule) compile() (err error) {
	if f.IsRegexRule() {
		f.Shortcut = findRegexpShortcut(f.pattern)
	} else {
		f.Shortcut = findShortcut(f.pattern)
	}

	// Shortcut needs to be at least longer than 1 character.
	if len(f.Shortcut) > 1 {
		f.Shortcut = strings.ToLower(f.Shortcut)
	} else {
		f.Shortcut = ""
	}

	pattern := patternToRegexp(f.pattern)
	if pattern == RegexAnyCharacter {
		return nil
	}

	if !f.IsOptionEnabled(OptionMatchCase) {
		pattern = "(?i)" + pattern
	}

	f.regex, err = regexp.Compile(pattern)

	return err
}

// Text implements the [Rule] interface for *NetworkRule.
func (f *NetworkRule) Text() (text string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *NetworkRule.
func (f *NetworkRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// String returns original rule text.
func (f *NetworkRule) String() (s string) {
	return f.RuleText
}

// Pattern returns the basic rule pattern.
func (f *NetworkRule) Pattern() (pattern string) {
	return f.pattern
}

// Domains returns the domain scope of the rule.  It is nil if the rule has no
// $domain modifier.
func (f *NetworkRule) Domains() (s *DomainScope) {
	return f.domains
}

// Match checks if this filtering rule matches the specified request.
func (f *NetworkRule) Match(r *Request) (ok bool) {
	switch {
	case
		!f.matchShortcut(r),
		f.IsOptionEnabled(OptionThirdParty) && !r.ThirdParty,
		f.IsOptionDisabled(OptionThirdParty) && r.ThirdParty,
		!f.matchRequestType(r.RequestType),
		!f.domains.Match(r.SourceHostname),
		!f.matchPattern(r):
		return false
	}

	return true
}

// IsOptionEnabled returns true if the specified option is enabled.
func (f *NetworkRule) IsOptionEnabled(option NetworkRuleOption) (ok bool) {
	return (f.enabledOptions & option) == option
}

// IsOptionDisabled returns true if the specified option is disabled.
func (f *NetworkRule) IsOptionDisabled(option NetworkRuleOption) (ok bool) {
	return (f.disabledOptions & option) == option
}

// IsRegexRule returns true if rule's pattern is a regular expression.
func (f *NetworkRule) IsRegexRule() (ok bool) {
	return isRegexPattern(f.pattern)
}

// IsGeneric returns true if the rule is considered "generic".  "Generic" means
// that the rule is not restricted to a limited set of domains.  Please note
// that it might be forbidden on some domains, though.
func (f *NetworkRule) IsGeneric() (ok bool) {
	return len(f.domains.Permitted()) == 0
}

// IsCosmeticException returns true if the rule is an exception that disables
// cosmetic filtering on the matching pages rather than unblocking requests.
func (f *NetworkRule) IsCosmeticException() (ok bool) {
	return f.Whitelist &&
		(f.IsOptionEnabled(OptionElemhide) || f.IsOptionEnabled(OptionGenerichide))
}

// HostnamePattern returns the hostname if the rule pattern is a hostname
// anchor, like "||example.org^".
func (f *NetworkRule) HostnamePattern() (host string, ok bool) {
	return hostnameFromPattern(f.pattern)
}

// IsHigherPriority checks if the rule has higher priority that the specified
// rule: $important > exception > basic rules.  Among the rules of the same
// class, $redirect rules win, then domain-specific rules, then the ones with
// more modifiers.
func (f *NetworkRule) IsHigherPriority(r *NetworkRule) (ok bool) {
	important := f.IsOptionEnabled(OptionImportant)
	rImportant := r.IsOptionEnabled(OptionImportant)
	if important != rImportant {
		return important
	}

	if f.Whitelist != r.Whitelist {
		return f.Whitelist
	}

	redirect := f.IsOptionEnabled(OptionRedirect)
	rRedirect := r.IsOptionEnabled(OptionRedirect)
	if redirect != rRedirect {
		// $redirect rules have "slightly" higher priority than regular
		// basic rules.
		return redirect
	}

	generic := f.IsGeneric()
	rGeneric := r.IsGeneric()
	if generic != rGeneric {
		// Specific rules have priority over generic rules.
		return !generic
	}

	// More specific rules (i.e. with more modifiers) have higher priority.
	return f.specificity() > r.specificity()
}

// specificity returns the number of the rule modifiers.
func (f *NetworkRule) specificity() (n int) {
	n = f.enabledOptions.Count() + f.disabledOptions.Count() +
		f.permittedRequestTypes.Count() + f.restrictedRequestTypes.Count()
	if !f.domains.IsEmpty() {
		n++
	}

	if f.Tag != "" {
		n++
	}

	return n
}

// negatesBadfilter only makes sense when the "f" rule has a `badfilter`
// modifier.  It returns true if the "f" rule negates the specified "r" rule.
func (f *NetworkRule) negatesBadfilter(r *NetworkRule) (ok bool) {
	switch {
	case
		!f.IsOptionEnabled(OptionBadfilter),
		r.IsOptionEnabled(OptionBadfilter),
		f.Whitelist != r.Whitelist,
		f.pattern != r.pattern,
		f.permittedRequestTypes != r.permittedRequestTypes,
		f.restrictedRequestTypes != r.restrictedRequestTypes,
		(f.enabledOptions ^ OptionBadfilter) != r.enabledOptions,
		f.disabledOptions != r.disabledOptions,
		f.RedirectKey != r.RedirectKey,
		f.Tag != r.Tag,
		f.CSP != r.CSP,
		!f.domains.Equal(r.domains):
		return false
	}

	return true
}

// matchPattern uses the regex pattern to match the request URL.
func (f *NetworkRule) matchPattern(r *Request) (ok bool) {
	return f.regex == nil || f.regex.MatchString(r.URL)
}

// matchShortcut simply checks if shortcut is a substring of the URL.
func (f *NetworkRule) matchShortcut(r *Request) (ok bool) {
	return strings.Contains(r.URLLowerCase, f.Shortcut)
}

// matchRequestType checks if the specified request type matches the rule
// properties.
func (f *NetworkRule) matchRequestType(requestType RequestType) (ok bool) {
	if f.permittedRequestTypes != 0 && (f.permittedRequestTypes&requestType) != requestType {
		return false
	}

	if f.restrictedRequestTypes != 0 && (f.restrictedRequestTypes&requestType) == requestType {
		return false
	}

	return true
}

// setRequestType permits or forbids the specified request type.
func (f *NetworkRule) setRequestType(requestType RequestType, permitted bool) {
	if permitted {
		f.permittedRequestTypes |= requestType
	} else {
		f.restrictedRequestTypes |= requestType
	}
}

// setOptionEnabled enables or disables the specified option.  It returns an
// error if this option cannot be used with this type of rules.
func (f *NetworkRule) setOptionEnabled(option NetworkRuleOption, enabled bool) (err error) {
	if f.Whitelist && (option&OptionBlacklistOnly) == option {
		return fmt.Errorf("modifier cannot be used in an exception rule: %s", option)
	}

	if !f.Whitelist && (option&OptionWhitelistOnly) == option {
		return fmt.Errorf("modifier cannot be used in a blocking rule: %s", option)
	}

	if enabled {
		f.enabledOptions |= option
	} else {
		f.disabledOptions |= option
	}

	return nil
}

// requestTypeModifiers are the request type modifiers of network rules.
var requestTypeModifiers = map[string]RequestType{
	"document":       TypeDocument,
	"doc":            TypeDocument,
	"subdocument":    TypeSubdocument,
	"frame":          TypeSubdocument,
	"script":         TypeScript,
	"stylesheet":     TypeStylesheet,
	"css":            TypeStylesheet,
	"object":         TypeObject,
	"image":          TypeImage,
	"xmlhttprequest": TypeXmlhttprequest,
	"xhr":            TypeXmlhttprequest,
	"media":          TypeMedia,
	"font":           TypeFont,
	"websocket":      TypeWebsocket,
	"ping":           TypePing,
	"other":          TypeOther,
}

// loadOptions loads all the filtering rule options.
func (f *NetworkRule) loadOptions(options string) (err error) {
	if options == "" {
		return nil
	}

	for _, option := range splitWithEscapeCharacter(options, ',', escapeCharacter, true) {
		name, value, _ := strings.Cut(option, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return fmt.Errorf("%w: empty option", ErrUnsupportedOption)
		}

		err = f.loadOption(name, value)
		if err != nil {
			return err
		}
	}

	// Cosmetic exceptions can be applied to documents only.
	if f.IsCosmeticException() {
		f.permittedRequestTypes = TypeDocument
	}

	// $csp rules apply to documents and frames unless specified otherwise.
	if f.IsOptionEnabled(OptionCsp) && f.permittedRequestTypes == 0 {
		f.permittedRequestTypes = TypeDocument | TypeSubdocument
	}

	return nil
}

// loadOption loads specified option with its value.
func (f *NetworkRule) loadOption(name, value string) (err error) {
	switch name {
	case "third-party", "3p", "~first-party", "~1p":
		return f.setOptionEnabled(OptionThirdParty, true)
	case "~third-party", "~3p", "first-party", "1p":
		return f.setOptionEnabled(OptionThirdParty, false)
	case "match-case":
		return f.setOptionEnabled(OptionMatchCase, true)
	case "~match-case":
		return f.setOptionEnabled(OptionMatchCase, false)
	case "important":
		return f.setOptionEnabled(OptionImportant, true)
	case "badfilter":
		return f.setOptionEnabled(OptionBadfilter, true)
	case "elemhide", "ehide":
		return f.setOptionEnabled(OptionElemhide, true)
	case "generichide", "ghide":
		return f.setOptionEnabled(OptionGenerichide, true)
	case "domain", "from":
		f.domains, err = ParseDomainScope(value, '|')

		return err
	case "redirect":
		return f.loadValueOption(OptionRedirect, &f.RedirectKey, name, value)
	case "tag":
		if value == "" {
			return fmt.Errorf("$%s requires a value", name)
		}

		f.Tag = value

		return nil
	case "csp":
		f.CSP = strings.TrimSpace(value)

		return f.setOptionEnabled(OptionCsp, true)
	default:
		return f.loadRequestTypeOption(name)
	}
}

// loadValueOption enables the option and stores its mandatory value into dst.
func (f *NetworkRule) loadValueOption(
	option NetworkRuleOption,
	dst *string,
	name string,
	value string,
) (err error) {
	if value == "" {
		return fmt.Errorf("$%s requires a value", name)
	}

	*dst = value

	return f.setOptionEnabled(option, true)
}

// loadRequestTypeOption loads a request type modifier, possibly negated.
func (f *NetworkRule) loadRequestTypeOption(name string) (err error) {
	typeName, negated := strings.CutPrefix(name, "~")
	t, ok := requestTypeModifiers[typeName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedOption, name)
	}

	f.setRequestType(t, !negated)

	return nil
}

// parseRuleText splits the rule text in multiple parts:
//
//   - pattern is a basic rule pattern, which can be easily converted into a
//     regex;
//   - options is a string with all rule options;
//   - whitelist indicates if rule is an exception, e.g. it should unblock
//     requests, not block them.
func parseRuleText(ruleText string) (pattern, options string, whitelist bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskWhiteList) {
		whitelist = true
		startIndex = len(maskWhiteList)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, fmt.Errorf("the rule is too short: %q", ruleText)
	}

	// Setting pattern to rule text for the case of empty options.
	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule.
	if isRegexPattern(pattern) {
		return pattern, "", whitelist, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		if ruleText[i] != optionsDelimiter {
			continue
		}

		if i > startIndex && ruleText[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern = ruleText[startIndex:i]
		options = ruleText[i+1:]
		if foundEscaped {
			options = strings.ReplaceAll(options, `\$`, "$")
		}

		break
	}

	return pattern, options, whitelist, nil
}
