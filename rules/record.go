package rules

import (
	"fmt"
	"slices"

	"github.com/AdguardTeam/golibs/errors"
)

// NetworkRuleRecord is the serializable form of a [NetworkRule].  It holds the
// already parsed properties of the rule, so restoring a rule doesn't require
// parsing its text again.
type NetworkRuleRecord struct {
	Text              string
	Pattern           string
	RedirectKey       string
	Tag               string
	CSP               string
	PermittedDomains  []string
	RestrictedDomains []string
	FilterListID      int
	EnabledOptions    NetworkRuleOption
	DisabledOptions   NetworkRuleOption
	PermittedTypes    RequestType
	RestrictedTypes   RequestType
	Whitelist         bool
}

// CosmeticRuleRecord is the serializable form of a [CosmeticRule].
type CosmeticRuleRecord struct {
	Text              string
	Content           string
	Selector          string
	Style             string
	ScriptletName     string
	ScriptletArgs     []string
	PermittedDomains  []string
	RestrictedDomains []string
	FilterListID      int
	Type              CosmeticRuleType
	Whitelist         bool
	ExtendedCSS       bool
}

// Record is the serializable form of a [Rule].  Exactly one of the fields is
// set.
type Record struct {
	Network  *NetworkRuleRecord
	Cosmetic *CosmeticRuleRecord
}

// NewRecord returns the serializable form of r.
func NewRecord(r Rule) (rec *Record, err error) {
	switch r := r.(type) {
	case *NetworkRule:
		return &Record{
			Network: &NetworkRuleRecord{
				Text:              r.RuleText,
				Pattern:           r.pattern,
				RedirectKey:       r.RedirectKey,
				Tag:               r.Tag,
				CSP:               r.CSP,
				PermittedDomains:  slices.Clone(r.domains.Permitted()),
				RestrictedDomains: slices.Clone(r.domains.Restricted()),
				FilterListID:      r.FilterListID,
				EnabledOptions:    r.enabledOptions,
				DisabledOptions:   r.disabledOptions,
				PermittedTypes:    r.permittedRequestTypes,
				RestrictedTypes:   r.restrictedRequestTypes,
				Whitelist:         r.Whitelist,
			},
		}, nil
	case *CosmeticRule:
		return &Record{
			Cosmetic: &CosmeticRuleRecord{
				Text:              r.RuleText,
				Content:           r.Content,
				Selector:          r.Selector,
				Style:             r.Style,
				ScriptletName:     r.ScriptletName,
				ScriptletArgs:     slices.Clone(r.ScriptletArgs),
				PermittedDomains:  slices.Clone(r.domains.Permitted()),
				RestrictedDomains: slices.Clone(r.domains.Restricted()),
				FilterListID:      r.FilterListID,
				Type:              r.Type,
				Whitelist:         r.Whitelist,
				ExtendedCSS:       r.ExtendedCSS,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unexpected rule type %T", r)
	}
}

// Rule restores the rule from the record.  The returned error means that the
// record is corrupted.
func (rec *Record) Rule() (r Rule, err error) {
	switch {
	case rec.Network != nil && rec.Cosmetic == nil:
		nr, nerr := rec.Network.rule()
		if nerr != nil {
			return nil, nerr
		}

		return nr, nil
	case rec.Cosmetic != nil && rec.Network == nil:
		cr, cerr := rec.Cosmetic.rule()
		if cerr != nil {
			return nil, cerr
		}

		return cr, nil
	default:
		return nil, errors.Error("record must contain exactly one rule")
	}
}

// rule restores the network rule from the record.
func (rec *NetworkRuleRecord) rule() (r *NetworkRule, err error) {
	domains, err := NewDomainScope(rec.PermittedDomains, rec.RestrictedDomains)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rec.Text, err)
	}

	r = &NetworkRule{
		RuleText:               rec.Text,
		RedirectKey:            rec.RedirectKey,
		Tag:                    rec.Tag,
		CSP:                    rec.CSP,
		domains:                domains,
		pattern:                rec.Pattern,
		FilterListID:           rec.FilterListID,
		enabledOptions:         rec.EnabledOptions,
		disabledOptions:        rec.DisabledOptions,
		permittedRequestTypes:  rec.PermittedTypes,
		restrictedRequestTypes: rec.RestrictedTypes,
		Whitelist:              rec.Whitelist,
	}

	if r.Whitelist && r.enabledOptions&OptionBlacklistOnly != 0 ||
		!r.Whitelist && r.enabledOptions&OptionWhitelistOnly != 0 {
		return nil, fmt.Errorf("rule %q: inconsistent options", rec.Text)
	}

	err = r.compile()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rec.Text, err)
	}

	return r, nil
}

// rule restores the cosmetic rule from the record.
func (rec *CosmeticRuleRecord) rule() (r *CosmeticRule, err error) {
	domains, err := NewDomainScope(rec.PermittedDomains, rec.RestrictedDomains)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rec.Text, err)
	}

	if rec.Type > CosmeticScriptlet {
		return nil, fmt.Errorf("rule %q: unknown type %d", rec.Text, rec.Type)
	}

	return &CosmeticRule{
		domains:       domains,
		RuleText:      rec.Text,
		Content:       rec.Content,
		Selector:      rec.Selector,
		Style:         rec.Style,
		ScriptletName: rec.ScriptletName,
		ScriptletArgs: slices.Clone(rec.ScriptletArgs),
		FilterListID:  rec.FilterListID,
		Type:          rec.Type,
		Whitelist:     rec.Whitelist,
		ExtendedCSS:   rec.ExtendedCSS,
	}, nil
}
