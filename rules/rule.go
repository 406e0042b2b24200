// Package rules contains the filtering rule types, their parsers, and the
// logic that decides which of several matching rules wins.
package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrUnsupportedRule signals that this might be a valid rule type, but it
	// is not supported by this library.
	ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

	// ErrUnsupportedOption is returned when a network rule contains a modifier
	// that is unknown to the parser.  Such rules are rejected as a whole.
	ErrUnsupportedOption errors.Error = "unsupported rule option"

	// ErrInvalidDomainScope is returned when the domain list of a rule is
	// malformed: it has empty entries, invalid hostnames, or the same hostname
	// is both permitted and restricted.
	ErrInvalidDomainScope errors.Error = "invalid domain scope"
)

// RuleSyntaxError represents an error while parsing a filtering rule.
type RuleSyntaxError struct {
	// err is the underlying error, if any.  It is usually one of the sentinel
	// errors of this package.
	err error

	msg      string
	ruleText string
}

// newRuleSyntaxError returns a new *RuleSyntaxError for ruleText.
func newRuleSyntaxError(ruleText string, err error, format string, args ...any) (e *RuleSyntaxError) {
	return &RuleSyntaxError{
		err:      err,
		msg:      fmt.Sprintf(format, args...),
		ruleText: ruleText,
	}
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	if e.err != nil {
		return fmt.Sprintf("syntax error: %s: %s, rule: %s", e.msg, e.err, e.ruleText)
	}

	return fmt.Sprintf("syntax error: %s, rule: %s", e.msg, e.ruleText)
}

// type check
var _ errors.Wrapper = (*RuleSyntaxError)(nil)

// Unwrap implements the [errors.Wrapper] interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Unwrap() (unwrapped error) {
	return e.err
}

// RuleText returns the text of the rule that failed to parse.
func (e *RuleSyntaxError) RuleText() (text string) {
	return e.ruleText
}

// Rule is a base interface for all filtering rules.  The only implementations
// are [*NetworkRule] and [*CosmeticRule].
type Rule interface {
	// Text returns the original rule text.
	Text() (text string)

	// GetFilterListID returns ID of the filter list this rule belongs to.
	GetFilterListID() (id int)
}

// NewRule creates a new filtering rule from the specified line.  It returns
// nil and no error if the line is empty or if it is a comment.
func NewRule(line string, filterListID int) (r Rule, err error) {
	line = strings.TrimSpace(line)
	if line == "" || isComment(line) {
		return nil, nil
	}

	if isCosmetic(line) {
		return NewCosmeticRule(line, filterListID)
	}

	return NewNetworkRule(line, filterListID)
}

// isComment checks if the line is a comment or a list header like
// "[Adblock Plus 2.0]".
func isComment(line string) (ok bool) {
	switch line[0] {
	case '!', '[':
		return true
	case '#':
		if len(line) == 1 {
			return true
		}

		// Now we should check that this is not a cosmetic rule.
		for _, marker := range cosmeticRulesMarkers {
			if strings.HasPrefix(line, marker) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
