// Package filterlist contains the filter list types: the sources of the rule
// text, the scanners that parse them, and the storage of the parsed rules.
package filterlist

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrRuleRetrieval is returned when the rule cannot be retrieved from the
	// storage by its index.
	ErrRuleRetrieval errors.Error = "cannot retrieve the rule"

	// ErrListTooLarge is returned when a rule list is larger than the
	// configured limit.
	ErrListTooLarge errors.Error = "rule list is too large"
)

// ParseError is a non-fatal error about a single line of a rule list.  The
// scanner reports it and continues with the next line.
type ParseError struct {
	// Err is the underlying error, usually a *rules.RuleSyntaxError.
	Err error

	// RuleText is the trimmed text of the line.
	RuleText string

	// ListID is the identifier of the list.
	ListID int

	// Line is the 1-based number of the line in the list.
	Line int
}

// type check
var _ error = (*ParseError)(nil)

// Error implements the error interface for *ParseError.
func (e *ParseError) Error() (msg string) {
	return fmt.Sprintf("list %d: line %d: %s", e.ListID, e.Line, e.Err)
}

// type check
var _ errors.Wrapper = (*ParseError)(nil)

// Unwrap implements the [errors.Wrapper] interface for *ParseError.
func (e *ParseError) Unwrap() (unwrapped error) {
	return e.Err
}
