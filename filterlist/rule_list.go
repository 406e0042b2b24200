package filterlist

import (
	"strings"
)

// RuleList represents a source of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// NewScanner creates a new scanner that reads the list contents.
	NewScanner() (sc *RuleScanner)
}

// StringRuleList is a rule list that keeps the rules text in memory.
type StringRuleList struct {
	// RulesText is the text of the list, one rule per line.
	RulesText string

	// ID is the rule list identifier.
	ID int

	// IgnoreCosmetic, if true, makes the scanners skip cosmetic rules.
	IgnoreCosmetic bool
}

// type check
var _ RuleList = (*StringRuleList)(nil)

// GetID implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// NewScanner implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(strings.NewReader(l.RulesText), l.ID, l.IgnoreCosmetic)
}
