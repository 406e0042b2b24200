package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
)

// RuleScanner reads and parses the rules of a single list line by line.  The
// lines that fail to parse are collected as [*ParseError] and skipped.
type RuleScanner struct {
	// reader is the source of the list contents.
	reader *bufio.Reader

	// currentRule is the last successfully parsed rule.
	currentRule rules.Rule

	// err is the fatal error that stopped the scanning, if any.
	err error

	// parseErrors are the errors of the skipped lines.
	parseErrors []*ParseError

	// MaxSize is the maximum size of the list.  Zero means no limit.  It
	// must be set before the first call to Scan.
	MaxSize datasize.ByteSize

	// read is the number of bytes read so far.
	read datasize.ByteSize

	// listID is the identifier of the list.
	listID int

	// currentLine is the number of the last read line.
	currentLine int

	// ruleLine is the number of the line of currentRule.
	ruleLine int

	// done is true when the reader has been exhausted.
	done bool

	// ignoreCosmetic tells the scanner to skip cosmetic rules.
	ignoreCosmetic bool
}

// NewRuleScanner returns a new RuleScanner for the specified reader.  listID
// is set to every rule created by this scanner.  If ignoreCosmetic is true,
// cosmetic rules are skipped.
func NewRuleScanner(r io.Reader, listID int, ignoreCosmetic bool) (s *RuleScanner) {
	return &RuleScanner{
		reader:         bufio.NewReader(r),
		listID:         listID,
		ignoreCosmetic: ignoreCosmetic,
	}
}

// Scan advances the RuleScanner to the next rule, which will then be
// available through the Rule method.  It returns false when the scan stops,
// either by reaching the end of the input or an error.  See Err.
func (s *RuleScanner) Scan() (ok bool) {
	s.currentRule = nil
	for !s.done {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("reading list %d: %w", s.listID, err)

				return false
			}
		}

		if line == "" {
			continue
		}

		s.currentLine++
		s.read += datasize.ByteSize(len(line))
		if s.MaxSize > 0 && s.read > s.MaxSize {
			s.done = true
			s.err = fmt.Errorf("list %d: %w: limit is %s", s.listID, ErrListTooLarge, s.MaxSize)

			return false
		}

		if s.parseLine(line) {
			return true
		}
	}

	return false
}

// parseLine parses the line and sets the current rule.  It returns false if
// the line has been skipped.
func (s *RuleScanner) parseLine(line string) (ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	r, err := rules.NewRule(line, s.listID)
	if err != nil {
		s.parseErrors = append(s.parseErrors, &ParseError{
			Err:      err,
			RuleText: line,
			ListID:   s.listID,
			Line:     s.currentLine,
		})

		return false
	} else if r == nil {
		return false
	}

	if _, isCosmetic := r.(*rules.CosmeticRule); isCosmetic && s.ignoreCosmetic {
		return false
	}

	s.currentRule = r
	s.ruleLine = s.currentLine

	return true
}

// Rule returns the most recent rule generated by a call to Scan, and the
// 1-based number of its line.
func (s *RuleScanner) Rule() (r rules.Rule, line int) {
	return s.currentRule, s.ruleLine
}

// Err returns the error that stopped the scanning, if any.  Reaching the end
// of the input is not an error.
func (s *RuleScanner) Err() (err error) {
	return s.err
}

// ParseErrors returns the errors of the lines skipped so far.
func (s *RuleScanner) ParseErrors() (errs []*ParseError) {
	return s.parseErrors
}
