package rules

import (
	"strings"

	"github.com/AdguardTeam/adblock/internal/ufnet"
)

// Special characters of the basic rule pattern.
const (
	// MaskStartURL matches the beginning of the hostname or of any of its
	// subdomains, with any scheme.
	MaskStartURL = "||"

	// MaskPipe is the pointer to the beginning or to the end of the URL.
	MaskPipe = "|"

	// MaskSeparator matches any separator character or the end of the URL.
	MaskSeparator = "^"

	// MaskAnyCharacter matches any sequence of characters.
	MaskAnyCharacter = "*"

	// MaskRegexRule delimits a regular expression pattern.
	MaskRegexRule = "/"
)

// Regular expression equivalents of the pattern special characters.
const (
	RegexAnyCharacter = ".*"
	RegexSeparator    = "([^ a-zA-Z0-9.%_-]|$)"
	RegexStartURL     = `^(http|https|ws|wss)://([a-z0-9-_.]+\.)?`
	RegexEndString    = "$"
	RegexStartString  = "^"
)

// regexSpecialChars are the characters that must be escaped when a pattern
// is converted to a regular expression.
const regexSpecialChars = `\.+?$(){}[]/`

// isRegexPattern returns true if the pattern is a regular expression, that is
// it is enclosed in slashes.
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) > 2 &&
		strings.HasPrefix(pattern, MaskRegexRule) &&
		strings.HasSuffix(pattern, MaskRegexRule)
}

// isMatchAllPattern returns true if pattern matches every URL.
func isMatchAllPattern(pattern string) (ok bool) {
	switch pattern {
	case "", MaskStartURL, MaskPipe, MaskAnyCharacter, MaskStartURL + MaskAnyCharacter:
		return true
	default:
		return false
	}
}

// patternToRegexp converts a basic rule pattern to a regular expression.  It
// returns [RegexAnyCharacter] for the patterns that match every URL.
func patternToRegexp(pattern string) (re string) {
	if isMatchAllPattern(pattern) {
		return RegexAnyCharacter
	}

	if isRegexPattern(pattern) {
		return pattern[1 : len(pattern)-1]
	}

	var sb strings.Builder
	sb.Grow(len(pattern) * 2)

	switch {
	case strings.HasPrefix(pattern, MaskStartURL):
		sb.WriteString(RegexStartURL)
		pattern = pattern[len(MaskStartURL):]
	case strings.HasPrefix(pattern, MaskPipe):
		sb.WriteString(RegexStartString)
		pattern = pattern[len(MaskPipe):]
	}

	pattern, endAnchor := strings.CutSuffix(pattern, MaskPipe)
	for i := range len(pattern) {
		switch c := pattern[i]; c {
		case '*':
			sb.WriteString(RegexAnyCharacter)
		case '^':
			sb.WriteString(RegexSeparator)
		case '|':
			sb.WriteString(`\|`)
		default:
			if strings.IndexByte(regexSpecialChars, c) != -1 {
				sb.WriteByte('\\')
			}

			sb.WriteByte(c)
		}
	}

	if endAnchor {
		sb.WriteString(RegexEndString)
	}

	return sb.String()
}

// findShortcut searches for the longest substring of the pattern that does not
// contain any of the special characters which are:
//
//	*
//	^
//	|
func findShortcut(pattern string) (shortcut string) {
	for pattern != "" {
		i := strings.IndexAny(pattern, "*^|")
		if i == -1 {
			if len(pattern) > len(shortcut) {
				return pattern
			}

			break
		}

		if i > len(shortcut) {
			shortcut = pattern[:i]
		}

		pattern = pattern[i+1:]
	}

	return shortcut
}

// findRegexpShortcut searches for a shortcut inside of a regexp pattern.
// Shortcut in this case is the longest run of literal characters that every
// match must contain.  Expressions with alternations or optional parts are
// discarded right away.
func findRegexpShortcut(pattern string) (shortcut string) {
	pattern = pattern[1 : len(pattern)-1]
	if strings.ContainsAny(pattern, "?|") {
		return ""
	}

	var run []byte
	flush := func() {
		if len(run) > len(shortcut) {
			shortcut = string(run)
		}

		run = run[:0]
	}

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '\\':
			// Escaped characters may be character classes, like \d, so
			// consider them a break.
			flush()
			i++
		case '[', '(':
			flush()
			i = skipGroup(pattern, i)
		case '*', '{':
			// The preceding character may be absent.
			if len(run) > 0 {
				run = run[:len(run)-1]
			}

			flush()
			if c == '{' {
				i = skipGroup(pattern, i)
			}
		case '.', '+', '^', '$', ']', ')', '}':
			flush()
		default:
			run = append(run, c)
		}
	}

	flush()

	return shortcut
}

// skipGroup returns the index of the character closing the group that opens
// at pattern[start].  It returns the last index if the group is not closed.
func skipGroup(pattern string, start int) (end int) {
	var closing byte
	switch pattern[start] {
	case '[':
		closing = ']'
	case '(':
		closing = ')'
	default:
		closing = '}'
	}

	depth := 0
	for i := start; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case pattern[start]:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return len(pattern) - 1
}

// hostnameFromPattern returns the hostname if the pattern is a plain hostname
// anchor, like "||example.org^", which matches the hostname and all its
// subdomains.
func hostnameFromPattern(pattern string) (host string, ok bool) {
	host, ok = strings.CutPrefix(pattern, MaskStartURL)
	if !ok {
		return "", false
	}

	host, ok = strings.CutSuffix(host, MaskSeparator)
	if !ok || !ufnet.IsDomainName(host) {
		return "", false
	}

	return strings.ToLower(host), true
}
