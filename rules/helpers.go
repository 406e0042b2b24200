package rules

import (
	"strings"
)

// splitWithEscapeCharacter splits str by sep unless the separator is escaped
// with esc.  Escaped separators are unescaped in the result, other escape
// characters are kept as is.  Empty parts are only kept if preserveAllTokens
// is true.
func splitWithEscapeCharacter(str string, sep, esc byte, preserveAllTokens bool) (parts []string) {
	if str == "" {
		return nil
	}

	var sb strings.Builder
	escaped := false
	for i := range len(str) {
		c := str[i]

		switch {
		case c == esc:
			if escaped {
				sb.WriteByte(esc)
			}

			escaped = true
		case c == sep && escaped:
			sb.WriteByte(c)
			escaped = false
		case c == sep:
			if preserveAllTokens || sb.Len() > 0 {
				parts = append(parts, sb.String())
				sb.Reset()
			}
		default:
			if escaped {
				escaped = false
				sb.WriteByte(esc)
			}

			sb.WriteByte(c)
		}
	}

	if escaped {
		sb.WriteByte(esc)
	}

	if preserveAllTokens || sb.Len() > 0 {
		parts = append(parts, sb.String())
	}

	return parts
}

// startsAtIndexWith checks if str contains substr starting at startIndex.
func startsAtIndexWith(str string, startIndex int, substr string) (ok bool) {
	if startIndex < 0 || len(str)-startIndex < len(substr) {
		return false
	}

	return str[startIndex:startIndex+len(substr)] == substr
}

// indexUnquoted returns the index of the first occurrence of c in s that is not
// preceded by a backslash and not inside a pair of quotes.  It returns -1 if
// there is no such occurrence.
func indexUnquoted(s string, c byte) (idx int) {
	var quote byte
	for i := range len(s) {
		switch ch := s[i]; {
		case i > 0 && s[i-1] == '\\':
			continue
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == c:
			return i
		}
	}

	return -1
}
