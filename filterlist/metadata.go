package filterlist

import (
	"bufio"
	"strings"
)

// Metadata is the information a filter list declares about itself in its
// header comments.  Empty fields mean that the list doesn't declare them.
type Metadata struct {
	// Homepage is the value of the "! Homepage:" header.
	Homepage string `json:"homepage,omitempty" yaml:"homepage,omitempty"`

	// Title is the value of the "! Title:" header.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// IsEmpty returns true if m has no fields set.  m may be nil.
func (m *Metadata) IsEmpty() (ok bool) {
	return m == nil || *m == Metadata{}
}

// Metadata header keys.
const (
	headerHomepage = "homepage"
	headerTitle    = "title"
)

// ParseMetadata reads the metadata from the leading comment block of the
// filter list text.  It stops at the first line that is not a comment or an
// "[Adblock Plus 2.0]"-like header.  The first value of each key wins.
func ParseMetadata(text string) (m *Metadata) {
	m = &Metadata{}

	s := bufio.NewScanner(strings.NewReader(text))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		switch {
		case line == "", strings.HasPrefix(line, "["):
			continue
		case !strings.HasPrefix(line, "!"):
			return m
		}

		key, val, ok := strings.Cut(strings.TrimSpace(line[1:]), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case headerHomepage:
			m.Homepage = firstNonEmpty(m.Homepage, val)
		case headerTitle:
			m.Title = firstNonEmpty(m.Title, val)
		}
	}

	return m
}

// firstNonEmpty returns a if it's not empty and b otherwise.
func firstNonEmpty(a, b string) (s string) {
	if a != "" {
		return a
	}

	return b
}
