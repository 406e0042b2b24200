// Package ufnet contains utilities for domain and hostname parsing/validation.
package ufnet

import (
	"strings"

	"github.com/miekg/dns"
)

// MaxDomainNameLen is the maximum length of an ASCII domain name without the
// trailing dot.
const MaxDomainNameLen = 253

// ExtractHostname quickly retrieves hostname from the given URL.  The result
// is lower-cased and has no port, no userinfo, and no IPv6 brackets.
//
// NOTE: ExtractHostname is an optimized, best-effort function to retrieve a
// hostname from a URL-like string.  The result is not guaranteed to be correct
// for some edge cases, which include non-hierarchical URLs.
func ExtractHostname(url string) (hostname string) {
	start := strings.Index(url, "//")
	if start == -1 {
		// This is a non-hierarchical structured URL (e.g. stun: or turn:), see
		// RFC 4395 section 2.2.
		colon := strings.IndexByte(url, ':')
		if colon == -1 {
			return ""
		}

		start = colon + 1
	} else {
		start += 2
	}

	authority := url[start:]
	if end := strings.IndexAny(authority, "/?#"); end != -1 {
		authority = authority[:end]
	}

	if at := strings.LastIndexByte(authority, '@'); at != -1 {
		authority = authority[at+1:]
	}

	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end == -1 {
			return ""
		}

		return strings.ToLower(authority[1:end])
	}

	if colon := strings.IndexByte(authority, ':'); colon != -1 {
		authority = authority[:colon]
	}

	return strings.ToLower(authority)
}

// IsDomainName returns true if name is a valid domain name.  Labels may
// contain ASCII letters, digits, hyphens, and underscores, they cannot start
// or end with a hyphen, and the top-level label cannot be all-numeric, so IP
// addresses are not considered domain names.
func IsDomainName(name string) (ok bool) {
	if name == "" || len(name) > MaxDomainNameLen || strings.HasSuffix(name, ".") {
		return false
	}

	if _, ok = dns.IsDomainName(name); !ok {
		return false
	}

	labels := dns.SplitDomainName(name)
	for _, l := range labels {
		if !isValidLabel(l) {
			return false
		}
	}

	return !isNumeric(labels[len(labels)-1])
}

// isValidLabel returns true if l is a valid hostname label.
func isValidLabel(l string) (ok bool) {
	if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}

	for i := range len(l) {
		switch c := l[i]; {
		case
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-',
			c == '_':
			// Go on.
		default:
			return false
		}
	}

	return true
}

// isNumeric returns true if s consists of ASCII digits only.
func isNumeric(s string) (ok bool) {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// ReverseLabels returns the labels of domain in the reverse order joined by
// dots and terminated with a dot, e.g. "com.example.ads." for
// "ads.example.com".  The trailing dot guarantees that a key is a prefix of
// another key only when the first domain is a parent of the second one.
func ReverseLabels(domain string) (reversed string) {
	labels := dns.SplitDomainName(domain)

	var sb strings.Builder
	sb.Grow(len(domain) + 1)
	for i := len(labels) - 1; i >= 0; i-- {
		sb.WriteString(labels[i])
		sb.WriteByte('.')
	}

	return sb.String()
}

// LabelCount returns the number of labels in domain.  It is used as the
// specificity of a domain entry.
func LabelCount(domain string) (n int) {
	return dns.CountLabel(domain)
}

// IsSubdomainOrSelf returns true if host is domain or any of its subdomains.
// Both arguments are expected to be lower-cased.
func IsSubdomainOrSelf(host, domain string) (ok bool) {
	if host == domain {
		return true
	}

	return len(host) > len(domain) &&
		host[len(host)-len(domain)-1] == '.' &&
		strings.HasSuffix(host, domain)
}
