package rules

import (
	"math/bits"
	"strings"

	"github.com/AdguardTeam/adblock/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// maxURLLength limits the URL length by 4 KiB.  It appears that there can be
// URLs longer than a megabyte, and it makes no sense to go through the whole
// URL.
const maxURLLength = 4 * 1024

// RequestType is the request types enumeration.
type RequestType uint32

const (
	// TypeDocument (main frame)
	TypeDocument RequestType = 1 << iota
	// TypeSubdocument (iframe) $subdocument
	TypeSubdocument
	// TypeScript (javascript, etc) $script
	TypeScript
	// TypeStylesheet (css) $stylesheet
	TypeStylesheet
	// TypeObject (flash, etc) $object
	TypeObject
	// TypeImage (any image) $image
	TypeImage
	// TypeXmlhttprequest (ajax/fetch) $xmlhttprequest
	TypeXmlhttprequest
	// TypeMedia (video/music) $media
	TypeMedia
	// TypeFont (any custom font) $font
	TypeFont
	// TypeWebsocket (a websocket connection) $websocket
	TypeWebsocket
	// TypePing (navigator.sendBeacon() or ping attribute on links) $ping
	TypePing
	// TypeOther - any other request type
	TypeOther
)

// requestTypeNames maps the names of resource types, both the filter modifier
// ones and the webRequest API ones, to the request types.
var requestTypeNames = map[string]RequestType{
	"document":          TypeDocument,
	"doc":               TypeDocument,
	"main_frame":        TypeDocument,
	"subdocument":       TypeSubdocument,
	"frame":             TypeSubdocument,
	"sub_frame":         TypeSubdocument,
	"script":            TypeScript,
	"stylesheet":        TypeStylesheet,
	"css":               TypeStylesheet,
	"object":            TypeObject,
	"object_subrequest": TypeObject,
	"image":             TypeImage,
	"imageset":          TypeImage,
	"xmlhttprequest":    TypeXmlhttprequest,
	"xhr":               TypeXmlhttprequest,
	"fetch":             TypeXmlhttprequest,
	"media":             TypeMedia,
	"font":              TypeFont,
	"websocket":         TypeWebsocket,
	"ping":              TypePing,
	"beacon":            TypePing,
	"csp_report":        TypePing,
	"other":             TypeOther,
}

// ParseRequestType returns the request type by its name.  It accepts both the
// filter modifier names, like "xmlhttprequest", and the webRequest API names,
// like "main_frame".  Unknown names are reported as [TypeOther] with ok set to
// false.
func ParseRequestType(name string) (t RequestType, ok bool) {
	t, ok = requestTypeNames[strings.ToLower(name)]
	if !ok {
		return TypeOther, false
	}

	return t, true
}

// Count returns the count of the enabled flags.
func (t RequestType) Count() (n int) {
	return bits.OnesCount32(uint32(t))
}

// DomainResolver returns the registrable domain of host, for example
// "example.co.uk" for "ads.example.co.uk".  It must be a pure function that
// never blocks, since it is called on the matching path.  If the domain cannot
// be derived, it should return host itself.
type DomainResolver func(host string) (domain string)

// DefaultDomainResolver is a [DomainResolver] that uses the public suffix
// list.
func DefaultDomainResolver(host string) (domain string) {
	if d := effectiveTLDPlusOne(host); d != "" {
		return d
	}

	return host
}

// Request represents a web filtering request with all its necessary
// properties.
type Request struct {
	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// Hostname is the hostname of the request URL.
	Hostname string

	// Domain is the registrable domain of Hostname.
	Domain string

	// SourceHostname is the hostname of the page, the tab, that initiated the
	// request.  Rules with domain scopes are checked against it.
	SourceHostname string

	// SourceDomain is the registrable domain of SourceHostname.
	SourceDomain string

	// RequestType is the type of the filtering request.
	RequestType RequestType

	// ThirdParty is true if the request is a third-party one relative to the
	// source page.
	ThirdParty bool
}

// NewRequest creates a new instance of *Request for the URL requested from
// the page at sourceURL.  The third-party flag is inferred by comparing the
// registrable domains returned by [DefaultDomainResolver].
func NewRequest(url, sourceURL string, requestType RequestType) (r *Request) {
	return NewRequestWithResolver(url, sourceURL, requestType, DefaultDomainResolver)
}

// NewRequestWithResolver is like [NewRequest] but uses resolve to derive
// registrable domains.  resolve must not be nil.
func NewRequestWithResolver(
	url string,
	sourceURL string,
	requestType RequestType,
	resolve DomainResolver,
) (r *Request) {
	r = newRequest(url, "", ufnet.ExtractHostname(truncate(sourceURL)), requestType, resolve)
	r.ThirdParty = r.SourceDomain != "" && r.SourceDomain != r.Domain

	return r
}

// NewHostsRequest creates a new instance of *Request when the caller already
// knows the request hostname, the hostname of the source page, and whether
// the request is a third-party one.  If hostname is empty, it is extracted
// from url.  sourceHostname may also be a URL, in which case its hostname is
// used.  resolve must not be nil.
func NewHostsRequest(
	url string,
	hostname string,
	sourceHostname string,
	thirdParty bool,
	requestType RequestType,
	resolve DomainResolver,
) (r *Request) {
	if strings.Contains(sourceHostname, "//") {
		sourceHostname = ufnet.ExtractHostname(truncate(sourceHostname))
	}

	r = newRequest(url, hostname, strings.ToLower(sourceHostname), requestType, resolve)
	r.ThirdParty = thirdParty

	return r
}

// newRequest fills the common request fields.
func newRequest(
	url string,
	hostname string,
	sourceHostname string,
	requestType RequestType,
	resolve DomainResolver,
) (r *Request) {
	url = truncate(url)
	if hostname == "" {
		hostname = ufnet.ExtractHostname(url)
	}

	r = &Request{
		URL:            url,
		URLLowerCase:   strings.ToLower(url),
		Hostname:       strings.ToLower(hostname),
		SourceHostname: sourceHostname,
		RequestType:    requestType,
	}

	r.Domain = resolveDomain(r.Hostname, resolve)
	r.SourceDomain = resolveDomain(r.SourceHostname, resolve)

	return r
}

// resolveDomain calls resolve for a non-empty host.
func resolveDomain(host string, resolve DomainResolver) (domain string) {
	if host == "" {
		return ""
	}

	return resolve(host)
}

// truncate cuts url to maxURLLength.
func truncate(url string) (truncated string) {
	if len(url) > maxURLLength {
		return url[:maxURLLength]
	}

	return url
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}
