package rules_test

import (
	"strings"
	"testing"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		url            string
		sourceURL      string
		wantHostname   string
		wantDomain     string
		wantSource     string
		wantThirdParty bool
	}{{
		name:           "third_party",
		url:            "https://ads.example.com/banner.gif",
		sourceURL:      "https://news.example.org/",
		wantHostname:   "ads.example.com",
		wantDomain:     "example.com",
		wantSource:     "news.example.org",
		wantThirdParty: true,
	}, {
		name:           "first_party",
		url:            "https://static.example.org/app.js",
		sourceURL:      "https://www.example.org/",
		wantHostname:   "static.example.org",
		wantDomain:     "example.org",
		wantSource:     "www.example.org",
		wantThirdParty: false,
	}, {
		name:           "no_source",
		url:            "https://EXAMPLE.org:8080/",
		sourceURL:      "",
		wantHostname:   "example.org",
		wantDomain:     "example.org",
		wantSource:     "",
		wantThirdParty: false,
	}, {
		name:           "public_suffix",
		url:            "https://a.example.co.uk/",
		sourceURL:      "https://b.example.co.uk/",
		wantHostname:   "a.example.co.uk",
		wantDomain:     "example.co.uk",
		wantSource:     "b.example.co.uk",
		wantThirdParty: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, tc.sourceURL, rules.TypeScript)

			assert.Equal(t, tc.url, r.URL)
			assert.Equal(t, strings.ToLower(tc.url), r.URLLowerCase)
			assert.Equal(t, tc.wantHostname, r.Hostname)
			assert.Equal(t, tc.wantDomain, r.Domain)
			assert.Equal(t, tc.wantSource, r.SourceHostname)
			assert.Equal(t, tc.wantThirdParty, r.ThirdParty)
			assert.Equal(t, rules.TypeScript, r.RequestType)
		})
	}
}

func TestNewRequestWithResolver(t *testing.T) {
	t.Parallel()

	// Treat every hostname as its own registrable domain.
	identity := func(host string) (domain string) { return host }

	r := rules.NewRequestWithResolver(
		"https://cdn.example.org/app.js",
		"https://www.example.org/",
		rules.TypeScript,
		identity,
	)

	assert.Equal(t, "cdn.example.org", r.Domain)
	assert.Equal(t, "www.example.org", r.SourceDomain)
	assert.True(t, r.ThirdParty)
}

func TestNewHostsRequest(t *testing.T) {
	t.Parallel()

	r := rules.NewHostsRequest(
		"https://ads.example.com/x.js",
		"",
		"https://Page.Example.org/index.html",
		false,
		rules.TypeScript,
		rules.DefaultDomainResolver,
	)

	assert.Equal(t, "ads.example.com", r.Hostname)
	assert.Equal(t, "page.example.org", r.SourceHostname)
	assert.Equal(t, "example.org", r.SourceDomain)
	assert.False(t, r.ThirdParty)

	r = rules.NewHostsRequest(
		"https://ads.example.com/x.js",
		"ads.example.com",
		"page.example.org",
		true,
		rules.TypeImage,
		rules.DefaultDomainResolver,
	)

	assert.Equal(t, "page.example.org", r.SourceHostname)
	assert.True(t, r.ThirdParty)
}

func TestNewRequest_longURL(t *testing.T) {
	t.Parallel()

	url := "https://example.org/" + strings.Repeat("a", 10_000)
	r := rules.NewRequest(url, "", rules.TypeOther)

	assert.Len(t, r.URL, 4*1024)
	assert.Equal(t, "example.org", r.Hostname)
}

func TestParseRequestType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		want   rules.RequestType
		wantOK bool
	}{{
		name:   "script",
		want:   rules.TypeScript,
		wantOK: true,
	}, {
		name:   "main_frame",
		want:   rules.TypeDocument,
		wantOK: true,
	}, {
		name:   "SUB_FRAME",
		want:   rules.TypeSubdocument,
		wantOK: true,
	}, {
		name:   "xhr",
		want:   rules.TypeXmlhttprequest,
		wantOK: true,
	}, {
		name:   "beacon",
		want:   rules.TypePing,
		wantOK: true,
	}, {
		name:   "speculative",
		want:   rules.TypeOther,
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := rules.ParseRequestType(tc.name)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}
