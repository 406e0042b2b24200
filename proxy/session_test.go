package proxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssumeRequestTypeFromMediaType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		mediaType string
		want      rules.RequestType
	}{{
		name:      "html",
		mediaType: "text/html",
		want:      rules.TypeDocument,
	}, {
		name:      "accept",
		mediaType: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		want:      rules.TypeDocument,
	}, {
		name:      "css",
		mediaType: "text/css",
		want:      rules.TypeStylesheet,
	}, {
		name:      "script",
		mediaType: "Text/JavaScript",
		want:      rules.TypeScript,
	}, {
		name:      "font",
		mediaType: "font/woff2",
		want:      rules.TypeFont,
	}, {
		name:      "unknown",
		mediaType: "*/*",
		want:      rules.TypeOther,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, assumeRequestTypeFromMediaType(tc.mediaType))
		})
	}
}

func TestAssumeRequestTypeFromURL(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("http://example.org/script.js")
	require.NoError(t, err)
	assert.Equal(t, rules.TypeScript, assumeRequestTypeFromURL(u))

	u, err = url.Parse("http://example.org/STYLE.CSS?v=1")
	require.NoError(t, err)
	assert.Equal(t, rules.TypeStylesheet, assumeRequestTypeFromURL(u))

	u, err = url.Parse("http://example.org/")
	require.NoError(t, err)
	assert.Equal(t, rules.TypeOther, assumeRequestTypeFromURL(u))
}

func TestSession(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "https://cdn.example.net/lib", nil)
	req.Header.Set("Referer", "https://www.example.org/page")

	s := NewSession("1", req, rules.DefaultDomainResolver)
	assert.Equal(t, "cdn.example.net", s.Request.Hostname)
	assert.Equal(t, "www.example.org", s.Request.SourceHostname)
	assert.True(t, s.Request.ThirdParty)
	assert.Equal(t, rules.TypeOther, s.Request.RequestType)

	resp := &http.Response{
		Header: http.Header{"Content-Type": []string{"application/javascript; charset=UTF-8"}},
	}

	s.SetResponse(resp)
	assert.Equal(t, rules.TypeScript, s.Request.RequestType)
	assert.Equal(t, "application/javascript", s.MediaType)
	assert.Equal(t, "utf-8", s.Charset)
}

func TestSession_frame(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "https://frames.example/", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Sec-Fetch-Dest", "iframe")

	s := NewSession("1", req, rules.DefaultDomainResolver)
	assert.Equal(t, rules.TypeSubdocument, s.Request.RequestType)

	s.SetResponse(&http.Response{
		Header: http.Header{"Content-Type": []string{"text/html"}},
	})
	assert.Equal(t, rules.TypeSubdocument, s.Request.RequestType)

	s.SetResponse(&http.Response{
		Header: http.Header{"Content-Type": []string{"image/png"}},
	})
	assert.Equal(t, rules.TypeImage, s.Request.RequestType)
}
