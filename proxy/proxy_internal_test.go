package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AdguardTeam/adblock"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRules are the rules for the proxy tests.
const testRules = `||ads.example^
||pixel.example^$redirect=1x1.gif
||social.example^$tag=social
||example.org^$csp=script-src 'self'
||frames.example^$csp=frame-src 'none',subdocument
example.org##.banner
example.org##+js(noop)`

// testBundle is the resources bundle for the proxy tests.
const testBundle = `[{
	"name": "1x1.gif",
	"kind": {"mime": "image/gif"},
	"content": "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"
}, {
	"name": "noop.js",
	"kind": "template",
	"encoding": "raw",
	"content": "(function() {})();"
}]`

// newTestServer returns a *Server without the proxy listener.
func newTestServer(tb testing.TB) (s *Server) {
	tb.Helper()

	engine, err := adblock.NewEngineFromRules(testRules, &adblock.Config{
		Logger: slogutil.NewDiscardLogger(),
	})
	require.NoError(tb, err)
	require.NoError(tb, engine.AddResources([]byte(testBundle)))

	return &Server{
		logger:  slogutil.NewDiscardLogger(),
		resolve: rules.DefaultDomainResolver,
		mu:      &sync.RWMutex{},
		engine:  engine,
	}
}

// newTestSession returns a session for a GET request to u.
func newTestSession(u, referer, accept string) (s *Session) {
	req := httptest.NewRequest(http.MethodGet, u, nil)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", accept)

	return NewSession("1", req, rules.DefaultDomainResolver)
}

func TestServer_filterRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	t.Run("blocked", func(t *testing.T) {
		sess := newTestSession("https://ads.example/a.js", "https://example.org/", "*/*")
		resp := s.filterRequest("1", sess)
		require.NotNil(t, resp)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("redirect", func(t *testing.T) {
		sess := newTestSession("https://pixel.example/p.gif", "https://example.org/", "image/*")
		resp := s.filterRequest("1", sess)
		require.NotNil(t, resp)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
		assert.Equal(t, int64(42), resp.ContentLength)
	})

	t.Run("allowed", func(t *testing.T) {
		sess := newTestSession("https://cdn.example/a.js", "https://example.org/", "*/*")
		assert.Nil(t, s.filterRequest("1", sess))
	})

	t.Run("tag", func(t *testing.T) {
		sess := newTestSession("https://social.example/w.js", "https://example.org/", "*/*")
		assert.Nil(t, s.filterRequest("1", sess))

		s.AddTag("social")
		assert.NotNil(t, s.filterRequest("1", sess))

		s.RemoveTag("social")
		assert.Nil(t, s.filterRequest("1", sess))
	})
}

func TestServer_filterHTML(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	testCases := []struct {
		name        string
		contentType string
		body        string
		wantPrefix  string
	}{{
		name:        "head",
		contentType: "text/html; charset=utf-8",
		body:        "<html><HEAD lang=\"en\"><title>Ünïcode</title></head></html>",
		wantPrefix:  "<html><HEAD lang=\"en\"><style>\n",
	}, {
		name:        "no_head",
		contentType: "text/html",
		body:        "<p>caf\xe9</p>",
		wantPrefix:  "<style>\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sess := newTestSession("https://example.org/", "", "text/html")
			sess.SetResponse(&http.Response{
				Header: http.Header{"Content-Type": []string{tc.contentType}},
				Body:   io.NopCloser(strings.NewReader(tc.body)),
			})

			require.NoError(t, s.filterHTML(sess))

			resp := sess.HTTPResponse
			assert.Equal(t, "script-src 'self'", resp.Header.Get("Content-Security-Policy"))

			b, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			body := string(b)
			assert.True(t, strings.HasPrefix(body, tc.wantPrefix), body)
			assert.Contains(t, body, ".banner {display:none!important}")
			assert.Contains(t, body, "(function() {})();")
			assert.Equal(t, int64(len(b)), resp.ContentLength)

			// The original content must survive the round trip.
			assert.Contains(t, body, tc.body[len(tc.body)-8:])
		})
	}
}

func TestServer_filterHTML_frame(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	testCases := []struct {
		name    string
		dest    string
		wantCSP string
	}{{
		name:    "iframe",
		dest:    "iframe",
		wantCSP: "frame-src 'none'",
	}, {
		name:    "frame",
		dest:    "frame",
		wantCSP: "frame-src 'none'",
	}, {
		name:    "document",
		dest:    "document",
		wantCSP: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sess := newTestSession("https://frames.example/", "https://example.net/", "text/html")
			sess.HTTPRequest.Header.Set("Sec-Fetch-Dest", tc.dest)
			sess.SetResponse(&http.Response{
				Header: http.Header{"Content-Type": []string{"text/html"}},
				Body:   io.NopCloser(strings.NewReader("<html><head></head></html>")),
			})

			require.NoError(t, s.filterHTML(sess))

			assert.Equal(t, tc.wantCSP, sess.HTTPResponse.Header.Get("Content-Security-Policy"))
		})
	}
}

func TestServer_SetEngine(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	sess := newTestSession("https://ads.example/a.js", "https://example.org/", "*/*")
	require.NotNil(t, s.filterRequest("1", sess))

	engine, err := adblock.NewEngineFromRules("", &adblock.Config{
		Logger: slogutil.NewDiscardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.SetEngine(engine))
	assert.Nil(t, s.filterRequest("1", sess))
}

func TestInjectIntoHead(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<head>X</head>", injectIntoHead("<head></head>", "X"))
	assert.Equal(t, "<head id=a>X", injectIntoHead("<head id=a>", "X"))
	assert.Equal(t, "X<header></header>", injectIntoHead("<header></header>", "X"))
	assert.Equal(t, "<!-- <head> --><HEAD>X", injectIntoHead("<!-- <head> --><HEAD>", "X"))
	assert.Equal(t, "X<body><head>", injectIntoHead("<body><head>", "X"))
}
