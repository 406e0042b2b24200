package adblock_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/AdguardTeam/adblock"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSnapshotRules are the rules for the serialization tests.
var testSnapshotRules = strings.Join([]string{
	"! Title: Snapshot test",
	"! Homepage: https://example.org/snapshot",
	"||ads.example.com^",
	"@@||ads.example.com^$domain=example.com",
	"||ads.example.com/critical^$important",
	"||track.example.com^$redirect=1x1-transparent.gif,image",
	"||social.example^$tag=social",
	"/banner/*/ad_$domain=example.org|~shop.example.org",
	"/^https?:\\/\\/[a-z]+\\.example\\.net\\/ads/",
	"||example.com^$csp=script-src 'self'",
	"@@||example.com^$generichide",
	"##.ad",
	"example.com#@#.ad",
	"example.org##.specific",
	"example.org##.styled:style(color: red)",
	"example.*##.wildcard",
	"example.org##+js(set-constant, ads, false)",
}, "\n")

// testRequest is a request for the equivalence tests.
type testRequest struct {
	url          string
	sourceHost   string
	resourceType string
	thirdParty   bool
}

// testRequests are the requests for the equivalence tests.
var testRequests = []testRequest{{
	url:          "https://ads.example.com/a.js",
	sourceHost:   "example.com",
	resourceType: "script",
	thirdParty:   true,
}, {
	url:          "https://ads.example.com/a.js",
	sourceHost:   "example.net",
	resourceType: "script",
	thirdParty:   true,
}, {
	url:          "https://ads.example.com/critical/",
	sourceHost:   "example.com",
	resourceType: "xhr",
	thirdParty:   true,
}, {
	url:          "https://track.example.com/p.gif",
	sourceHost:   "example.org",
	resourceType: "image",
	thirdParty:   true,
}, {
	url:          "https://social.example/like.js",
	sourceHost:   "example.org",
	resourceType: "script",
	thirdParty:   true,
}, {
	url:          "https://cdn.test/banner/1/ad_1.png",
	sourceHost:   "news.example.org",
	resourceType: "image",
	thirdParty:   true,
}, {
	url:          "https://cdn.test/banner/1/ad_1.png",
	sourceHost:   "shop.example.org",
	resourceType: "image",
	thirdParty:   true,
}, {
	url:          "https://media.example.net/ads/1.mp4",
	sourceHost:   "example.org",
	resourceType: "media",
	thirdParty:   true,
}, {
	url:          "https://example.com/",
	sourceHost:   "example.com",
	resourceType: "document",
	thirdParty:   false,
}}

// testURLs are the page URLs for the cosmetic equivalence tests.
var testURLs = []string{
	"https://example.com/",
	"https://example.org/",
	"https://shop.example.org/",
	"https://example.de/",
	"https://other.test/",
}

// newSnapshotEngine returns an engine with testSnapshotRules, testResources,
// and the "social" tag enabled.
func newSnapshotEngine(tb testing.TB) (engine *adblock.Engine) {
	tb.Helper()

	engine = newTestEngine(tb, testSnapshotRules)
	require.NoError(tb, engine.AddResources([]byte(testResources)))
	engine.AddTag("social")

	return engine
}

// assertEquivalent checks that both engines answer the test queries the same
// way.
func assertEquivalent(tb testing.TB, want, got *adblock.Engine) {
	tb.Helper()

	for _, r := range testRequests {
		wantRes := want.Match(r.url, "", r.sourceHost, r.thirdParty, r.resourceType)
		gotRes := got.Match(r.url, "", r.sourceHost, r.thirdParty, r.resourceType)

		assert.Equal(tb, wantRes.Blocked, gotRes.Blocked, r.url)
		assert.Equal(tb, wantRes.Exception, gotRes.Exception, r.url)
		assert.Equal(tb, wantRes.Important, gotRes.Important, r.url)
		assert.Equal(tb, wantRes.RedirectDataURL(), gotRes.RedirectDataURL(), r.url)

		if wantRes.Rule != nil {
			require.NotNil(tb, gotRes.Rule, r.url)
			assert.Equal(tb, wantRes.Rule.RuleText, gotRes.Rule.RuleText, r.url)
		}

		wantCSP := want.GetCSPDirectives(r.url, "", r.sourceHost, r.thirdParty, r.resourceType)
		gotCSP := got.GetCSPDirectives(r.url, "", r.sourceHost, r.thirdParty, r.resourceType)
		assert.Equal(tb, wantCSP, gotCSP, r.url)
	}

	for _, u := range testURLs {
		assert.Equal(tb, want.URLCosmeticResources(u), got.URLCosmeticResources(u), u)
	}

	classes := []string{"ad", "wildcard", "specific"}
	assert.Equal(
		tb,
		want.HiddenClassIDSelectors(classes, nil, nil),
		got.HiddenClassIDSelectors(classes, nil, nil),
	)

	assert.Equal(tb, want.Tags(), got.Tags())
	assert.Equal(tb, want.Metadata(), got.Metadata())
}

func TestEngine_Serialize(t *testing.T) {
	t.Parallel()

	engine := newSnapshotEngine(t)

	data, err := engine.Serialize()
	require.NoError(t, err)
	require.Greater(t, len(data), 6)

	assert.Equal(t, "ABES", string(data[:4]))

	restored, md, err := adblock.DeserializeWithMetadata(data, newTestConfig())
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, restored.Close)

	assert.Equal(t, "Snapshot test", md.Title)
	assert.Equal(t, "https://example.org/snapshot", md.Homepage)
	assert.Equal(t, engine.Resources().Resources(), restored.Resources().Resources())

	wantNet, wantCosm := engine.RulesCount()
	gotNet, gotCosm := restored.RulesCount()
	assert.Equal(t, wantNet, gotNet)
	assert.Equal(t, wantCosm, gotCosm)

	assertEquivalent(t, engine, restored)

	again, err := restored.Serialize()
	require.NoError(t, err)

	twice, err := adblock.Deserialize(again, newTestConfig())
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, twice.Close)

	assertEquivalent(t, engine, twice)
}

func TestEngine_Deserialize_inPlace(t *testing.T) {
	t.Parallel()

	source := newSnapshotEngine(t)
	data, err := source.Serialize()
	require.NoError(t, err)

	engine := newTestEngine(t, "||unrelated.example^")
	gen := engine.Generation()

	err = engine.Deserialize(data)
	require.NoError(t, err)

	assert.Greater(t, engine.Generation(), gen)
	assert.False(t, engine.Match("https://unrelated.example/", "", "", true, "script").Blocked)

	assertEquivalent(t, source, engine)

	gen = engine.Generation()
	err = engine.Deserialize([]byte("garbage"))
	assert.ErrorIs(t, err, adblock.ErrBadSnapshot)
	assert.Equal(t, gen, engine.Generation())

	assertEquivalent(t, source, engine)
}

func TestDeserialize_errors(t *testing.T) {
	t.Parallel()

	engine := newSnapshotEngine(t)
	data, err := engine.Serialize()
	require.NoError(t, err)

	wrongVersion := append([]byte{}, data...)
	binary.BigEndian.PutUint16(wrongVersion[4:6], 0xFFFF)

	truncated := data[:len(data)/2]

	corrupted := append([]byte{}, data...)
	for i := 6; i < len(corrupted); i++ {
		corrupted[i] ^= 0x5A
	}

	testCases := []struct {
		wantErr error
		name    string
		data    []byte
	}{{
		wantErr: adblock.ErrBadSnapshot,
		name:    "empty",
		data:    nil,
	}, {
		wantErr: adblock.ErrBadSnapshot,
		name:    "bad_magic",
		data:    append([]byte("XXXX"), data[4:]...),
	}, {
		wantErr: adblock.ErrBadSnapshot,
		name:    "header_only",
		data:    data[:6],
	}, {
		wantErr: adblock.ErrVersionMismatch,
		name:    "version",
		data:    wrongVersion,
	}, {
		wantErr: adblock.ErrBadSnapshot,
		name:    "truncated",
		data:    truncated,
	}, {
		wantErr: adblock.ErrBadSnapshot,
		name:    "corrupted",
		data:    corrupted,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			restored, derr := adblock.Deserialize(tc.data, newTestConfig())
			assert.Nil(t, restored)
			assert.ErrorIs(t, derr, tc.wantErr)
		})
	}
}
