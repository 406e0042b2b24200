package rules_test

import (
	"testing"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newNetworkRules is a helper that parses rule texts and fails the test on
// errors.
func newNetworkRules(tb testing.TB, texts ...string) (rs []*rules.NetworkRule) {
	tb.Helper()

	for _, text := range texts {
		r, err := rules.NewNetworkRule(text, 0)
		require.NoError(tb, err, text)

		rs = append(rs, r)
	}

	return rs
}

func TestNewMatchingResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		wantBasicRule string
		rules         []string
		wantBlocked   bool
		wantException bool
		wantImportant bool
	}{{
		name:          "empty",
		wantBasicRule: "",
		rules:         nil,
	}, {
		name:          "block",
		wantBasicRule: "||ads.example.com^",
		rules:         []string{"||ads.example.com^"},
		wantBlocked:   true,
	}, {
		name:          "exception",
		wantBasicRule: "@@||ads.example.com^$domain=example.com",
		rules: []string{
			"||ads.example.com^",
			"@@||ads.example.com^$domain=example.com",
		},
		wantException: true,
	}, {
		name:          "important",
		wantBasicRule: "||ads.example.com^$important",
		rules: []string{
			"||ads.example.com^$important",
			"@@||ads.example.com^$domain=example.com",
		},
		wantBlocked:   true,
		wantImportant: true,
	}, {
		name:          "exception_alone",
		wantBasicRule: "",
		rules:         []string{"@@||ads.example.com^"},
	}, {
		name:          "badfilter",
		wantBasicRule: "",
		rules: []string{
			"||ads.example.com^",
			"||ads.example.com^$badfilter",
		},
	}, {
		name:          "badfilter_other_rule",
		wantBasicRule: "||ads.example.com^$script",
		rules: []string{
			"||ads.example.com^$script",
			"||ads.example.com^$badfilter",
		},
		wantBlocked: true,
	}, {
		name:          "badfilter_exception",
		wantBasicRule: "||ads.example.com^",
		rules: []string{
			"||ads.example.com^",
			"@@||ads.example.com^",
			"@@||ads.example.com^$badfilter",
		},
		wantBlocked: true,
	}, {
		name:          "specific_first",
		wantBasicRule: "||ads.example.com^$domain=example.org",
		rules: []string{
			"||ads.example.com^",
			"||ads.example.com^$domain=example.org",
		},
		wantBlocked: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := rules.NewMatchingResult(newNetworkRules(t, tc.rules...))
			require.NotNil(t, res)

			assert.Equal(t, tc.wantBlocked, res.IsBlocked())
			assert.Equal(t, tc.wantException, res.IsException())
			assert.Equal(t, tc.wantImportant, res.IsImportant())

			if tc.wantBasicRule == "" {
				assert.Nil(t, res.BasicRule)
			} else {
				require.NotNil(t, res.BasicRule)
				assert.Equal(t, tc.wantBasicRule, res.BasicRule.Text())
			}
		})
	}
}

func TestMatchingResult_RedirectRules(t *testing.T) {
	t.Parallel()

	res := rules.NewMatchingResult(newNetworkRules(
		t,
		"||example.org/ads.js",
		"||example.org/ads.js$script,redirect=noop.js",
		"||example.org/ads.js$redirect=noop-generic.js",
	))

	require.True(t, res.IsBlocked())
	redirects := res.RedirectRules()
	require.Len(t, redirects, 2)

	assert.Equal(t, "noop.js", redirects[0].RedirectKey)
	assert.Equal(t, "noop-generic.js", redirects[1].RedirectKey)
	assert.Equal(t, redirects[0], res.BasicRule)

	unblocked := rules.NewMatchingResult(newNetworkRules(
		t,
		"||example.org/ads.js$redirect=noop.js",
		"@@||example.org/ads.js",
	))

	assert.False(t, unblocked.IsBlocked())
	assert.Empty(t, unblocked.RedirectRules())
}

func TestMatchingResult_CSPDirectives(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		rules []string
		want  []string
	}{{
		name:  "none",
		rules: []string{"||example.org^"},
		want:  nil,
	}, {
		name: "sorted_deduplicated",
		rules: []string{
			"||example.org^$csp=script-src 'none'",
			"||example.org^$csp=frame-src 'none'",
			"$csp=script-src 'none',domain=example.org",
		},
		want: []string{"frame-src 'none'", "script-src 'none'"},
	}, {
		name: "exception_one",
		rules: []string{
			"||example.org^$csp=script-src 'none'",
			"||example.org^$csp=frame-src 'none'",
			"@@||example.org^$csp=script-src 'none'",
		},
		want: []string{"frame-src 'none'"},
	}, {
		name: "exception_all",
		rules: []string{
			"||example.org^$csp=script-src 'none'",
			"@@||example.org^$csp",
		},
		want: nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := rules.NewMatchingResult(newNetworkRules(t, tc.rules...))
			assert.Equal(t, tc.want, res.CSPDirectives())
		})
	}
}

func TestMatchingResult_GetCosmeticOption(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		rules []string
		want  rules.CosmeticOption
	}{{
		name:  "all",
		rules: nil,
		want:  rules.CosmeticOptionAll,
	}, {
		name:  "generichide",
		rules: []string{"@@||example.org^$generichide"},
		want:  rules.CosmeticOptionCSS | rules.CosmeticOptionJS,
	}, {
		name:  "elemhide",
		rules: []string{"@@||example.org^$elemhide"},
		want:  rules.CosmeticOptionJS,
	}, {
		name: "both",
		rules: []string{
			"@@||example.org^$ghide",
			"@@||example.org^$ehide",
		},
		want: rules.CosmeticOptionJS,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := rules.NewMatchingResult(newNetworkRules(t, tc.rules...))
			assert.Equal(t, tc.want, res.GetCosmeticOption())
			assert.False(t, res.IsException())
		})
	}
}
