package filterlist_test

import (
	"strings"
	"testing"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleScanner_Scan(t *testing.T) {
	t.Parallel()

	text := "||example.org\r\n! test\n\n##banner\n||example.org^$unknown\n||example.com^"
	sc := filterlist.NewRuleScanner(strings.NewReader(text), 1, false)

	require.True(t, sc.Scan())
	r, line := sc.Rule()
	require.NotNil(t, r)

	assert.Equal(t, "||example.org", r.Text())
	assert.Equal(t, 1, r.GetFilterListID())
	assert.Equal(t, 1, line)

	require.True(t, sc.Scan())
	r, line = sc.Rule()
	require.NotNil(t, r)

	assert.Equal(t, "##banner", r.Text())
	assert.Equal(t, 4, line)

	require.True(t, sc.Scan())
	r, line = sc.Rule()
	require.NotNil(t, r)

	assert.Equal(t, "||example.com^", r.Text())
	assert.Equal(t, 6, line)

	assert.False(t, sc.Scan())
	assert.False(t, sc.Scan())
	assert.NoError(t, sc.Err())

	r, _ = sc.Rule()
	assert.Nil(t, r)

	errs := sc.ParseErrors()
	require.Len(t, errs, 1)

	assert.Equal(t, 1, errs[0].ListID)
	assert.Equal(t, 5, errs[0].Line)
	assert.Equal(t, "||example.org^$unknown", errs[0].RuleText)
	assert.ErrorIs(t, errs[0], rules.ErrUnsupportedOption)
}

func TestRuleScanner_ignoreCosmetic(t *testing.T) {
	t.Parallel()

	text := "example.org##.banner\n||example.org^\n##.ad"
	sc := filterlist.NewRuleScanner(strings.NewReader(text), 2, true)

	var texts []string
	for sc.Scan() {
		r, _ := sc.Rule()
		texts = append(texts, r.Text())
	}

	assert.Equal(t, []string{"||example.org^"}, texts)
}

func TestRuleScanner_maxSize(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("||example.org^\n", 100)
	sc := filterlist.NewRuleScanner(strings.NewReader(text), 3, false)
	sc.MaxSize = 1 * datasize.KB

	n := 0
	for sc.Scan() {
		n++
	}

	assert.Less(t, n, 100)
	assert.ErrorIs(t, sc.Err(), filterlist.ErrListTooLarge)
}
