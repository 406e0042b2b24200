package filterlist_test

import (
	"testing"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/stretchr/testify/assert"
)

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want *filterlist.Metadata
		name string
		text string
	}{{
		want: &filterlist.Metadata{},
		name: "empty",
		text: "",
	}, {
		want: &filterlist.Metadata{
			Homepage: "https://example.org/filters",
			Title:    "Example Filter",
		},
		name: "both",
		text: "[Adblock Plus 2.0]\n" +
			"! Title: Example Filter\n" +
			"! Homepage: https://example.org/filters\n" +
			"||ads.example^\n",
	}, {
		want: &filterlist.Metadata{
			Title: "First",
		},
		name: "first_wins",
		text: "! Title: First\n! title: Second\n",
	}, {
		want: &filterlist.Metadata{},
		name: "after_rules",
		text: "||ads.example^\n! Title: Late\n",
	}, {
		want: &filterlist.Metadata{
			Title: "Spaced",
		},
		name: "spaces",
		text: "\n   !   Title:   Spaced   \n! Version: 1\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, filterlist.ParseMetadata(tc.text))
		})
	}
}

func TestMetadata_IsEmpty(t *testing.T) {
	t.Parallel()

	var m *filterlist.Metadata
	assert.True(t, m.IsEmpty())
	assert.True(t, (&filterlist.Metadata{}).IsEmpty())
	assert.False(t, (&filterlist.Metadata{Title: "t"}).IsEmpty())
}
