package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/adblock/internal/lookup"
	"github.com/stretchr/testify/assert"
)

func TestDomainIndex_Lookup(t *testing.T) {
	t.Parallel()

	idx := lookup.NewDomainIndex[string]()
	idx.Add("example.com", "a")
	idx.Add("shop.example.com", "b")
	idx.Add("example.com", "c")
	idx.Add("com", "d")
	idx.Add("example.co", "e")

	assert.Equal(t, 5, idx.Len())

	type found struct {
		v     string
		depth int
	}

	testCases := []struct {
		name string
		host string
		want []found
	}{{
		name: "exact",
		host: "example.com",
		want: []found{{"d", 1}, {"a", 2}, {"c", 2}},
	}, {
		name: "subdomain",
		host: "cart.shop.example.com",
		want: []found{{"d", 1}, {"a", 2}, {"c", 2}, {"b", 3}},
	}, {
		name: "suffix_not_parent",
		host: "notexample.com",
		want: []found{{"d", 1}},
	}, {
		name: "label_prefix",
		host: "example.co.uk",
		want: nil,
	}, {
		name: "no_match",
		host: "example.org",
		want: nil,
	}, {
		name: "empty",
		host: "",
		want: nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got []found
			idx.Lookup(tc.host, func(v string, depth int) (cont bool) {
				got = append(got, found{v: v, depth: depth})

				return true
			})

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDomainIndex_Lookup_stop(t *testing.T) {
	t.Parallel()

	idx := lookup.NewDomainIndex[int]()
	idx.Add("example.com", 1)
	idx.Add("example.com", 2)
	idx.Add("www.example.com", 3)

	var got []int
	idx.Lookup("www.example.com", func(v int, _ int) (cont bool) {
		got = append(got, v)

		return false
	})

	assert.Equal(t, []int{1}, got)
}
