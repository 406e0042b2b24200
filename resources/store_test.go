package resources_test

import (
	"testing"

	"github.com/AdguardTeam/adblock/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBundle is a valid resource bundle for tests.
const testBundle = `[{
	"name": "noop.js",
	"aliases": ["noopjs", "abp-resource:blank-js"],
	"kind": {"mime": "application/javascript"},
	"content": "KGZ1bmN0aW9uKCkge30pKCk7"
}, {
	"name": "set-constant.js",
	"aliases": ["set.js"],
	"kind": "template",
	"content": "window['{{1}}'] = {{2}};",
	"encoding": "raw"
}]`

func TestStore_AddBundle(t *testing.T) {
	t.Parallel()

	s := resources.NewStore()
	require.NoError(t, s.AddBundle([]byte(testBundle)))

	assert.Equal(t, 5, s.Len())

	r, ok := s.Get("noopjs")
	require.True(t, ok)

	assert.Equal(t, "noop.js", r.Name)
	assert.Equal(t, "application/javascript", r.ContentType)
	assert.Equal(t, "(function() {})();", string(r.Content))

	r, ok = s.Scriptlet("set-constant")
	require.True(t, ok)

	assert.True(t, r.IsTemplate())
	assert.Equal(t, "window['foo'] = true;", r.Scriptlet([]string{"foo", "true"}))

	r, ok = s.Scriptlet("set.js")
	require.True(t, ok)
	assert.Equal(t, "set-constant.js", r.Name)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_AddBundle_errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		bundle string
	}{{
		name:   "not_json",
		bundle: "not json",
	}, {
		name:   "not_array",
		bundle: `{"name": "a"}`,
	}, {
		name:   "bad_base64",
		bundle: `[{"name": "a", "kind": {"mime": "text/plain"}, "content": "!!!"}]`,
	}, {
		name:   "bad_kind",
		bundle: `[{"name": "a", "kind": "binary", "content": ""}]`,
	}, {
		name:   "no_kind",
		bundle: `[{"name": "a", "content": ""}]`,
	}, {
		name:   "no_name",
		bundle: `[{"kind": "template", "content": ""}]`,
	}, {
		name:   "bad_encoding",
		bundle: `[{"name": "a", "kind": "template", "content": "", "encoding": "hex"}]`,
	}, {
		name:   "null_entry",
		bundle: `[null]`,
	}, {
		name: "partially_valid",
		bundle: `[{"name": "ok", "kind": "template", "content": "", "encoding": "raw"},
			{"name": "bad", "kind": "template", "content": "", "encoding": "hex"}]`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := resources.NewStore()
			err := s.AddBundle([]byte(tc.bundle))
			assert.ErrorIs(t, err, resources.ErrBadBundle)
			assert.Zero(t, s.Len())
		})
	}
}

func TestStore_Add(t *testing.T) {
	t.Parallel()

	s := resources.NewStore()
	require.NoError(t, s.AddBundle([]byte(testBundle)))

	orig, ok := s.Get("noop.js")
	require.True(t, ok)

	// Take over one of the aliases of noop.js.
	err := s.Add(&resources.Resource{
		Name:        "noopjs",
		ContentType: "text/plain",
		Content:     []byte("new"),
	})
	require.NoError(t, err)

	r, ok := s.Get("noopjs")
	require.True(t, ok)
	assert.Equal(t, "new", string(r.Content))

	r, ok = s.Get("abp-resource:blank-js")
	require.True(t, ok)
	assert.Equal(t, "noop.js", r.Name)
	assert.Equal(t, []string{"abp-resource:blank-js"}, r.Aliases)

	// The resource returned earlier is not modified.
	assert.Equal(t, []string{"noopjs", "abp-resource:blank-js"}, orig.Aliases)

	var names []string
	for _, res := range s.Resources() {
		names = append(names, res.Name)
	}

	assert.Equal(t, []string{"noop.js", "noopjs", "set-constant.js"}, names)

	err = s.Add(&resources.Resource{Name: "x"})
	assert.Error(t, err)

	err = s.Add(nil)
	assert.Error(t, err)
}

func TestStore_Clone(t *testing.T) {
	t.Parallel()

	s := resources.NewStore()
	require.NoError(t, s.AddBundle([]byte(testBundle)))

	c := s.Clone()
	require.NoError(t, c.Add(&resources.Resource{
		Name:        "extra",
		ContentType: "text/plain",
	}))

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 6, c.Len())
}
