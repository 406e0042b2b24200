package resources

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Encodings of the bundle entries content.
const (
	encodingBase64 = "base64"
	encodingRaw    = "raw"
)

// bundleEntry is a single resource of a JSON bundle:
//
//	{
//	    "name": "noop.js",
//	    "aliases": ["noopjs"],
//	    "kind": {"mime": "application/javascript"},
//	    "content": "KGZ1bmN0aW9uKCkge30pKCk7",
//	    "encoding": "base64"
//	}
//
// kind is either an object with the MIME type or the "template" string.  The
// default encoding is base64.
type bundleEntry struct {
	Kind     bundleKind `json:"kind"`
	Name     string     `json:"name"`
	Content  string     `json:"content"`
	Encoding string     `json:"encoding"`
	Aliases  []string   `json:"aliases"`
}

// bundleKind is the kind of a bundle entry, that is its content type.
type bundleKind string

// type check
var _ json.Unmarshaler = (*bundleKind)(nil)

// UnmarshalJSON implements the [json.Unmarshaler] interface for *bundleKind.
func (k *bundleKind) UnmarshalJSON(b []byte) (err error) {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		var obj struct {
			MIME string `json:"mime"`
		}

		err = json.Unmarshal(b, &obj)
		if err != nil {
			return err
		}

		*k = bundleKind(obj.MIME)

		return nil
	}

	var s string
	err = json.Unmarshal(b, &s)
	if err != nil {
		return err
	}

	if s != ContentTypeTemplate {
		return fmt.Errorf("unknown kind %q", s)
	}

	*k = bundleKind(s)

	return nil
}

// toResource validates the entry and decodes its content.
func (e *bundleEntry) toResource() (r *Resource, err error) {
	var content []byte
	switch e.Encoding {
	case "", encodingBase64:
		content, err = base64.StdEncoding.DecodeString(e.Content)
		if err != nil {
			return nil, fmt.Errorf("resource %q: decoding content: %w", e.Name, err)
		}
	case encodingRaw:
		content = []byte(e.Content)
	default:
		return nil, fmt.Errorf("resource %q: unknown encoding %q", e.Name, e.Encoding)
	}

	r = &Resource{
		Name:        e.Name,
		ContentType: string(e.Kind),
		Aliases:     e.Aliases,
		Content:     content,
	}

	return r, r.validate()
}

// ParseBundle parses a JSON resource bundle.  All errors are wrapped with
// [ErrBadBundle].
func ParseBundle(data []byte) (rs []*Resource, err error) {
	var entries []*bundleEntry
	err = json.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBundle, err)
	}

	rs = make([]*Resource, 0, len(entries))
	for i, e := range entries {
		if e == nil {
			return nil, fmt.Errorf("%w: entry at index %d: null", ErrBadBundle, i)
		}

		var r *Resource
		r, err = e.toResource()
		if err != nil {
			return nil, fmt.Errorf("%w: entry at index %d: %w", ErrBadBundle, i, err)
		}

		rs = append(rs, r)
	}

	return rs, nil
}

// AddBundle parses the JSON resource bundle and adds all its resources to the
// store.  If the bundle is invalid, the store is left unchanged.
func (s *Store) AddBundle(data []byte) (err error) {
	rs, err := ParseBundle(data)
	if err != nil {
		return err
	}

	for _, r := range rs {
		s.add(r)
	}

	return nil
}
