// Package resources contains the resources that filtering rules refer to by
// key: the redirect payloads of $redirect rules and the scriptlets of
// "##+js(...)" rules.
package resources

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrBadBundle is returned when a resource bundle cannot be parsed.
const ErrBadBundle errors.Error = "bad resource bundle"

// ContentTypeTemplate is the content type of the scriptlet templates, the
// resources with "{{1}}"-like placeholders for the scriptlet arguments.
const ContentTypeTemplate = "template"

// Resource is a named payload.  It is immutable once added to a [Store].
type Resource struct {
	// Name is the primary key of the resource.
	Name string

	// ContentType is the MIME type of the resource or [ContentTypeTemplate].
	ContentType string

	// Aliases are the additional keys of the resource.
	Aliases []string

	// Content is the decoded payload.
	Content []byte
}

// IsTemplate returns true if r is a scriptlet template.
func (r *Resource) IsTemplate() (ok bool) {
	return r.ContentType == ContentTypeTemplate
}

// DataURL returns the payload of r as a "data:" URL, which is how redirect
// resources are handed to the consumers.
func (r *Resource) DataURL() (u string) {
	ct := r.ContentType
	if r.IsTemplate() {
		ct = "application/javascript"
	}

	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(r.Content)
}

// Scriptlet returns the script of the resource called with args.  The
// placeholders "{{1}}" to "{{n}}" of templates are replaced with the
// corresponding arguments escaped for a JavaScript string literal, the
// placeholders without an argument are replaced with an empty string.
func (r *Resource) Scriptlet(args []string) (script string) {
	script = string(r.Content)
	if !r.IsTemplate() {
		return script
	}

	var sb strings.Builder
	sb.Grow(len(script))
	for {
		start := strings.Index(script, "{{")
		if start == -1 {
			break
		}

		end := strings.Index(script[start:], "}}")
		if end == -1 {
			break
		}

		end += start
		n, err := strconv.Atoi(script[start+2 : end])
		if err != nil || n < 1 {
			sb.WriteString(script[:start+2])
			script = script[start+2:]

			continue
		}

		sb.WriteString(script[:start])
		if n <= len(args) {
			sb.WriteString(escapeJSString(args[n-1]))
		}

		script = script[end+2:]
	}

	sb.WriteString(script)

	return sb.String()
}

// jsStringReplacer escapes the characters that could end a JavaScript string
// literal.
var jsStringReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"</", `<\/`,
)

// escapeJSString escapes s to be used inside of a JavaScript string literal.
func escapeJSString(s string) (escaped string) {
	return jsStringReplacer.Replace(s)
}

// clone returns a deep copy of r.
func (r *Resource) clone() (c *Resource) {
	return &Resource{
		Name:        r.Name,
		ContentType: r.ContentType,
		Aliases:     slices.Clone(r.Aliases),
		Content:     slices.Clone(r.Content),
	}
}

// validate returns an error if r cannot be added to a store.
func (r *Resource) validate() (err error) {
	switch {
	case r == nil:
		return errors.Error("resource is nil")
	case r.Name == "":
		return errors.Error("empty resource name")
	case r.ContentType == "":
		return fmt.Errorf("resource %q: empty content type", r.Name)
	case slices.Contains(r.Aliases, ""):
		return fmt.Errorf("resource %q: empty alias", r.Name)
	default:
		return nil
	}
}
