package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AdguardTeam/adblock"
	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// maxHTMLSize is the maximum size of an HTML body the proxy modifies.
const maxHTMLSize = 8 << 20

// filterHTML adds the CSP directives to the response of the session and
// injects the cosmetic filters into its body.
func (s *Server) filterHTML(session *Session) (err error) {
	resp := session.HTTPResponse
	csp, cr := s.documentFilters(session)
	if csp != "" {
		resp.Header.Add("Content-Security-Policy", csp)
	}

	injection := buildInjection(cr)
	if injection == "" || !isIdentityEncoding(resp) {
		return nil
	}

	enc := bodyEncoding(session.Charset)
	body, ok, err := readBody(resp, enc)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	} else if !ok {
		return nil
	}

	body = injectIntoHead(body, injection)

	modified, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(body))
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}

	replaceBody(resp, modified)

	return nil
}

// isIdentityEncoding returns true if the body of resp is not compressed.
func isIdentityEncoding(resp *http.Response) (ok bool) {
	ce := strings.ToLower(resp.Header.Get("Content-Encoding"))

	return ce == "" || ce == "identity"
}

// bodyEncoding returns the encoding for the charset.  Pages without a known
// charset are treated as Latin-1, which keeps all bytes intact.
func bodyEncoding(charset string) (enc encoding.Encoding) {
	if charset == "" {
		return charmap.ISO8859_1
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return charmap.ISO8859_1
	}

	return enc
}

// readBody reads and decodes the body of resp.  If the body is too large, it
// returns false and leaves the body readable.
func readBody(resp *http.Response, enc encoding.Encoding) (s string, ok bool, err error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLSize+1))
	if err != nil {
		return "", false, errors.WithDeferred(err, resp.Body.Close())
	}

	if len(raw) > maxHTMLSize {
		resp.Body = &readCloser{
			Reader: io.MultiReader(bytes.NewReader(raw), resp.Body),
			Closer: resp.Body,
		}

		return "", false, nil
	}

	err = resp.Body.Close()
	if err != nil {
		return "", false, err
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false, err
	}

	return string(decoded), true, nil
}

// readCloser combines a reader and a closer.
type readCloser struct {
	io.Reader
	io.Closer
}

// buildInjection returns the HTML code applying the cosmetic filters.
func buildInjection(cr *adblock.CosmeticResources) (html string) {
	b := &strings.Builder{}
	if cr.InjectStylesheet != "" {
		b.WriteString("<style>\n")
		b.WriteString(strings.ReplaceAll(cr.InjectStylesheet, "</", `<\/`))
		b.WriteString("</style>\n")
	}

	if cr.InjectedScript != "" {
		b.WriteString("<script>\n")
		b.WriteString(strings.ReplaceAll(cr.InjectedScript, "</", `<\/`))
		b.WriteString("</script>\n")
	}

	return b.String()
}

// injectIntoHead inserts injection right after the opening head tag of body,
// or at the beginning of body if there is none.
func injectIntoHead(body, injection string) (modified string) {
	end := headEnd(body)
	if end < 0 {
		return injection + body
	}

	return body[:end] + injection + body[end:]
}

// headEnd returns the offset right after the opening head tag of body or -1 if
// the document has none before its body.
func headEnd(body string) (offset int) {
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return -1
		}

		offset += len(z.Raw())
		if tt != html.StartTagToken {
			continue
		}

		name, _ := z.TagName()
		switch atom.Lookup(name) {
		case atom.Head:
			return offset
		case atom.Body:
			return -1
		}
	}
}
