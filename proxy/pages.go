package proxy

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// blockedPageTmpl is the template of the page shown instead of a blocked
// document.
var blockedPageTmpl = template.Must(template.New("blocked").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Blocked</title></head>
<body>
<h1>Request to {{.Hostname}} is blocked</h1>
<p>Rule: <code>{{.RuleText}}</code></p>
</body>
</html>
`))

// blockedPageParameters are the parameters of blockedPageTmpl.
type blockedPageParameters struct {
	Hostname string
	RuleText string
}

// buildBlockedPage builds the blocked page content.
func buildBlockedPage(logger *slog.Logger, session *Session, f *rules.NetworkRule) (page []byte) {
	params := blockedPageParameters{
		Hostname: session.Request.Hostname,
		RuleText: f.Text(),
	}

	data := &bytes.Buffer{}
	err := blockedPageTmpl.Execute(data, params)
	if err != nil {
		logger.Error("building blocked page", slogutil.KeyError, err)

		return nil
	}

	return data.Bytes()
}

// newBlockedResponse creates an HTTP response for a blocked request.  Only
// documents get a page, other requests get an empty body.
func newBlockedResponse(logger *slog.Logger, session *Session, f *rules.NetworkRule) (resp *http.Response) {
	var body []byte
	if session.Request.RequestType&(rules.TypeDocument|rules.TypeSubdocument) != 0 {
		body = buildBlockedPage(logger, session, f)
	}

	resp = proxyutil.NewResponse(http.StatusForbidden, nil, session.HTTPRequest)
	resp.Close = true
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	replaceBody(resp, body)

	return resp
}
