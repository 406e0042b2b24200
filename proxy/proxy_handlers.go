package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/AdguardTeam/adblock/resources"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// onRequest handles the outgoing HTTP requests.
func (s *Server) onRequest(sess *gomitmproxy.Session) (req *http.Request, resp *http.Response) {
	r := sess.Request()
	session := NewSession(sess.ID(), r, s.resolve)
	sess.SetProp(sessionPropKey, session)

	if r.Method == http.MethodConnect {
		return nil, nil
	}

	resp = s.filterRequest(sess.ID(), session)
	if resp != nil {
		sess.SetProp(requestBlockedKey, true)
	}

	return nil, resp
}

// filterRequest returns the response for a blocked request or nil if the
// request should proceed.
func (s *Server) filterRequest(id string, session *Session) (resp *http.Response) {
	res := s.match(session.Request)
	if !res.Blocked {
		return nil
	}

	s.logger.Debug(
		"blocked",
		"id", id,
		"rule", res.Rule.RuleText,
		"url", session.Request.URL,
	)

	if res.Redirect != nil {
		return newRedirectResponse(session, res.Redirect.ContentType, res.Redirect.Content)
	}

	return newBlockedResponse(s.logger, session, res.Rule)
}

// onResponse handles all the responses.
func (s *Server) onResponse(sess *gomitmproxy.Session) (resp *http.Response) {
	if _, ok := sess.GetProp(requestBlockedKey); ok {
		return nil
	}

	v, ok := sess.GetProp(sessionPropKey)
	if !ok {
		s.logger.Error("session not found", "id", sess.ID())

		return nil
	}

	session, ok := v.(*Session)
	if !ok {
		s.logger.Error("session has wrong type", "id", sess.ID())

		return nil
	}

	session.SetResponse(sess.Response())

	// The request type may have changed once the response headers are known.
	if resp = s.filterRequest(sess.ID(), session); resp != nil {
		return resp
	}

	if session.Request.RequestType&(rules.TypeDocument|rules.TypeSubdocument) == 0 ||
		session.MediaType != "text/html" {
		return nil
	}

	err := s.filterHTML(session)
	if err != nil {
		s.logger.Error("filtering html", "id", sess.ID(), slogutil.KeyError, err)

		return proxyutil.NewErrorResponse(session.HTTPRequest, err)
	}

	return session.HTTPResponse
}

// newRedirectResponse creates an HTTP response with the redirect resource
// content.
func newRedirectResponse(session *Session, contentType string, content []byte) (resp *http.Response) {
	if contentType == resources.ContentTypeTemplate {
		contentType = "application/javascript"
	}

	resp = proxyutil.NewResponse(http.StatusOK, bytes.NewReader(content), session.HTTPRequest)
	resp.Header.Set("Content-Type", contentType)
	resp.Header.Set("Content-Length", strconv.Itoa(len(content)))
	resp.ContentLength = int64(len(content))

	return resp
}

// replaceBody sets the new body of resp.
func replaceBody(resp *http.Response, body []byte) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
}
