package proxy

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/AdguardTeam/adblock/rules"
)

// Session contains the data necessary to filter a request and its response.
// It is updated during the request lifetime:
//
//  1. Once the request headers are received, the request type is assumed from
//     the URL and the "Accept" header, and the request is matched.  A blocked
//     request is answered right away.
//  2. Once the response headers are received, the request type is known for
//     sure, so the request is matched again.  An HTML document gets the
//     cosmetic filters injected.
type Session struct {
	// Request is the filtering request.
	Request *rules.Request

	// HTTPRequest is the proxied HTTP request.
	HTTPRequest *http.Request

	// HTTPResponse is the proxied HTTP response, nil until it's received.
	HTTPResponse *http.Response

	// ID is the session identifier.
	ID string

	// MediaType is the media type of the response.
	MediaType string

	// Charset is the charset of the response, if the response declares it.
	Charset string
}

// NewSession creates a new *Session for the HTTP request req with the given
// unique identifier.  resolve must not be nil.
func NewSession(id string, req *http.Request, resolve rules.DomainResolver) (s *Session) {
	requestType := assumeRequestType(req, nil)

	return &Session{
		ID:          id,
		Request:     rules.NewRequestWithResolver(req.URL.String(), req.Referer(), requestType, resolve),
		HTTPRequest: req,
	}
}

// SetResponse sets the response of this session.  It also updates the request
// type.
func (s *Session) SetResponse(res *http.Response) {
	s.HTTPResponse = res
	s.Request.RequestType = assumeRequestType(s.HTTPRequest, s.HTTPResponse)

	mediaType, params, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	s.MediaType = mediaType
	s.Charset = strings.ToLower(params["charset"])
}

// assumeRequestType assumes the request type from what we know at this point.
// res is nil if the response hasn't been received yet.
func assumeRequestType(req *http.Request, res *http.Response) (t rules.RequestType) {
	if res != nil {
		contentType := res.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(contentType)
		t = assumeRequestTypeFromMediaType(mediaType)
	} else {
		acceptHeader := req.Header.Get("Accept")
		t = assumeRequestTypeFromMediaType(acceptHeader)
		if t == rules.TypeOther {
			t = assumeRequestTypeFromURL(req.URL)
		}
	}

	if t == rules.TypeDocument && isFrameDest(req.Header.Get("Sec-Fetch-Dest")) {
		return rules.TypeSubdocument
	}

	return t
}

// isFrameDest returns true if the Sec-Fetch-Dest header value dest means that
// the document is loaded into a frame.
func isFrameDest(dest string) (ok bool) {
	return dest == "iframe" || dest == "frame"
}

// mediaTypePrefixes maps the media type prefixes to the request types.  The
// first matching prefix wins.
var mediaTypePrefixes = []struct {
	prefix string
	t      rules.RequestType
}{
	{prefix: "text/html", t: rules.TypeDocument},
	{prefix: "application/xhtml", t: rules.TypeDocument},
	{prefix: "text/css", t: rules.TypeStylesheet},
	{prefix: "application/javascript", t: rules.TypeScript},
	{prefix: "application/x-javascript", t: rules.TypeScript},
	{prefix: "text/javascript", t: rules.TypeScript},
	{prefix: "image/", t: rules.TypeImage},
	{prefix: "application/x-shockwave-flash", t: rules.TypeObject},
	{prefix: "application/font", t: rules.TypeFont},
	{prefix: "application/vnd.ms-fontobject", t: rules.TypeFont},
	{prefix: "application/x-font-", t: rules.TypeFont},
	{prefix: "font/", t: rules.TypeFont},
	{prefix: "audio/", t: rules.TypeMedia},
	{prefix: "video/", t: rules.TypeMedia},
	{prefix: "application/json", t: rules.TypeXmlhttprequest},
}

// assumeRequestTypeFromMediaType returns the request type for the media type
// or the value of the "Accept" header.
func assumeRequestTypeFromMediaType(mediaType string) (t rules.RequestType) {
	mediaType = strings.ToLower(mediaType)
	for _, p := range mediaTypePrefixes {
		if strings.HasPrefix(mediaType, p.prefix) {
			return p.t
		}
	}

	return rules.TypeOther
}

// fileExtensions maps the URL path extensions to the request types.
var fileExtensions = map[string]rules.RequestType{
	// $script
	".js":     rules.TypeScript,
	".vbs":    rules.TypeScript,
	".coffee": rules.TypeScript,
	// $image
	".jpg":  rules.TypeImage,
	".jpeg": rules.TypeImage,
	".gif":  rules.TypeImage,
	".png":  rules.TypeImage,
	".tiff": rules.TypeImage,
	".psd":  rules.TypeImage,
	".ico":  rules.TypeImage,
	// $stylesheet
	".css":  rules.TypeStylesheet,
	".less": rules.TypeStylesheet,
	// $object
	".jar": rules.TypeObject,
	".swf": rules.TypeObject,
	// $media
	".wav":   rules.TypeMedia,
	".mp3":   rules.TypeMedia,
	".mp4":   rules.TypeMedia,
	".avi":   rules.TypeMedia,
	".flv":   rules.TypeMedia,
	".m3u":   rules.TypeMedia,
	".webm":  rules.TypeMedia,
	".mpeg":  rules.TypeMedia,
	".3gp":   rules.TypeMedia,
	".3g2":   rules.TypeMedia,
	".3gpp":  rules.TypeMedia,
	".3gpp2": rules.TypeMedia,
	".ogg":   rules.TypeMedia,
	".mov":   rules.TypeMedia,
	".qt":    rules.TypeMedia,
	".vbm":   rules.TypeMedia,
	".mkv":   rules.TypeMedia,
	".gifv":  rules.TypeMedia,
	// $font
	".ttf":   rules.TypeFont,
	".otf":   rules.TypeFont,
	".woff":  rules.TypeFont,
	".woff2": rules.TypeFont,
	".eot":   rules.TypeFont,
	// $xmlhttprequest
	".json": rules.TypeXmlhttprequest,
}

// assumeRequestTypeFromURL assumes the request type from the file extension.
func assumeRequestTypeFromURL(u *url.URL) (t rules.RequestType) {
	t, ok := fileExtensions[strings.ToLower(path.Ext(u.Path))]
	if !ok {
		return rules.TypeOther
	}

	return t
}
