// Package proxy implements a MITM proxy that uses the adblock engine to filter
// content: it blocks and redirects requests, adds the Content-Security-Policy
// directives, and injects the cosmetic filters into HTML pages.
package proxy

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AdguardTeam/adblock"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/gomitmproxy"
)

// Session property keys.
const (
	sessionPropKey    = "session"
	requestBlockedKey = "blocked"
)

// Config contains the MITM proxy configuration.
type Config struct {
	// Logger is used for logging the filtering decisions.  If nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// Engine is the initial filtering engine.  It must not be nil.
	Engine *adblock.Engine

	// DomainResolver is used to build the requests.  If nil,
	// [rules.DefaultDomainResolver] is used.
	DomainResolver rules.DomainResolver

	// ProxyConfig is the configuration of the MITM proxy.  The handlers are
	// set by the server.
	ProxyConfig gomitmproxy.Config
}

// String returns the configuration description.
func (c *Config) String() (s string) {
	b := &strings.Builder{}
	_, _ = fmt.Fprintf(b, "listen addr: %s\n", c.ProxyConfig.ListenAddr)
	_, _ = fmt.Fprintf(b, "mitm: %t\n", c.ProxyConfig.MITMConfig != nil)
	_, _ = fmt.Fprintf(b, "https proxy: %t\n", c.ProxyConfig.TLSConfig != nil)
	_, _ = fmt.Fprintf(b, "proxy auth: %t\n", c.ProxyConfig.Username != "")

	if c.ProxyConfig.APIHost != "" {
		_, _ = fmt.Fprintf(b, "api host: %s\n", c.ProxyConfig.APIHost)
	}

	return b.String()
}

// Server is a filtering MITM proxy.
type Server struct {
	logger      *slog.Logger
	resolve     rules.DomainResolver
	proxyServer *gomitmproxy.Proxy

	// mu protects engine.  The engine is read by the handlers and changed by
	// the tag and engine update methods.
	mu     *sync.RWMutex
	engine *adblock.Engine
}

// NewServer creates a new instance of the MITM server.
func NewServer(conf *Config) (s *Server, err error) {
	if conf.Engine == nil {
		return nil, errors.Error("no engine")
	}

	s = &Server{
		logger:  conf.Logger,
		resolve: conf.DomainResolver,
		mu:      &sync.RWMutex{},
		engine:  conf.Engine,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.resolve == nil {
		s.resolve = rules.DefaultDomainResolver
	}

	s.logger.Info("initializing proxy server", "config", conf.String())

	proxyConf := conf.ProxyConfig
	proxyConf.OnRequest = s.onRequest
	proxyConf.OnResponse = s.onResponse
	s.proxyServer = gomitmproxy.NewProxy(proxyConf)

	return s, nil
}

// Start starts the proxy server.
func (s *Server) Start() (err error) {
	return s.proxyServer.Start()
}

// Close stops the proxy server and releases the engine.
func (s *Server) Close() (err error) {
	s.proxyServer.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Close()
}

// SetEngine replaces the filtering engine, for example after the lists have
// been updated.  The previous engine is closed.
func (s *Server) SetEngine(e *adblock.Engine) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.engine
	s.engine = e

	return prev.Close()
}

// AddTag enables tag in the current engine.
func (s *Server) AddTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.AddTag(tag)
}

// RemoveTag disables tag in the current engine.
func (s *Server) RemoveTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.RemoveTag(tag)
}

// match matches r against the current engine.
func (s *Server) match(r *rules.Request) (res *adblock.MatchResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.engine.MatchRequest(r)
}

// documentFilters returns the CSP directives and the cosmetic resources for
// the page of the session.
func (s *Server) documentFilters(session *Session) (csp string, cr *adblock.CosmeticResources) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	csp = s.engine.RequestCSPDirectives(session.Request)
	cr = s.engine.URLCosmeticResources(session.Request.URL)

	return csp, cr
}
