// Package adblock contains the ad-blocking filter rule engine: it compiles the
// filter lists and answers whether a network request should be blocked and
// which cosmetic filters apply to a page.
package adblock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/resources"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Engine is the filtering engine with all the loaded rules.  The matching
// methods are safe for concurrent use, but the methods changing the engine,
// like [Engine.AddTag] or [Engine.AddResource], must not be called
// concurrently with any other method.
type Engine struct {
	logger    *slog.Logger
	resolve   rules.DomainResolver
	storage   *filterlist.RuleStorage
	network   *NetworkEngine
	cosmetic  *CosmeticEngine
	resources *resources.Store
	tags      *Tags
	metadata  *filterlist.Metadata

	// generation is incremented by every change of the engine.
	generation uint64

	closed bool
}

// NewEngine compiles the lists of fs into a new *Engine.  fs can't be used
// after that.  conf may be nil, in which case the defaults are used.  If
// conf.Strict is true, any unparseable line fails the compilation and the
// returned error contains all of them.
func NewEngine(fs *FilterSet, conf *Config) (e *Engine, err error) {
	conf = conf.withDefaults()

	lists, md, err := fs.consume()
	if err != nil {
		return nil, err
	}

	s, err := filterlist.NewRuleStorage(lists, conf.MaxRuleListSize)
	if err != nil {
		return nil, fmt.Errorf("creating rule storage: %w", err)
	}

	err = checkParseErrors(context.TODO(), conf, s.ParseErrors())
	if err != nil {
		return nil, err
	}

	e = newEngine(conf, s, resources.NewStore(), newTags(), md)
	e.logger.Info(
		"engine compiled",
		"lists", len(lists),
		"network_rules", e.network.RulesCount,
		"cosmetic_rules", e.cosmetic.RulesCount,
		"skipped", len(s.ParseErrors()),
	)

	return e, nil
}

// NewEngineFromRules is a helper that compiles a single filter list.
func NewEngineFromRules(text string, conf *Config) (e *Engine, err error) {
	fs := NewFilterSet()
	_, err = fs.AddFilterList(text)
	if err != nil {
		// Should never happen, since the set is new.
		panic(err)
	}

	return NewEngine(fs, conf)
}

// NewEngineWithMetadata is like [NewEngineFromRules] but also returns the
// metadata declared by the list.
func NewEngineWithMetadata(text string, conf *Config) (e *Engine, md *filterlist.Metadata, err error) {
	e, err = NewEngineFromRules(text, conf)
	if err != nil {
		return nil, nil, err
	}

	return e, e.Metadata(), nil
}

// checkParseErrors logs the errors about the skipped lines.  In the strict
// mode it returns them joined.
func checkParseErrors(ctx context.Context, conf *Config, parseErrs []*filterlist.ParseError) (err error) {
	if len(parseErrs) == 0 {
		return nil
	}

	if conf.Strict {
		errs := make([]error, 0, len(parseErrs))
		for _, perr := range parseErrs {
			errs = append(errs, perr)
		}

		return errors.Annotate(errors.Join(errs...), "parsing lists: %w")
	}

	if !conf.Logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	for _, perr := range parseErrs {
		conf.Logger.DebugContext(
			ctx,
			"skipping rule",
			"list_id", perr.ListID,
			"line", perr.Line,
			slogutil.KeyError, perr.Err,
		)
	}

	return nil
}

// newEngine builds the lookup structures over s.
func newEngine(
	conf *Config,
	s *filterlist.RuleStorage,
	store *resources.Store,
	tags *Tags,
	md *filterlist.Metadata,
) (e *Engine) {
	if md == nil {
		md = &filterlist.Metadata{}
	}

	return &Engine{
		logger:    conf.Logger,
		resolve:   conf.DomainResolver,
		storage:   s,
		network:   NewNetworkEngine(s),
		cosmetic:  NewCosmeticEngine(s),
		resources: store,
		tags:      tags,
		metadata:  md,
	}
}

// MatchResult is the result of matching a network request.
type MatchResult struct {
	// Redirect is the resource the request should be redirected to.  It is
	// nil if the request isn't blocked or the blocking rule has no $redirect
	// modifier or its resource is missing.
	Redirect *resources.Resource

	// Rule is the rule that decided the verdict, see
	// [rules.MatchingResult.BasicRule].
	Rule *rules.NetworkRule

	// Blocked is true if the request should be blocked.
	Blocked bool

	// Exception is true if an exception rule suppressed a blocking rule.
	Exception bool

	// Important is true if the request is blocked by an $important rule.
	Important bool
}

// RedirectDataURL returns the data URL of the redirect resource or an empty
// string if there is none.
func (r *MatchResult) RedirectDataURL() (u string) {
	if r.Redirect == nil {
		return ""
	}

	return r.Redirect.DataURL()
}

// Match matches a request for url made by a page at sourceHost.  host is the
// hostname of url, it is extracted from url when empty.  resourceType is
// either a filter modifier name like "script" or a webRequest type name like
// "main_frame".
func (e *Engine) Match(url, host, sourceHost string, thirdParty bool, resourceType string) (res *MatchResult) {
	return e.MatchRequest(e.newRequest(url, host, sourceHost, thirdParty, resourceType))
}

// newRequest creates a *rules.Request using the engine's domain resolver.
func (e *Engine) newRequest(
	url string,
	host string,
	sourceHost string,
	thirdParty bool,
	resourceType string,
) (r *rules.Request) {
	t, _ := rules.ParseRequestType(resourceType)

	return rules.NewHostsRequest(url, host, sourceHost, thirdParty, t, e.resolve)
}

// MatchRequest matches r against the network rules.
func (e *Engine) MatchRequest(r *rules.Request) (res *MatchResult) {
	mr := e.matchingResult(r)
	res = &MatchResult{
		Rule:      mr.BasicRule,
		Blocked:   mr.IsBlocked(),
		Exception: mr.IsException(),
		Important: mr.IsImportant(),
	}

	for _, rule := range mr.RedirectRules() {
		var ok bool
		res.Redirect, ok = e.resources.Get(rule.RedirectKey)
		if ok {
			break
		}

		e.logger.Debug("redirect resource not found", "key", rule.RedirectKey, "rule", rule.RuleText)
	}

	return res
}

// matchingResult returns the matching result over the rules visible with the
// current tags.
func (e *Engine) matchingResult(r *rules.Request) (mr *rules.MatchingResult) {
	matched := e.network.MatchAll(r)

	visible := matched[:0]
	for _, rule := range matched {
		if e.tags.isVisible(rule.Tag) {
			visible = append(visible, rule)
		}
	}

	return rules.NewMatchingResult(visible)
}

// GetCSPDirectives returns the Content-Security-Policy directives that should
// be added to the response for the request, joined with commas.  Only the
// document and subdocument requests get any.
func (e *Engine) GetCSPDirectives(
	url string,
	host string,
	sourceHost string,
	thirdParty bool,
	resourceType string,
) (csp string) {
	return e.RequestCSPDirectives(e.newRequest(url, host, sourceHost, thirdParty, resourceType))
}

// RequestCSPDirectives is like [Engine.GetCSPDirectives] but takes an already
// built request.  r must not be nil.
func (e *Engine) RequestCSPDirectives(r *rules.Request) (csp string) {
	if r.RequestType&(rules.TypeDocument|rules.TypeSubdocument) == 0 {
		return ""
	}

	return strings.Join(e.matchingResult(r).CSPDirectives(), ",")
}

// HiddenClassIDSelectors returns the generic hiding selectors for the elements
// with the given classes and ids, except the ones in exceptions.  It is meant
// to be called for the classes and ids found on a page, unless the page's
// cosmetic resources have [CosmeticResources.Generichide] set.
func (e *Engine) HiddenClassIDSelectors(classes, ids, exceptions []string) (selectors []string) {
	return e.cosmetic.HiddenClassIDSelectors(classes, ids, exceptions)
}

// AddTag enables tag.
func (e *Engine) AddTag(tag string) {
	if e.tags.Enable(tag) {
		e.generation++
	}
}

// RemoveTag disables tag.
func (e *Engine) RemoveTag(tag string) {
	if e.tags.Disable(tag) {
		e.generation++
	}
}

// TagExists returns true if tag is enabled.
func (e *Engine) TagExists(tag string) (ok bool) {
	return e.tags.Has(tag)
}

// Tags returns the sorted enabled tags.
func (e *Engine) Tags() (tags []string) {
	return e.tags.List()
}

// AddResource adds a resource with the given key, content type, and content.
// Content type "template" means a scriptlet template.  A resource with the
// same key is replaced.
func (e *Engine) AddResource(key, contentType string, content []byte) (err error) {
	err = e.resources.Add(&resources.Resource{
		Name:        key,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return fmt.Errorf("adding resource %q: %w", key, err)
	}

	e.generation++

	return nil
}

// AddResources adds the resources from a JSON bundle, see
// [resources.ParseBundle].  If the bundle is invalid, none of its resources
// are added.
func (e *Engine) AddResources(bundle []byte) (err error) {
	err = e.resources.AddBundle(bundle)
	if err != nil {
		return fmt.Errorf("adding resources: %w", err)
	}

	e.generation++

	return nil
}

// Resources returns a copy of the resource store of the engine.  Changing it
// doesn't affect the engine, use [Engine.AddResource] for that.
func (e *Engine) Resources() (s *resources.Store) {
	return e.resources.Clone()
}

// Metadata returns the metadata of the first list that declares any.  It is
// never nil.
func (e *Engine) Metadata() (md *filterlist.Metadata) {
	return e.metadata
}

// ParseErrors returns the errors about the lines skipped during the
// compilation.  An engine restored from a snapshot has none.
func (e *Engine) ParseErrors() (errs []*filterlist.ParseError) {
	return e.storage.ParseErrors()
}

// Generation returns the number of changes made to the engine since it was
// created.
func (e *Engine) Generation() (gen uint64) {
	return e.generation
}

// RulesCount returns the number of the network and cosmetic rules.
func (e *Engine) RulesCount() (network, cosmetic int) {
	return e.network.RulesCount, e.cosmetic.RulesCount
}

// Close releases the rules of the engine.  A closed engine matches nothing.
// It is safe to call Close several times.
func (e *Engine) Close() (err error) {
	if e.closed {
		return nil
	}

	e.closed = true
	err = e.storage.Close()

	// Rebuild the lookup structures over the emptied storage, since some of
	// them keep the rules themselves.
	e.network = NewNetworkEngine(e.storage)
	e.cosmetic = NewCosmeticEngine(e.storage)

	return err
}
