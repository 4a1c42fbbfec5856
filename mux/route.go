package mux

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// matcher is the interface implemented by route matchers.
type matcher interface {
	Match(*http.Request, *RouteMatch) bool
}

// parentRoute is the interface implemented by types that can serve as
// a route's parent (Router or Route via subrouter).
type parentRoute interface {
	getNamedRoutes() map[string]*Route
	getRegexpGroup() *routeRegexpGroup
	buildVars(map[string]string) map[string]string
}

// Route stores information to match a request and build URLs.
type Route struct {
	parent      parentRoute
	handler     http.Handler
	matchers    []matcher
	regexp      routeRegexpGroup
	name        string
	err         error
	namedRoutes map[string]*Route
	buildOnly   bool

	strictSlash    bool
	skipClean      bool
	useEncodedPath bool
	buildVarsFunc  BuildVarsFunc

	// staticCtx/staticCtxOnce cache the request context value for routes with
	// no variables, so setRouteContext allocates once per route rather than
	// once per request.
	staticCtx     *routeContext
	staticCtxOnce sync.Once
}

// Match matches this route against the request.
func (r *Route) Match(req *http.Request, match *RouteMatch) bool {
	if r.err != nil {
		return false
	}

	var methodMismatch bool

	// Check all matchers.
	for _, m := range r.matchers {
		if !m.Match(req, match) {
			if _, ok := m.(methodMatcher); ok {
				methodMismatch = true
				continue
			}
			if match.MatchErr == ErrMethodMismatch {
				methodMismatch = true
				continue
			}
			return false
		}
	}

	// Check path regexp.
	if r.regexp.path != nil {
		if !r.regexp.path.Match(req, match) {
			return false
		}
	}

	// If method didn't match but everything else did, record the mismatch.
	if methodMismatch {
		match.MatchErr = ErrMethodMismatch
		return false
	}

	// If the handler is a Router (subrouter), delegate to it. When no
	// sub-route matches and the subrouter has its own NotFoundHandler, that
	// handler, wrapped in the subrouter's middleware, answers the request.
	if r.handler != nil {
		if router, ok := r.handler.(*Router); ok {
			if router.Match(req, match) {
				return true
			}
			if match.MatchErr == ErrNotFound && router.NotFoundHandler != nil {
				match.Route = r
				match.Handler = router.applyMiddleware(router.NotFoundHandler)
				match.MatchErr = nil
				return true
			}
			return false
		}
	}

	match.Route = r
	match.Handler = r.handler
	r.regexp.setMatch(req, match, r)

	// Apply buildVarsFunc if set.
	if r.buildVarsFunc != nil {
		match.Vars = r.buildVarsFunc(match.Vars)
	}
	if r.parent != nil {
		match.Vars = r.parent.buildVars(match.Vars)
	}

	return true
}

// --- Matchers ---

// addMatcher adds a matcher to the route.
func (r *Route) addMatcher(m matcher) *Route {
	if r.err == nil {
		r.matchers = append(r.matchers, m)
	}
	return r
}

// addRegexpMatcher adds a regexp-based path matcher, prepending the parent's
// path template when this route is registered on a subrouter.
func (r *Route) addRegexpMatcher(tpl string, typ regexpType) error {
	if r.err != nil {
		return r.err
	}

	if r.parent != nil {
		if g := r.parent.getRegexpGroup(); g != nil && g.path != nil {
			tpl = strings.TrimRight(g.path.template, "/") + tpl
		}
	}

	rr, err := newRouteRegexp(tpl, typ, routeRegexpOptions{
		strictSlash:    r.strictSlash,
		useEncodedPath: r.useEncodedPath,
	})
	if err != nil {
		return err
	}

	r.regexp.path = rr
	return nil
}

// Handler sets a handler for the route.
func (r *Route) Handler(handler http.Handler) *Route {
	if r.err == nil {
		r.handler = handler
	}
	return r
}

// HandlerFunc sets a handler function for the route.
func (r *Route) HandlerFunc(f func(http.ResponseWriter, *http.Request)) *Route {
	return r.Handler(http.HandlerFunc(f))
}

// GetHandler returns the handler for the route, if any.
func (r *Route) GetHandler() http.Handler {
	return r.handler
}

// Name sets the name for the route, used to build URLs.
// Returns an error if the name was already used.
func (r *Route) Name(name string) *Route {
	if r.name != "" {
		r.err = fmt.Errorf("mux: route already has name %q, can't set %q", r.name, name)
		return r
	}
	if r.err == nil {
		if _, exists := r.namedRoutes[name]; exists {
			r.err = fmt.Errorf("mux: route name %q already used", name)
			return r
		}
		r.name = name
		if r.namedRoutes != nil {
			r.namedRoutes[name] = r
		}
	}
	return r
}

// GetName returns the name for the route, if any.
func (r *Route) GetName() string {
	return r.name
}

// Path adds a path matcher to the route per RFC 3986 Section 3.3.
func (r *Route) Path(tpl string) *Route {
	r.err = r.addRegexpMatcher(tpl, regexpTypePath)
	return r
}

// PathPrefix adds a path prefix matcher to the route per RFC 3986 Section 3.3.
func (r *Route) PathPrefix(tpl string) *Route {
	r.err = r.addRegexpMatcher(tpl, regexpTypePrefix)
	return r
}

// Methods adds a method matcher to the route. Methods are matched against
// the request method token defined in RFC 7231 Section 4.
// Calling Methods multiple times replaces the previous method matcher.
func (r *Route) Methods(methods ...string) *Route {
	for i, m := range methods {
		methods[i] = strings.ToUpper(m)
	}
	// Remove existing method matchers to allow replacing via chained calls.
	filtered := r.matchers[:0]
	for _, m := range r.matchers {
		if _, ok := m.(methodMatcher); !ok {
			filtered = append(filtered, m)
		}
	}
	r.matchers = filtered
	return r.addMatcher(methodMatcher(methods))
}

// BuildOnly sets the route to be used only for URL building,
// not for request matching.
func (r *Route) BuildOnly() *Route {
	r.buildOnly = true
	return r
}

// Subrouter creates a new Router for the route.
func (r *Route) Subrouter() *Router {
	router := &Router{
		parent:         r,
		namedRoutes:    r.namedRoutes,
		strictSlash:    r.strictSlash,
		skipClean:      r.skipClean,
		useEncodedPath: r.useEncodedPath,
	}
	r.handler = router
	return router
}

// SkipClean reports whether the path cleaning is disabled for this route.
func (r *Route) SkipClean() bool {
	return r.skipClean
}

// MatcherFunc adds a custom matcher function to the route.
func (r *Route) MatcherFunc(f MatcherFunc) *Route {
	return r.addMatcher(f)
}

// BuildVarsFunc adds a custom variable builder function to the route.
func (r *Route) BuildVarsFunc(f BuildVarsFunc) *Route {
	if r.buildVarsFunc != nil {
		old := r.buildVarsFunc
		r.buildVarsFunc = func(m map[string]string) map[string]string {
			return f(old(m))
		}
	} else {
		r.buildVarsFunc = f
	}
	return r
}

// --- URL Building ---

// URL builds a URL for the route per RFC 3986 Section 5.3 (component
// recomposition). It accepts a sequence of key/value pairs for the route
// variables. Returns an error if the route has no path template or if a
// variable is missing/invalid.
func (r *Route) URL(pairs ...string) (*url.URL, error) {
	return r.URLPath(pairs...)
}

// URLPath builds the path part of the URL per RFC 3986 Section 3.3.
func (r *Route) URLPath(pairs ...string) (*url.URL, error) {
	if r.err != nil {
		return nil, r.err
	}
	values, err := r.prepareVars(pairs...)
	if err != nil {
		return nil, err
	}
	if r.regexp.path == nil {
		return nil, errors.New("mux: route doesn't have a path")
	}
	path, err := r.regexp.path.url(values)
	if err != nil {
		return nil, err
	}
	return &url.URL{
		Path: path,
	}, nil
}

// prepareVars converts key/value pairs to a map and applies buildVarsFunc.
func (r *Route) prepareVars(pairs ...string) (map[string]string, error) {
	m, err := mapFromPairsToString(pairs...)
	if err != nil {
		return nil, err
	}
	return r.buildVarsFrom(m), nil
}

// buildVarsFrom applies the buildVarsFunc chain to the given vars.
func (r *Route) buildVarsFrom(m map[string]string) map[string]string {
	if r.buildVarsFunc != nil {
		m = r.buildVarsFunc(m)
	}
	if r.parent != nil {
		m = r.parent.buildVars(m)
	}
	return m
}

// --- Inspection ---

// GetPathTemplate returns the template for the route path, if defined.
func (r *Route) GetPathTemplate() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.regexp.path == nil {
		return "", errors.New("mux: route doesn't have a path")
	}
	return r.regexp.path.template, nil
}

// GetPathRegexp returns the compiled regexp for the route path, if defined.
func (r *Route) GetPathRegexp() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.regexp.path == nil {
		return "", errors.New("mux: route doesn't have a path")
	}
	return r.regexp.path.regexp.String(), nil
}

// GetMethods returns the methods the route matches against.
func (r *Route) GetMethods() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, m := range r.matchers {
		if methods, ok := m.(methodMatcher); ok {
			return []string(methods), nil
		}
	}
	return nil, errors.New("mux: route doesn't have methods")
}

// GetVarNames returns the variable names for the route.
func (r *Route) GetVarNames() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var varNames []string
	if r.regexp.path != nil {
		varNames = append(varNames, r.regexp.path.varsN...)
	}
	return varNames, nil
}

// GetError returns any error that was set on the route.
func (r *Route) GetError() error {
	return r.err
}

// --- parentRoute interface implementation ---

func (r *Route) getNamedRoutes() map[string]*Route {
	return r.namedRoutes
}

func (r *Route) getRegexpGroup() *routeRegexpGroup {
	return &r.regexp
}

func (r *Route) buildVars(m map[string]string) map[string]string {
	if r.buildVarsFunc != nil {
		m = r.buildVarsFunc(m)
	}
	if r.parent != nil {
		m = r.parent.buildVars(m)
	}
	return m
}

// --- Internal matchers ---

// methodMatcher matches the request method token (RFC 7231 Section 4)
// against a list of allowed methods.
type methodMatcher []string

func (m methodMatcher) Match(r *http.Request, _ *RouteMatch) bool {
	return matchInArray([]string(m), r.Method)
}
