package voidhttp

import (
	"fmt"
	"regexp"
	"strings"
)

// pathMatchKind identifies which mutually exclusive path predicate a
// route carries: exact, prefix, or regexp, never more than one.
type pathMatchKind int

const (
	pathMatchNone pathMatchKind = iota
	pathMatchExact
	pathMatchPrefix
	pathMatchRegexp
)

type pathCountKind int

const (
	pathCountNone pathCountKind = iota
	pathCountMin
	pathCountExact
	pathCountMax
)

type hostMatchKind int

const (
	hostMatchNone hostMatchKind = iota
	hostMatchExact
	hostMatchSuffix
)

// queryPredicate checks for a query key, optionally with a required value.
type queryPredicate struct {
	key        string
	value      string
	valueCheck bool
}

// headerPredicate checks for a header key, optionally with a required
// value.
type headerPredicate struct {
	key        string
	value      string
	valueCheck bool
}

// Route is one entry in a Router's table: a conjunction of predicates and
// a Handler, built via RouteBuilder.
type Route struct {
	methods map[string]bool

	pathKind  pathMatchKind
	pathExact string
	pathRegex *regexp.Regexp

	countKind pathCountKind
	countN    int

	hostKind   hostMatchKind
	hostValue  string

	queries []queryPredicate
	headers []headerPredicate

	handler Handler
}

// RouteBuilder incrementally configures a Route, enforcing the same
// mutual-exclusion rules as options.cpp's setters (which throw
// std::runtime_error on a second, conflicting call).
type RouteBuilder struct {
	route *Route
	err   error
}

// NewRoute starts building a route bound to handler.
func NewRoute(handler Handler) *RouteBuilder {
	return &RouteBuilder{route: &Route{handler: handler}}
}

func (b *RouteBuilder) fail(err error) *RouteBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Methods restricts the route to the given HTTP methods (case-sensitive
// tokens, matched exactly per RFC 7230).
func (b *RouteBuilder) Methods(methods ...string) *RouteBuilder {
	if b.route.methods == nil {
		b.route.methods = make(map[string]bool, len(methods))
	}
	for _, m := range methods {
		b.route.methods[m] = true
	}
	return b
}

// ExactPath matches the request path exactly.
func (b *RouteBuilder) ExactPath(path string) *RouteBuilder {
	if b.route.pathKind != pathMatchNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.pathKind = pathMatchExact
	b.route.pathExact = path
	return b
}

// PrefixPath matches any request path with this prefix.
func (b *RouteBuilder) PrefixPath(prefix string) *RouteBuilder {
	if b.route.pathKind != pathMatchNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.pathKind = pathMatchPrefix
	b.route.pathExact = prefix
	return b
}

// RegexpPath matches the request path against pattern (anchored
// internally by the caller's pattern, not implicitly).
func (b *RouteBuilder) RegexpPath(pattern string) *RouteBuilder {
	if b.route.pathKind != pathMatchNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return b.fail(err)
	}
	b.route.pathKind = pathMatchRegexp
	b.route.pathRegex = re
	return b
}

// MinPathComponents requires at least n non-empty path segments.
func (b *RouteBuilder) MinPathComponents(n int) *RouteBuilder {
	if b.route.countKind != pathCountNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.countKind = pathCountMin
	b.route.countN = n
	return b
}

// ExactPathComponents requires exactly n non-empty path segments.
func (b *RouteBuilder) ExactPathComponents(n int) *RouteBuilder {
	if b.route.countKind != pathCountNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.countKind = pathCountExact
	b.route.countN = n
	return b
}

// MaxPathComponents requires at most n non-empty path segments.
func (b *RouteBuilder) MaxPathComponents(n int) *RouteBuilder {
	if b.route.countKind != pathCountNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.countKind = pathCountMax
	b.route.countN = n
	return b
}

// HostExact requires the request's Host header, with any ":port" suffix
// stripped, to equal host exactly, per options.cpp's
// host.find_first_of(':') truncation before comparison.
func (b *RouteBuilder) HostExact(host string) *RouteBuilder {
	if b.route.hostKind != hostMatchNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.hostKind = hostMatchExact
	b.route.hostValue = host
	return b
}

// HostSuffix requires the request's Host header, with any ":port" suffix
// stripped, to end with suffix.
func (b *RouteBuilder) HostSuffix(suffix string) *RouteBuilder {
	if b.route.hostKind != hostMatchNone {
		return b.fail(ErrAmbiguousPredicate)
	}
	b.route.hostKind = hostMatchSuffix
	b.route.hostValue = suffix
	return b
}

// Query requires the query string to contain key, optionally with value.
func (b *RouteBuilder) Query(key string, value ...string) *RouteBuilder {
	p := queryPredicate{key: key}
	if len(value) > 0 {
		p.value = value[0]
		p.valueCheck = true
	}
	b.route.queries = append(b.route.queries, p)
	return b
}

// Header requires the request to carry header key, optionally with value.
func (b *RouteBuilder) Header(key string, value ...string) *RouteBuilder {
	p := headerPredicate{key: key}
	if len(value) > 0 {
		p.value = value[0]
		p.valueCheck = true
	}
	b.route.headers = append(b.route.headers, p)
	return b
}

// Build finalizes the route, returning any predicate-conflict error
// recorded during configuration.
func (b *RouteBuilder) Build() (*Route, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.route, nil
}

// stripPort removes a trailing ":port" from a Host header value, matching
// options.cpp's host.find_first_of(':') truncation (IPv6 literals are out
// of scope, as they are for the original).
func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}

// check reports whether req satisfies every predicate configured on the
// route, evaluating groups in the same order as options.cpp's check():
// methods, path-component count, path match, host, query, headers.
func (rt *Route) check(req *Request) bool {
	if rt.methods != nil && !rt.methods[req.Method] {
		return false
	}

	if rt.countKind != pathCountNone {
		n := len(req.URL.PathComponents())
		switch rt.countKind {
		case pathCountMin:
			if n < rt.countN {
				return false
			}
		case pathCountExact:
			if n != rt.countN {
				return false
			}
		case pathCountMax:
			if n > rt.countN {
				return false
			}
		}
	}

	switch rt.pathKind {
	case pathMatchExact:
		if req.URL.Path != rt.pathExact {
			return false
		}
	case pathMatchPrefix:
		if !strings.HasPrefix(req.URL.Path, rt.pathExact) {
			return false
		}
	case pathMatchRegexp:
		if !rt.pathRegex.MatchString(req.URL.Path) {
			return false
		}
	}

	if rt.hostKind != hostMatchNone {
		host := stripPort(req.Header.Get(HeaderHost))
		switch rt.hostKind {
		case hostMatchExact:
			if host != rt.hostValue {
				return false
			}
		case hostMatchSuffix:
			if !strings.HasSuffix(host, rt.hostValue) {
				return false
			}
		}
	}

	for _, q := range rt.queries {
		if q.valueCheck {
			if !req.URL.Query().HasValue(q.key, q.value) {
				return false
			}
		} else if !req.URL.Query().Has(q.key) {
			return false
		}
	}

	for _, h := range rt.headers {
		if h.valueCheck {
			if !strings.EqualFold(req.Header.Get(h.key), h.value) {
				return false
			}
		} else if !req.Header.Has(h.key) {
			return false
		}
	}

	return true
}

// Router dispatches a request to the first matching Route, in
// registration order.
type Router struct {
	routes []*Route
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Register appends route to the table. Routes are tried in the order they
// were registered.
func (r *Router) Register(route *Route) {
	r.routes = append(r.routes, route)
}

// Dispatch returns the first route whose predicates all match req, or
// ErrNoRoute if none do.
func (r *Router) Dispatch(req *Request) (*Route, error) {
	for _, rt := range r.routes {
		if rt.check(req) {
			return rt, nil
		}
	}
	return nil, ErrNoRoute
}

// MustRegister builds b and appends the result to the table; it panics on
// a builder error (a conflicting predicate call), intended for static
// route-table setup where that is a programming mistake, not a runtime
// condition.
func (r *Router) MustRegister(b *RouteBuilder) {
	route, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("voidhttp: route: %v", err))
	}
	r.Register(route)
}
