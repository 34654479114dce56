package voidhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(method, path, rawQuery string, headers map[string]string) *Request {
	req := &Request{Method: method}
	req.URL.Path = path
	req.URL.SetRawQuery(rawQuery)
	for k, v := range headers {
		req.Header.Add(k, v)
	}
	return req
}

func TestRouteBuilderRejectsConflictingPathPredicates(t *testing.T) {
	_, err := NewRoute(nil).ExactPath("/a").PrefixPath("/b").Build()
	assert.ErrorIs(t, err, ErrAmbiguousPredicate)
}

func TestRouteBuilderRejectsConflictingHostPredicates(t *testing.T) {
	_, err := NewRoute(nil).HostExact("a.example.com").HostSuffix(".example.com").Build()
	assert.ErrorIs(t, err, ErrAmbiguousPredicate)
}

func TestRouteBuilderRejectsConflictingCountPredicates(t *testing.T) {
	_, err := NewRoute(nil).MinPathComponents(1).ExactPathComponents(2).Build()
	assert.ErrorIs(t, err, ErrAmbiguousPredicate)
}

func TestRouterDispatchExactPathAndMethod(t *testing.T) {
	r := NewRouter()
	route, err := NewRoute(nil).ExactPath("/ping").Methods("GET").Build()
	require.NoError(t, err)
	r.Register(route)

	req := newTestRequest("GET", "/ping", "", nil)
	got, err := r.Dispatch(req)
	require.NoError(t, err)
	assert.Same(t, route, got)

	req2 := newTestRequest("POST", "/ping", "", nil)
	_, err = r.Dispatch(req2)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRouterDispatchFirstMatchWins(t *testing.T) {
	r := NewRouter()
	first, err := NewRoute(nil).PrefixPath("/api/").Build()
	require.NoError(t, err)
	second, err := NewRoute(nil).PrefixPath("/api/v1/").Build()
	require.NoError(t, err)
	r.Register(first)
	r.Register(second)

	req := newTestRequest("GET", "/api/v1/widgets", "", nil)
	got, err := r.Dispatch(req)
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestRouterDispatchHostSuffix(t *testing.T) {
	r := NewRouter()
	route, err := NewRoute(nil).HostSuffix(".example.com").Build()
	require.NoError(t, err)
	r.Register(route)

	req := newTestRequest("GET", "/", "", map[string]string{"Host": "api.example.com:8080"})
	_, err = r.Dispatch(req)
	assert.NoError(t, err)

	req2 := newTestRequest("GET", "/", "", map[string]string{"Host": "other.com"})
	_, err = r.Dispatch(req2)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRouterDispatchQueryAndHeaderPredicates(t *testing.T) {
	r := NewRouter()
	route, err := NewRoute(nil).Query("debug", "1").Header("X-Api-Key").Build()
	require.NoError(t, err)
	r.Register(route)

	req := newTestRequest("GET", "/", "debug=1", map[string]string{"X-Api-Key": "secret"})
	_, err = r.Dispatch(req)
	assert.NoError(t, err)

	req2 := newTestRequest("GET", "/", "debug=0", map[string]string{"X-Api-Key": "secret"})
	_, err = r.Dispatch(req2)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRouterDispatchPathComponentCount(t *testing.T) {
	r := NewRouter()
	route, err := NewRoute(nil).ExactPathComponents(2).Build()
	require.NoError(t, err)
	r.Register(route)

	req := newTestRequest("GET", "/a/b", "", nil)
	_, err = r.Dispatch(req)
	assert.NoError(t, err)

	req2 := newTestRequest("GET", "/a/b/c", "", nil)
	_, err = r.Dispatch(req2)
	assert.ErrorIs(t, err, ErrNoRoute)
}
