package voidhttp

import (
	"strings"
)

// QueryParam is one key/value pair from a request's query string, in the
// order it appeared. Set is false for a bare "key" with no "="; "key=" has
// Set true and an empty Value.
type QueryParam struct {
	Key   string
	Value string
	Set   bool
}

// Query is an ordered, lazily-parsed list of query parameters. Duplicate
// keys are permitted and preserved in encounter order.
type Query struct {
	raw    string
	parsed []QueryParam
	done   bool
}

func (q *Query) ensure() {
	if q.done {
		return
	}
	q.done = true
	if q.raw == "" {
		return
	}
	for _, part := range strings.Split(q.raw, "&") {
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			q.parsed = append(q.parsed, QueryParam{
				Key:   queryUnescape(part[:eq]),
				Value: queryUnescape(part[eq+1:]),
				Set:   true,
			})
		} else {
			q.parsed = append(q.parsed, QueryParam{Key: queryUnescape(part)})
		}
	}
}

// queryUnescape performs the %XX / '+' decoding used in query strings;
// malformed escapes pass through unchanged rather than erroring, since the
// spec has no notion of a "bad query" request.
func queryUnescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				if hi, ok := hexVal(s[i+1]); ok {
					if lo, ok := hexVal(s[i+2]); ok {
						b.WriteByte(hi<<4 | lo)
						i += 2
						continue
					}
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// All returns every parsed parameter in order.
func (q *Query) All() []QueryParam {
	q.ensure()
	return q.parsed
}

// Has reports whether key appears at least once, regardless of value.
func (q *Query) Has(key string) bool {
	q.ensure()
	for _, p := range q.parsed {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Get returns the first value stored for key and whether it was present.
func (q *Query) Get(key string) (string, bool) {
	q.ensure()
	for _, p := range q.parsed {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// HasValue reports whether key is present with exactly value.
func (q *Query) HasValue(key, value string) bool {
	q.ensure()
	for _, p := range q.parsed {
		if p.Key == key && p.Value == value {
			return true
		}
	}
	return false
}

// URL is the decomposed request target.
type URL struct {
	Scheme string
	Host   string
	Port   string
	Path   string
	Fragment string

	query Query
}

// PathComponents splits Path on '/' and drops empty segments, so "/a//b/"
// yields ["a", "b"].
func (u *URL) PathComponents() []string {
	parts := strings.Split(u.Path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Query returns the lazily parsed query.
func (u *URL) Query() *Query {
	return &u.query
}

// SetRawQuery feeds the raw (undecoded) query string for lazy parsing.
func (u *URL) SetRawQuery(raw string) {
	u.query = Query{raw: raw}
}

// parseTarget splits a request-target into path and raw query, per
// RFC 7230 §5.3: everything up to the first '?' is the path, everything
// after it is the query. A '#' is not split off (servers never see a
// fragment on the wire).
func parseTarget(target string) (path, rawQuery string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}
