package voidclient

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/yourusername/voidwave/pkg/voidhttp"
)

// Request is an outgoing client request. It reuses voidhttp.Header so
// callers get the identical case-insensitive, order-preserving semantics
// on both sides of a round trip.
type Request struct {
	Method string
	URL    *url.URL
	Header voidhttp.Header
	Body   []byte
}

// NewRequest parses rawURL and returns a Request ready for Do.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("voidclient: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("voidclient: unsupported scheme %q (TLS termination is out of scope)", u.Scheme)
	}
	return &Request{Method: method, URL: u, Body: body}, nil
}

// hostKey returns the "host:port" dial target, defaulting to port 80.
func (r *Request) hostKey() string {
	if r.URL.Port() != "" {
		return r.URL.Host
	}
	return r.URL.Hostname() + ":80"
}

// encode renders the request line, headers, and body as wire bytes.
func (r *Request) encode() []byte {
	target := r.URL.RequestURI()
	buf := make([]byte, 0, 256+len(r.Body))
	buf = append(buf, r.Method...)
	buf = append(buf, ' ')
	buf = append(buf, target...)
	buf = append(buf, " HTTP/1.1\r\n"...)

	h := r.Header
	if !h.Has("Host") {
		h.Set("Host", r.URL.Host)
	}
	if len(r.Body) > 0 && !h.Has("Content-Length") {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	if !h.Has("Connection") {
		h.Set("Connection", "keep-alive")
	}
	h.VisitAll(func(name, value string) bool {
		buf = append(buf, name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, value...)
		buf = append(buf, '\r', '\n')
		return true
	})
	buf = append(buf, '\r', '\n')
	buf = append(buf, r.Body...)
	return buf
}
