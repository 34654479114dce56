package voidhttp

// Request is an immutable-after-parse value carrying the request line,
// headers, and derived metadata populated by the connection. Fields are
// owned strings rather than slices into a pooled read buffer, since the
// streaming handler contract may retain the Request past the callback
// that delivered it, finishing the response asynchronously via
// ReplyStream.
type Request struct {
	Method      string
	Target      string
	URL         URL
	ProtoMajor  int
	ProtoMinor  int
	Header      Header
	ContentLength int64 // -1 if unknown (chunked or absent with no default)

	// Derived metadata, populated by the connection.
	RequestID    uint64
	Trace        bool
	LocalAddr    string
	RemoteAddr   string
}

// Proto returns "HTTP/1.1"-style protocol string.
func (r *Request) Proto() string {
	switch {
	case r.ProtoMajor == 1 && r.ProtoMinor == 1:
		return "HTTP/1.1"
	case r.ProtoMajor == 1 && r.ProtoMinor == 0:
		return "HTTP/1.0"
	default:
		return "HTTP/?.?"
	}
}

// KeepAliveDefault reports the protocol version's default keep-alive
// posture: HTTP/1.1 defaults to keep-alive, HTTP/1.0 defaults to close.
func (r *Request) KeepAliveDefault() bool {
	return r.ProtoMajor == 1 && r.ProtoMinor == 1
}

// reset clears the request for reuse by the connection's next request.
func (r *Request) reset() {
	r.Method = ""
	r.Target = ""
	r.URL = URL{}
	r.ProtoMajor = 0
	r.ProtoMinor = 0
	r.Header.Reset()
	r.ContentLength = -1
	r.RequestID = 0
	r.Trace = false
	r.LocalAddr = ""
	r.RemoteAddr = ""
}
