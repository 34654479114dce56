package voidhttp

// Response carries a status code, optional reason phrase, and headers.
// Body bytes are NOT owned by Response — they are passed to the reply
// writer separately as buffers, so sending a response never implies
// copying or retaining a body here.
type Response struct {
	Code   int
	Reason string // "" selects the default table entry (constants.go)
	Header Header
}

// NewResponse returns a Response with an empty header container.
func NewResponse(code int) *Response {
	return &Response{Code: code}
}

// ReasonPhrase returns Reason, or the default table entry, or "Status" if
// neither is known.
func (r *Response) ReasonPhrase() string {
	if r.Reason != "" {
		return r.Reason
	}
	if t := StatusText(r.Code); t != "" {
		return t
	}
	return "Status"
}
