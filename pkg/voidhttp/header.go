package voidhttp

import (
	"strconv"
	"strings"
	"time"
)

// headerField is one (name, value) pair as it was received or inserted,
// preserving the casing the caller used.
type headerField struct {
	name  string
	value string
}

// Header is an ordered, case-insensitive-keyed multimap: an ordered
// slice rather than map[string][]string, so insertion order is preserved
// and observable when serializing, and duplicate header names keep their
// own slots instead of collapsing.
type Header struct {
	fields []headerField
}

// NewHeader returns an empty header container.
func NewHeader() *Header {
	return &Header{}
}

func eqFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Add appends name/value, preserving any existing entries with that name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Set replaces all existing entries for name with a single entry at the
// position of the first existing occurrence (or appends if none exists).
func (h *Header) Set(name, value string) {
	first := -1
	for i := range h.fields {
		if eqFold(h.fields[i].name, name) {
			if first == -1 {
				first = i
				h.fields[i] = headerField{name: name, value: value}
			} else {
				h.fields[i].name = "" // mark for removal below
			}
		}
	}
	if first == -1 {
		h.Add(name, value)
		return
	}
	h.compact()
}

// compact drops fields marked with an empty name by Set's dedup pass.
// Empty names never occur in legitimately parsed headers (name is always
// non-empty per the parser's grammar), so this sentinel is safe.
func (h *Header) compact() {
	out := h.fields[:0]
	for _, f := range h.fields {
		if f.name == "" {
			continue
		}
		out = append(out, f)
	}
	h.fields = out
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	for i := range h.fields {
		if eqFold(h.fields[i].name, name) {
			return h.fields[i].value
		}
	}
	return ""
}

// Values returns every value stored for name, in insertion order.
func (h *Header) Values(name string) []string {
	var out []string
	for i := range h.fields {
		if eqFold(h.fields[i].name, name) {
			out = append(out, h.fields[i].value)
		}
	}
	return out
}

// Has reports whether name has at least one entry.
func (h *Header) Has(name string) bool {
	for i := range h.fields {
		if eqFold(h.fields[i].name, name) {
			return true
		}
	}
	return false
}

// Del removes every entry for name.
func (h *Header) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !eqFold(f.name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Len returns the total number of stored fields (counting duplicates).
func (h *Header) Len() int {
	return len(h.fields)
}

// VisitAll calls fn for every field in insertion order. Stops early if fn
// returns false.
func (h *Header) VisitAll(fn func(name, value string) bool) {
	for _, f := range h.fields {
		if !fn(f.name, f.value) {
			return
		}
	}
}

// Clone returns a deep copy safe to mutate independently.
func (h *Header) Clone() *Header {
	c := &Header{fields: make([]headerField, len(h.fields))}
	copy(c.fields, h.fields)
	return c
}

// Reset clears the header for reuse.
func (h *Header) Reset() {
	h.fields = h.fields[:0]
}

// ContentLength parses the Content-Length header, returning (-1, false) if
// absent or malformed.
func (h *Header) ContentLength() (int64, bool) {
	v := h.Get(HeaderContentLength)
	if v == "" {
		return -1, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1, false
	}
	return n, true
}

// SetContentLength writes a Content-Length header.
func (h *Header) SetContentLength(n int64) {
	h.Set(HeaderContentLength, strconv.FormatInt(n, 10))
}

// ContentType returns the Content-Type header verbatim.
func (h *Header) ContentType() string {
	return h.Get(HeaderContentType)
}

// Connection returns the Connection header, lower-cased, or "" if absent.
func (h *Header) Connection() string {
	return strings.ToLower(h.Get(HeaderConnection))
}

// httpTimeLayouts are the three date formats RFC 7231 §7.1.1.1 requires a
// recipient to accept: RFC 1123 (preferred, used on write), RFC 850, and
// asctime.
var httpTimeLayouts = []string{
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

func parseHTTPTime(s string) (time.Time, bool) {
	for _, layout := range httpTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// LastModified parses the Last-Modified header.
func (h *Header) LastModified() (time.Time, bool) {
	return parseHTTPTime(h.Get(HeaderLastModified))
}

// SetLastModified writes Last-Modified in RFC 1123 form.
func (h *Header) SetLastModified(t time.Time) {
	h.Set(HeaderLastModified, t.UTC().Format(time.RFC1123))
}

// IfModifiedSince parses the If-Modified-Since header.
func (h *Header) IfModifiedSince() (time.Time, bool) {
	return parseHTTPTime(h.Get(HeaderIfModifiedSince))
}

// SetIfModifiedSince writes If-Modified-Since in RFC 1123 form.
func (h *Header) SetIfModifiedSince(t time.Time) {
	h.Set(HeaderIfModifiedSince, t.UTC().Format(time.RFC1123))
}

// IsChunked reports whether Transfer-Encoding names chunked as its last
// (and, per this engine, only) coding.
func (h *Header) IsChunked() bool {
	v := h.Get(HeaderTransferEncoding)
	if v == "" {
		return false
	}
	parts := strings.Split(v, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	return eqFold(last, chunkedToken)
}
