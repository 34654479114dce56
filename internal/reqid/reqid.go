// Package reqid derives a per-request identifier and trace bit from a
// configurable header, falling back to a random id when the header is
// absent or unparsable.
//
// The configured header's first 16 hex digits are parsed as the request
// id, and a trace bit is set from a second configured header holding a
// positive integer. Falls back to google/uuid for the random id rather
// than hand-rolling one with math/rand.
package reqid

import (
	"strconv"

	"github.com/google/uuid"
)

// Header names the request headers used to derive an id/trace pair.
type Header struct {
	RequestID string
	Trace     string
}

// Get returns a derived request id and trace bit for the given header
// lookup function. If h.RequestID is configured and present, its first 16
// hex digits are parsed as a uint64; otherwise a random id is generated.
// The trace bit is set only if h.Trace is configured, present, and parses
// as a positive integer.
func Get(h Header, get func(name string) string) (id uint64, trace bool) {
	if h.RequestID != "" {
		if v := get(h.RequestID); v != "" {
			if parsed, ok := parseHexPrefix(v); ok {
				id = parsed
			} else {
				id = randomID()
			}
		} else {
			id = randomID()
		}
	} else {
		id = randomID()
	}

	if h.Trace != "" {
		if v := get(h.Trace); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				trace = true
			}
		}
	}
	return id, trace
}

// parseHexPrefix parses up to the first 16 hex digits of s as a uint64.
func parseHexPrefix(s string) (uint64, bool) {
	end := 0
	for end < len(s) && end < 16 && isHex(s[end]) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:end], 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func randomID() uint64 {
	u := uuid.New()
	var n uint64
	for _, b := range u[:8] {
		n = n<<8 | uint64(b)
	}
	return n
}
