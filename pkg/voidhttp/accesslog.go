package voidhttp

import "time"

// AccessLogEntry is the per-request observability record: one line per
// completed request with method, URL, local/remote endpoint, response
// status, bytes received/sent, total request time in microseconds,
// receive-time, send-time, and time-to-first-byte. Connection.onAccessLog
// (server.go wires it into Stats and, when a logger is configured, into a
// zap line) receives one of these per request that reaches a loggable
// outcome; a peer closing before headers complete is silent and never
// produces an entry.
type AccessLogEntry struct {
	Method     string
	URL        string
	LocalAddr  string
	RemoteAddr string
	Status     int
	RequestID  uint64
	Trace      bool

	BytesReceived int64
	BytesSent     int64

	// Durations, kept as time.Duration and converted at the logging
	// boundary rather than truncated early; TotalMicros reports Total in
	// microseconds.
	Total            time.Duration
	ReceiveTime      time.Duration
	SendTime         time.Duration
	TimeToFirstByte  time.Duration
}

// TotalMicros reports Total in microseconds.
func (e AccessLogEntry) TotalMicros() int64 { return e.Total.Microseconds() }

// timing accumulates the per-request timestamps the access log needs:
// first byte, headers-complete, first send, and body-done, covering
// receive-time/send-time/ttfb.
type timing struct {
	start          time.Time
	headersDone    time.Time
	firstByteSent  time.Time
	bodyDone       time.Time
}

func (t *timing) reset() {
	*t = timing{}
}

func (t *timing) onFirstByte() {
	if t.start.IsZero() {
		t.start = time.Now()
	}
}

func (t *timing) onHeadersParsed() {
	if t.headersDone.IsZero() {
		t.headersDone = time.Now()
	}
}

func (t *timing) onBodyDone() {
	if t.bodyDone.IsZero() {
		t.bodyDone = time.Now()
	}
}

func (t *timing) onFirstSend() {
	if t.firstByteSent.IsZero() {
		t.firstByteSent = time.Now()
	}
}

// entry computes the four AccessLogEntry durations at request completion.
// now is the completion timestamp (end of receive + send).
func (t *timing) entry(now time.Time) (total, receive, send, ttfb time.Duration) {
	if t.start.IsZero() {
		return 0, 0, 0, 0
	}
	total = now.Sub(t.start)
	if !t.bodyDone.IsZero() {
		receive = t.bodyDone.Sub(t.start)
	}
	if !t.firstByteSent.IsZero() {
		ttfb = t.firstByteSent.Sub(t.start)
		send = now.Sub(t.firstByteSent)
	}
	return total, receive, send, ttfb
}
