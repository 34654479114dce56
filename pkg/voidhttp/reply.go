package voidhttp

import "sync/atomic"

// bodyCompleter is implemented by handlers that need a single "the whole
// body has arrived" hook in addition to the streaming OnData callback —
// SimpleHandler and ChunkHandler's final flush. It is optional: plain
// Handler implementations are never required to satisfy it.
type bodyCompleter interface {
	onBodyComplete(req *Request, reply ReplyStream) error
}

// connReply is the Connection's ReplyStream implementation. Every method
// posts its work onto the connection's owning goroutine via
// Connection.post, so it is safe to call from any goroutine without
// locking the connection's FSM, parser, or queue state.
type connReply struct {
	c           *Connection
	queue       sendQueue
	headersSent atomic.Bool
}

func newConnReply(c *Connection) *connReply {
	return &connReply{c: c}
}

// SendHeaders may be called at most once per request; headersSent is an
// atomic flag (not the Connection's own headersSent
// bookkeeping, which only the owning goroutine touches) so a second call
// racing in from another goroutine is rejected before anything is
// enqueued, rather than depending on the post getting scheduled first.
func (r *connReply) SendHeaders(resp *Response) error {
	if r.c == nil {
		return ErrConnectionClosed
	}
	if !r.headersSent.CompareAndSwap(false, true) {
		return ErrHeadersAlreadySent
	}
	buf := encodeStatusLineAndHeaders(r.c.req.Proto(), resp)
	code := resp.Code
	r.queue.Enqueue(buf, nil)
	r.c.post(func() {
		r.c.responseStatus = code
		r.c.headersSent = true
		r.c.timing.onFirstSend()
		r.c.drainQueue()
	})
	return nil
}

func (r *connReply) SendData(data []byte, done func(err error)) {
	r.queue.Enqueue(data, done)
	r.c.post(func() {
		r.c.drainQueue()
	})
}

func (r *connReply) Close(graceful bool) {
	r.c.post(func() {
		r.c.finalizeRequest(graceful)
	})
}

func (r *connReply) WantMore() {
	r.c.post(func() {
		r.c.resume()
	})
}

func (r *connReply) PauseReceive() {
	r.c.post(func() {
		r.c.paused = true
	})
}
