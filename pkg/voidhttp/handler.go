package voidhttp

// ReplyStream is the per-request handle a Handler uses to produce a
// response. All methods are safe to call from any goroutine; calls made
// off the owning connection's worker are posted back onto it
// (connection.go), so the connection's FSM never needs its own lock.
type ReplyStream interface {
	// SendHeaders writes the status line and headers. May be called at
	// most once per request; ErrHeadersAlreadySent on a second call.
	SendHeaders(resp *Response) error

	// SendData enqueues a body chunk. done, if non-nil, is invoked once
	// the chunk has been handed to the socket (or the connection failed).
	SendData(data []byte, done func(err error))

	// Close finishes the response. If graceful is true and the request
	// body has not been fully received, the connection keeps reading and
	// discarding the remainder, then closes. Otherwise the request is
	// finalized at once: the connection stays open for the next request
	// when the body was fully received and keep-alive applies, and is
	// closed when not.
	Close(graceful bool)

	// WantMore resumes delivery of request body data after a handler
	// previously throttled it via a short OnData return.
	WantMore()

	// PauseReceive stops delivery of further request body data until
	// WantMore is called.
	PauseReceive()
}

// Handler is the streaming request contract every route target
// implements: three explicit lifecycle callbacks instead of one
// synchronous function, since body delivery is itself incremental and
// must support mid-stream back-pressure.
type Handler interface {
	// OnHeaders is called once the request line and headers have been
	// parsed, before any body bytes have arrived. Returning an error
	// aborts the request with a 4xx/5xx response chosen by the caller and
	// closes the connection.
	OnHeaders(req *Request, reply ReplyStream) error

	// OnData is called for each piece of body as it becomes available
	// (the bytes of each socket read for Content-Length bodies, each
	// decoded run of chunk data for chunked bodies). It returns the
	// number of bytes consumed; a short return throttles further
	// delivery until WantMore is called.
	OnData(req *Request, data []byte, reply ReplyStream) (consumed int, err error)

	// OnClose is called exactly once per request, however it ends:
	// normal completion, handler error, or connection failure. err is
	// nil only on normal completion.
	OnClose(req *Request, err error)
}

// SimpleHandler adapts a whole-body callback into a Handler: the body is
// buffered in full before Serve is invoked.
type SimpleHandler struct {
	// Serve is called once the complete body has arrived. It builds and
	// sends the response via reply before returning.
	Serve func(req *Request, body []byte, reply ReplyStream) error

	body []byte
}

func (h *SimpleHandler) OnHeaders(req *Request, reply ReplyStream) error {
	h.body = h.body[:0]
	return nil
}

func (h *SimpleHandler) OnData(req *Request, data []byte, reply ReplyStream) (int, error) {
	h.body = append(h.body, data...)
	return len(data), nil
}

func (h *SimpleHandler) OnClose(req *Request, err error) {
}

// onBodyComplete implements the connection's bodyCompleter hook: the whole
// body has arrived, so the buffered-body callback can finally run.
func (h *SimpleHandler) onBodyComplete(req *Request, reply ReplyStream) error {
	if h.Serve == nil {
		return nil
	}
	return h.Serve(req, h.body, reply)
}

// newSimpleInstance returns a fresh *SimpleHandler sharing Serve, used by
// the router to hand each request its own body buffer (SimpleHandler
// itself is registered once but must not share body state across
// concurrent requests).
func (h *SimpleHandler) newSimpleInstance() *SimpleHandler {
	return &SimpleHandler{Serve: h.Serve}
}

// ChunkFlags marks the position of a delivered chunk within the body.
type ChunkFlags uint8

const (
	FirstChunk ChunkFlags = 1 << iota
	LastChunk
)

// chunkReadiness tracks the two independent bits that gate an OnChunk
// delivery: a chunk only fires once the data side has filled a buffer (or
// the body has ended) AND the handler side has said it's ready for the
// next one. Both bits are required, mirroring a producer/consumer
// handshake instead of a bare "buffer full" push.
type chunkReadiness uint8

const (
	handlerReady chunkReadiness = 1 << iota
	dataReady
)

// ChunkHandler adapts a fixed-size-chunk callback into a Handler: body
// bytes are delivered in ChunkSize-sized pieces (the final piece may be
// shorter), with FirstChunk/LastChunk flags marking the edges.
//
// Delivery is gated by readiness, not pushed the instant a buffer fills:
// OnChunk fires only once a full chunk (or body-end) has accumulated AND
// the handler has signaled it's ready via TryNextChunk. A handler that
// wants one chunk at a time calls TryNextChunk from within OnChunk once
// it's done with the current one; a handler happy to receive chunks
// back-to-back can call TryNextChunk once up front and again from
// OnChunk, same as any other call site.
type ChunkHandler struct {
	// ChunkSize is the delivery granularity: every delivered chunk is
	// exactly ChunkSize bytes except the final one, which may be shorter.
	// Zero or less selects DefaultReceiveBufferSize.
	ChunkSize int

	// OnChunk is called for each delivered piece, only once both
	// readiness bits are set. Returning an error aborts the request.
	OnChunk func(req *Request, chunk []byte, flags ChunkFlags, reply ReplyStream) error

	pending []byte
	started bool
	final   bool
	state   chunkReadiness
	req     *Request
	reply   ReplyStream
}

func (h *ChunkHandler) size() int {
	if h.ChunkSize <= 0 {
		return DefaultReceiveBufferSize
	}
	return h.ChunkSize
}

func (h *ChunkHandler) OnHeaders(req *Request, reply ReplyStream) error {
	h.pending = h.pending[:0]
	h.started = false
	h.final = false
	h.state = handlerReady
	h.req = req
	h.reply = reply
	return nil
}

// OnData buffers bytes toward the next ChunkSize-sized chunk. If a
// previous chunk is already data-ready and awaiting TryNextChunk, no
// further bytes are consumed (the connection pauses until the handler
// catches up).
func (h *ChunkHandler) OnData(req *Request, data []byte, reply ReplyStream) (int, error) {
	if h.state&dataReady != 0 {
		return 0, nil
	}
	size := h.size()
	consumed := 0
	for consumed < len(data) {
		delta := size - len(h.pending)
		if delta > len(data)-consumed {
			delta = len(data) - consumed
		}
		h.pending = append(h.pending, data[consumed:consumed+delta]...)
		consumed += delta
		if len(h.pending) == size {
			h.state |= dataReady
			if err := h.fireIfReady(); err != nil {
				return consumed, err
			}
			break
		}
	}
	return consumed, nil
}

// TryNextChunk signals that the handler is ready for the next delivered
// chunk. If a chunk is already data-ready and waiting, it fires
// immediately; otherwise the readiness bit is simply recorded for the
// next time OnData or onBodyComplete fills one.
func (h *ChunkHandler) TryNextChunk() error {
	h.state |= handlerReady
	return h.fireIfReady()
}

// fireIfReady delivers the pending chunk once both readiness bits are
// set, resets state for the next one, and resumes body delivery via
// WantMore (which is always safe to call here since it only posts a
// closure onto the connection rather than running it inline).
func (h *ChunkHandler) fireIfReady() error {
	if h.state != handlerReady|dataReady {
		return nil
	}
	flags := ChunkFlags(0)
	if !h.started {
		flags |= FirstChunk
		h.started = true
	}
	if h.final {
		flags |= LastChunk
	}
	chunk := h.pending
	h.pending = nil
	h.state = 0
	if err := h.OnChunk(h.req, chunk, flags, h.reply); err != nil {
		return err
	}
	h.reply.WantMore()
	return nil
}

func (h *ChunkHandler) OnClose(req *Request, err error) {
}

// onBodyComplete marks the trailing partial chunk (if any) as the final
// one and attempts delivery, same as a normal fill except it may be
// shorter than ChunkSize.
func (h *ChunkHandler) onBodyComplete(req *Request, reply ReplyStream) error {
	if h.OnChunk == nil {
		return nil
	}
	h.final = true
	h.req = req
	h.reply = reply
	h.state |= dataReady
	return h.fireIfReady()
}

func (h *ChunkHandler) newChunkInstance() *ChunkHandler {
	return &ChunkHandler{ChunkSize: h.ChunkSize, OnChunk: h.OnChunk}
}
