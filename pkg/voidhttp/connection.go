package voidhttp

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ConnState is a bitwise-OR combination of phases a Connection occupies.
// Unlike a plain enum, more than one bit may be set at once (e.g.
// StateReadHeaders|StateWaitingFirstData before a request's first byte
// has arrived, or StateReadData|StateGracefulClose while the rest of a
// body is being drained).
type ConnState uint32

const (
	StateReadHeaders ConnState = 1 << iota
	StateReadData
	StateRequestProcessed
	StateWaitingFirstData
	StateGracefulClose
)

type connMode int

const (
	modeHeaders connMode = iota
	modeBody
	modeDiscard // graceful close: draining and discarding the remainder of a body
)

// connEvent is either a chunk of freshly read bytes or a terminal read
// error/EOF, delivered from the dedicated reader goroutine.
type connEvent struct {
	data []byte
	err  error
}

// ConnectionConfig bounds resource use for one connection.
type ConnectionConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxKeepAliveCount int // 0 means unbounded
	MaxChunkSize      int64
	MaxBodySize       int64
	ReceiveBufferSize int
	RequestIDHeader   string
	TraceHeader       string
	DisableKeepalive  bool

	// SafeMode recovers a panicking Handler callback instead of letting
	// the panic propagate and take the whole process down: the request is
	// logged with status 598 and the connection is closed. A panic in
	// OnHeaders also gets a 598 response written before the close; a
	// panic in OnClose is swallowed.
	SafeMode bool
}

// DefaultConnectionConfig returns the config a bare Server falls back to.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReceiveBufferSize: DefaultReceiveBufferSize,
	}
}

// Connection runs the full request/response pipeline for one accepted
// socket: an event loop selecting between socket bytes and posted
// closures. ReplyStream may be driven from any goroutine (e.g. a handler
// that finishes asynchronously on a worker pool), and posting those calls
// onto this single select loop is what gives the FSM/parser/queue state
// its mutex-free affinity without sharing a Connection across goroutines.
type Connection struct {
	conn   net.Conn
	router *Router
	cfg    ConnectionConfig

	events chan connEvent
	tasks  chan func()
	done   chan struct{}

	state ConnState
	mode  connMode

	parser *Parser
	chunks *ChunkedDecoder
	req    *Request
	reply  *connReply

	handler      Handler
	bodyDone     bool
	bodyNotified bool
	paused       bool
	pending      []byte
	bodyReceived int64

	carry []byte // bytes that belong to the next pipelined request, held
	// until the handler closes the current one

	requestCount int
	closed       bool

	timing         timing
	responseStatus int
	headersSent    bool
	bytesOut       int64
	logged         bool

	onAccessLog func(entry AccessLogEntry)
	onClose     func()
	idGen       func(req *Request) (uint64, bool)
}

// NewConnection wraps an accepted socket. router resolves a Handler once
// headers are parsed; idGen derives the request-id/trace-bit pair
// (internal/reqid).
func NewConnection(conn net.Conn, cfg ConnectionConfig, router *Router, idGen func(req *Request) (uint64, bool)) *Connection {
	c := &Connection{
		conn:    conn,
		router:  router,
		cfg:     cfg,
		events:  make(chan connEvent, 4),
		tasks:   make(chan func(), 16),
		done:    make(chan struct{}),
		parser:  NewParser(),
		chunks:  NewChunkedDecoder(cfg.MaxChunkSize, cfg.MaxBodySize),
		req:     &Request{},
		idGen:   idGen,
	}
	c.reply = newConnReply(c)
	return c
}

// post enqueues fn to run on the connection's owning goroutine. Safe from
// any goroutine.
func (c *Connection) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

// Serve runs the connection to completion: it returns once the socket is
// closed, by protocol decision or by error.
func (c *Connection) Serve() {
	defer c.conn.Close()
	defer close(c.done)

	go c.readLoop()
	c.beginRequest()

	for !c.closed {
		select {
		case ev := <-c.events:
			if ev.err != nil {
				c.handleReadError(ev.err)
				continue
			}
			c.handleBytes(ev.data)
		case fn := <-c.tasks:
			fn()
		}
	}
}

func (c *Connection) readLoop() {
	buf := make([]byte, c.bufferSize())
	for {
		if c.cfg.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.events <- connEvent{data: chunk}:
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.events <- connEvent{err: err}:
			case <-c.done:
			}
			return
		}
	}
}

func (c *Connection) bufferSize() int {
	if c.cfg.ReceiveBufferSize > 0 {
		return c.cfg.ReceiveBufferSize
	}
	return DefaultReceiveBufferSize
}

func (c *Connection) beginRequest() {
	c.state = StateReadHeaders | StateWaitingFirstData
	c.mode = modeHeaders
	c.bodyDone = false
	c.bodyNotified = false
	c.paused = false
	c.pending = nil
	c.bodyReceived = 0
	c.handler = nil
	c.req.reset()
	c.parser.Reset()
	c.chunks.Reset()
	c.timing.reset()
	c.responseStatus = 0
	c.headersSent = false
	c.bytesOut = 0
	c.logged = false
	c.reply.headersSent.Store(false)

	if len(c.carry) > 0 {
		carry := c.carry
		c.carry = nil
		c.handleBytes(carry)
	}
}

func (c *Connection) handleReadError(err error) {
	if c.state&StateWaitingFirstData != 0 {
		// Peer closed before sending anything for this request: silent,
		// no OnClose and no access-log entry.
		c.finish()
		return
	}
	if c.handler != nil {
		c.guardedVoid(func() { c.handler.OnClose(c.req, err) })
	}
	c.logRequest(499, err)
	c.finish()
}

func (c *Connection) handleBytes(data []byte) {
	if c.state&StateWaitingFirstData != 0 {
		c.state &^= StateWaitingFirstData
		c.timing.onFirstByte()
	}
	for len(data) > 0 && !c.closed {
		switch c.mode {
		case modeHeaders:
			status, err := c.parser.Feed(c.req, data)
			data = nil
			switch status {
			case StatusMalformed:
				c.rejectMalformed(err)
				return
			case StatusIncomplete:
				return
			case StatusComplete:
				data = c.parser.Remainder()
				if !c.onHeadersParsed() {
					return
				}
				c.mode = modeBody
			}

		case modeBody:
			if c.paused {
				c.pending = append(c.pending, data...)
				return
			}
			if c.bodyDone {
				// Body already complete but the handler hasn't called
				// Close yet: whatever arrives now belongs to the next
				// pipelined request. Hold it until beginRequest primes a
				// fresh parser for it.
				c.carry = append(c.carry, data...)
				return
			}
			consumed := c.feedBody(data)
			data = data[consumed:]
			if c.bodyDone {
				c.notifyBodyComplete()
				if len(data) > 0 {
					c.carry = append(c.carry, data...)
				}
				return
			}
			if c.closed {
				return
			}

		case modeDiscard:
			consumed := c.discardBody(data)
			data = data[consumed:]
			if c.bodyDone {
				c.finalizeRequest(true)
				return
			}
		}
	}
}

// onHeadersParsed resolves the route, derives request metadata, and
// invokes Handler.OnHeaders. Returns false if the connection has already
// been torn down (handler rejected with a fatal error).
func (c *Connection) onHeadersParsed() bool {
	c.state = StateReadData
	c.timing.onHeadersParsed()
	if host, ok := c.conn.RemoteAddr().(interface{ String() string }); ok {
		c.req.RemoteAddr = host.String()
	}
	if la, ok := c.conn.LocalAddr().(interface{ String() string }); ok {
		c.req.LocalAddr = la.String()
	}
	if c.idGen != nil {
		id, trace := c.idGen(c.req)
		c.req.RequestID = id
		c.req.Trace = trace
	}

	route, err := c.router.Dispatch(c.req)
	if err != nil {
		c.writeSimpleError(404)
		c.logRequest(404, nil)
		c.requestCount++
		c.drainQueue()
		c.finalizeNoKeepAlive()
		return false
	}
	c.handler = instantiateHandler(route)

	if err := c.callOnHeaders(); err != nil {
		c.guardedVoid(func() { c.handler.OnClose(c.req, err) })
		status := 500
		if errors.Is(err, ErrHandlerPanic) {
			status = 598
		}
		c.writeSimpleError(status)
		c.logRequest(status, err)
		c.requestCount++
		c.drainQueue()
		c.finalizeNoKeepAlive()
		return false
	}
	if c.req.ContentLength <= 0 && !c.req.Header.IsChunked() {
		c.bodyDone = true
		c.notifyBodyComplete()
	}
	return !c.closed
}

// notifyBodyComplete fires the optional bodyCompleter hook exactly once
// per request, once the full body has been received. The request is not
// considered finished until the handler explicitly calls ReplyStream.Close.
func (c *Connection) notifyBodyComplete() {
	if c.bodyNotified || c.handler == nil {
		return
	}
	c.bodyNotified = true
	c.timing.onBodyDone()
	if bc, ok := c.handler.(bodyCompleter); ok {
		if err := c.guarded(func() error { return bc.onBodyComplete(c.req, c.reply) }); err != nil {
			c.abort(err)
		}
	}
}

// finalizeNoKeepAlive tears the connection down, for paths (route miss,
// header rejection) that never hand a Handler a ReplyStream to close
// explicitly; these paths never keep the connection alive.
func (c *Connection) finalizeNoKeepAlive() {
	c.finish()
}

func (c *Connection) callOnHeaders() error {
	return c.guarded(func() error { return c.handler.OnHeaders(c.req, c.reply) })
}

// guarded invokes fn, recovering a panic into ErrHandlerPanic when SafeMode
// is enabled (the request is then failed with status 598 and the
// connection abruptly closed). With SafeMode off, a panic propagates and
// takes the worker goroutine down with it.
func (c *Connection) guarded(fn func() error) (err error) {
	if !c.cfg.SafeMode {
		return fn()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return fn()
}

// guardedVoid is guarded's counterpart for callbacks with no return value
// (Handler.OnClose). A recovered panic is swallowed: OnClose is itself
// called from error/abort paths, so there is nowhere further to report it.
func (c *Connection) guardedVoid(fn func()) {
	if !c.cfg.SafeMode {
		fn()
		return
	}
	defer func() { recover() }()
	fn()
}

// instantiateHandler returns a per-request Handler instance: stateful
// convenience wrappers (SimpleHandler, ChunkHandler) are registered once
// on a Route but must not share body-accumulation state across concurrent
// requests, so each dispatch gets its own instance.
func instantiateHandler(route *Route) Handler {
	switch h := route.handler.(type) {
	case *SimpleHandler:
		return h.newSimpleInstance()
	case *ChunkHandler:
		return h.newChunkInstance()
	default:
		return h
	}
}

// feedBody delivers body bytes to the active handler, honoring
// Content-Length or chunked framing, and returns how much of data was
// consumed.
func (c *Connection) feedBody(data []byte) int {
	if c.req.Header.IsChunked() {
		return c.feedChunkedBody(data)
	}
	return c.feedFixedBody(data)
}

func (c *Connection) feedFixedBody(data []byte) int {
	remaining := c.req.ContentLength - c.bodyReceived
	n := int64(len(data))
	if n > remaining {
		n = remaining
	}
	if n == 0 {
		c.bodyDone = true
		return 0
	}
	chunk := data[:n]
	consumed, err := c.deliverData(chunk)
	c.bodyReceived += int64(consumed)
	if err != nil {
		c.abort(err)
		return int(n)
	}
	if consumed < len(chunk) {
		c.pauseWithLeftover(chunk[consumed:])
	}
	if c.bodyReceived >= c.req.ContentLength {
		c.bodyDone = true
	}
	return int(n)
}

func (c *Connection) feedChunkedBody(data []byte) int {
	total := 0
	for total < len(data) {
		chunk, consumed, status, err := c.chunks.Feed(data[total:])
		total += consumed
		switch status {
		case ChunkMalformed:
			c.abort(err)
			return total
		case ChunkNeedMore:
			return total
		case ChunkHaveData:
			n, derr := c.deliverData(chunk)
			c.bodyReceived += int64(n)
			if derr != nil {
				c.abort(derr)
				return total
			}
			if n < len(chunk) {
				c.pauseWithLeftover(chunk[n:])
				return total
			}
		case ChunkDone:
			c.bodyDone = true
			return total
		}
	}
	return total
}

func (c *Connection) deliverData(data []byte) (n int, err error) {
	err = c.guarded(func() error {
		var e error
		n, e = c.handler.OnData(c.req, data, c.reply)
		return e
	})
	return n, err
}

func (c *Connection) pauseWithLeftover(rest []byte) {
	c.paused = true
	c.pending = append(c.pending[:0], rest...)
}

// resume re-delivers any buffered unconsumed bytes, called when the
// handler invokes WantMore.
func (c *Connection) resume() {
	if !c.paused {
		return
	}
	c.paused = false
	if len(c.pending) == 0 {
		return
	}
	rest := c.pending
	c.pending = nil
	consumed := c.feedBody(rest)
	if c.bodyDone && !c.closed {
		c.notifyBodyComplete()
		if consumed < len(rest) {
			// Bytes past the end of this body belong to the next
			// pipelined request, as in handleBytes.
			c.carry = append(c.carry, rest[consumed:]...)
		}
		return
	}
	if consumed < len(rest) && !c.paused {
		// handler consumed nothing and didn't re-pause: drop to avoid a
		// busy loop rather than resubmit the same bytes forever.
		c.pending = rest[consumed:]
	}
}

func (c *Connection) discardBody(data []byte) int {
	if c.req.Header.IsChunked() {
		total := 0
		for total < len(data) {
			_, consumed, status, err := c.chunks.Feed(data[total:])
			total += consumed
			if status == ChunkMalformed && err != nil {
				c.bodyDone = true
				return total
			}
			if status == ChunkDone {
				c.bodyDone = true
				return total
			}
			if status == ChunkNeedMore {
				return total
			}
		}
		return total
	}
	remaining := c.req.ContentLength - c.bodyReceived
	n := int64(len(data))
	if n > remaining {
		n = remaining
	}
	c.bodyReceived += n
	if c.bodyReceived >= c.req.ContentLength {
		c.bodyDone = true
	}
	return int(n)
}

func (c *Connection) abort(err error) {
	if c.handler != nil {
		c.guardedVoid(func() { c.handler.OnClose(c.req, err) })
		c.handler = nil
	}
	status := 499
	if !c.headersSent {
		status = 500
	}
	if errors.Is(err, ErrHandlerPanic) {
		status = 598
	}
	c.logRequest(status, err)
	c.finish()
}

func (c *Connection) rejectMalformed(err error) {
	c.writeSimpleError(400)
	c.logRequest(400, err)
	c.finish()
}

// finalizeRequest is the single path by which a request transitions out
// of StateRequestProcessed, driven by the handler's ReplyStream.Close
// call. If graceful is true and the body has not been fully received yet,
// the connection first drains and discards the remainder before
// finalizing, so the next request's bytes aren't misread as leftover body.
func (c *Connection) finalizeRequest(graceful bool) {
	if c.closed || c.state&StateRequestProcessed != 0 {
		return
	}
	if graceful && !c.bodyDone {
		c.state |= StateGracefulClose
		c.mode = modeDiscard
		return
	}
	c.state |= StateRequestProcessed
	if c.handler != nil {
		c.guardedVoid(func() { c.handler.OnClose(c.req, nil) })
	}
	if !c.headersSent {
		c.writeSimpleError(500)
	}
	c.logRequest(c.responseStatus, nil)
	c.requestCount++
	c.drainQueue()
	if c.closed {
		return
	}
	if !c.bodyDone || c.shouldClose() {
		c.finish()
		return
	}
	c.beginRequest()
}

// shouldClose evaluates the keep-alive decision: the request's explicit
// Connection header, else the protocol version default. A Connection
// header set on the response is not consulted.
func (c *Connection) shouldClose() bool {
	if c.cfg.DisableKeepalive {
		return true
	}
	if c.state&StateGracefulClose != 0 {
		return true
	}
	if c.cfg.MaxKeepAliveCount > 0 && c.requestCount >= c.cfg.MaxKeepAliveCount {
		return true
	}
	if conn := strings.ToLower(c.req.Header.Connection()); conn != "" {
		return conn == connClose
	}
	return !c.req.KeepAliveDefault()
}

// drainQueue writes every currently queued send job to the socket in
// order, invoking completion callbacks.
func (c *Connection) drainQueue() {
	jobs := c.reply.queue.Drain()
	for i, j := range jobs {
		if c.cfg.WriteTimeout > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		}
		n, err := c.conn.Write(j.buf)
		c.bytesOut += int64(n)
		if err != nil {
			for _, rest := range jobs[i:] {
				if rest.done != nil {
					rest.done(err)
				}
			}
			c.reply.queue.Fail(err)
			if c.state&StateRequestProcessed == 0 && c.handler != nil {
				c.guardedVoid(func() { c.handler.OnClose(c.req, err) })
				c.handler = nil
			}
			c.logRequest(499, err)
			c.finish()
			return
		}
		if j.done != nil {
			j.done(nil)
		}
	}
}

// writeSimpleError writes a bodyless error response synchronously from
// the owning goroutine, bypassing ReplyStream's cross-goroutine posting
// since the caller is already running on the connection's own loop.
func (c *Connection) writeSimpleError(code int) {
	resp := NewResponse(code)
	resp.Header.SetContentLength(0)
	if c.reply.headersSent.CompareAndSwap(false, true) {
		c.reply.queue.Enqueue(encodeStatusLineAndHeaders(c.req.Proto(), resp), nil)
	}
	c.responseStatus = code
	c.headersSent = true
	c.timing.onFirstSend()
	c.drainQueue()
}

// logRequest emits one AccessLogEntry for the request currently (or just)
// in flight. Silent if no byte of this request was ever observed
// (timing.start unset), so a peer closing before headers complete never
// produces a log line.
func (c *Connection) logRequest(status int, err error) {
	if c.logged || c.onAccessLog == nil || c.timing.start.IsZero() {
		return
	}
	c.logged = true
	total, receive, send, ttfb := c.timing.entry(time.Now())
	entry := AccessLogEntry{
		Method:          c.req.Method,
		URL:             c.req.Target,
		LocalAddr:       c.req.LocalAddr,
		RemoteAddr:      c.req.RemoteAddr,
		Status:          status,
		RequestID:       c.req.RequestID,
		Trace:           c.req.Trace,
		BytesReceived:   c.bodyReceived,
		BytesSent:       c.bytesOut,
		Total:           total,
		ReceiveTime:     receive,
		SendTime:        send,
		TimeToFirstByte: ttfb,
	}
	c.onAccessLog(entry)
}

func (c *Connection) finish() {
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
	if c.onClose != nil {
		c.onClose()
	}
}
