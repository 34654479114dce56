package voidhttp

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConnection wires a Connection to one end of an in-memory pipe,
// runs Serve in the background, and returns the peer end for the test to
// drive as a client. Uses a real net.Conn (net.Pipe) rather than a mock
// reader, since Serve spawns its own reader goroutine and must be driven
// concurrently, not synchronously.
func newTestConnection(t *testing.T, router *Router, cfg ConnectionConfig) (client net.Conn, done <-chan struct{}) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	c := NewConnection(serverSide, cfg, router, nil)
	finished := make(chan struct{})
	go func() {
		c.Serve()
		close(finished)
	}()
	return clientSide, finished
}

func testConnConfig() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

// Scenario 1: Ping — GET with no body returns 200 with an empty body and
// the connection stays open for a second request (keep-alive default).
func TestConnectionPingScenario(t *testing.T) {
	router := NewRouter()
	route, err := NewRoute(&SimpleHandler{
		Serve: func(req *Request, body []byte, reply ReplyStream) error {
			resp := NewResponse(200)
			resp.Header.SetContentLength(0)
			reply.SendHeaders(resp)
			reply.Close(false)
			return nil
		},
	}).ExactPath("/ping").Methods("GET").Build()
	require.NoError(t, err)
	router.Register(route)

	client, done := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	_, err = client.Write([]byte("GET /ping HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	select {
	case <-done:
		t.Fatal("connection closed after a keep-alive request")
	case <-time.After(50 * time.Millisecond):
	}
}

// Scenario 2: Echo — request body is echoed back in the response.
func TestConnectionEchoScenario(t *testing.T) {
	router := NewRouter()
	route, err := NewRoute(&SimpleHandler{
		Serve: func(req *Request, body []byte, reply ReplyStream) error {
			resp := NewResponse(200)
			resp.Header.SetContentLength(int64(len(body)))
			reply.SendHeaders(resp)
			reply.SendData(body, nil)
			reply.Close(false)
			return nil
		},
	}).ExactPath("/echo").Methods("POST").Build()
	require.NoError(t, err)
	router.Register(route)

	client, _ := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	req := "POST /echo HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	_, err = client.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	var contentLength string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		if len(line) > len("Content-Length:") && line[:len("Content-Length:")] == "Content-Length:" {
			contentLength = line
		}
	}
	assert.Contains(t, contentLength, "5")

	body := make([]byte, 5)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

// Scenario 3: Chunked upload — a chunked request body is reassembled and
// echoed back whole.
func TestConnectionChunkedUploadScenario(t *testing.T) {
	router := NewRouter()
	route, err := NewRoute(&SimpleHandler{
		Serve: func(req *Request, body []byte, reply ReplyStream) error {
			resp := NewResponse(200)
			resp.Header.SetContentLength(int64(len(body)))
			reply.SendHeaders(resp)
			reply.SendData(body, nil)
			reply.Close(false)
			return nil
		},
	}).ExactPath("/upload").Methods("POST").Build()
	require.NoError(t, err)
	router.Register(route)

	client, _ := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	req := "POST /upload HTTP/1.1\r\nHost: example.com\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nfoo\r\n3\r\nbar\r\n0\r\n\r\n"
	_, err = client.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}
	body := make([]byte, 6)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)
	assert.Equal(t, "foobar", string(body))
}

// Scenario 4: Route miss — no registered route matches, so the connection
// writes a bare 404 and closes, whatever the keep-alive default.
func TestConnectionRouteMissScenario(t *testing.T) {
	router := NewRouter()

	client, done := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	_, err := client.Write([]byte("GET /missing HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n", status)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connection stayed open after a route miss")
	}
}

// Scenario 5: Graceful close — the handler closes the response before the
// request body has fully arrived; the connection discards the remainder
// instead of misinterpreting it as the next request's bytes.
func TestConnectionGracefulCloseScenario(t *testing.T) {
	router := NewRouter()
	route, err := NewRoute(&gracefulDropHandler{}).ExactPath("/drop").Methods("POST").Build()
	require.NoError(t, err)
	router.Register(route)

	client, done := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	req := "POST /drop HTTP/1.1\r\nHost: example.com\r\nContent-Length: 100\r\n\r\n"
	_, err = client.Write([]byte(req))
	require.NoError(t, err)
	// Only part of the declared body arrives before the peer gives up.
	_, err = client.Write([]byte("partial-body"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	select {
	case <-done:
		t.Fatal("graceful close should keep draining, not tear the socket down immediately")
	case <-time.After(20 * time.Millisecond):
	}
}

type gracefulDropHandler struct{}

func (h *gracefulDropHandler) OnHeaders(req *Request, reply ReplyStream) error {
	resp := NewResponse(200)
	resp.Header.SetContentLength(0)
	reply.SendHeaders(resp)
	reply.Close(true)
	return nil
}

func (h *gracefulDropHandler) OnData(req *Request, data []byte, reply ReplyStream) (int, error) {
	return len(data), nil
}

func (h *gracefulDropHandler) OnClose(req *Request, err error) {}

// Scenario 6: Back-pressure — a handler that returns a short consumed
// count pauses delivery until WantMore is called.
func TestConnectionBackPressureScenario(t *testing.T) {
	router := NewRouter()
	var delivered [][]byte
	resumed := make(chan struct{})
	route, err := NewRoute(&backpressureHandler{
		onChunk: func(data []byte, reply ReplyStream) int {
			delivered = append(delivered, append([]byte(nil), data...))
			if len(delivered) == 1 {
				go func() {
					<-time.After(10 * time.Millisecond)
					reply.WantMore()
					close(resumed)
				}()
				return 0
			}
			return len(data)
		},
	}).ExactPath("/slow").Methods("POST").Build()
	require.NoError(t, err)
	router.Register(route)

	client, _ := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	req := "POST /slow HTTP/1.1\r\nHost: example.com\r\nContent-Length: 4\r\n\r\nabcd"
	_, err = client.Write([]byte(req))
	require.NoError(t, err)

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("handler never resumed via WantMore")
	}
}

type backpressureHandler struct {
	onChunk func(data []byte, reply ReplyStream) int
}

func (h *backpressureHandler) OnHeaders(req *Request, reply ReplyStream) error {
	return nil
}

func (h *backpressureHandler) OnData(req *Request, data []byte, reply ReplyStream) (int, error) {
	return h.onChunk(data, reply), nil
}

func (h *backpressureHandler) OnClose(req *Request, err error) {}

// Scenario 7: SafeMode — a panicking handler is recovered into a 598
// response instead of taking the connection's goroutine down with it.
func TestConnectionSafeModeRecoversPanic(t *testing.T) {
	router := NewRouter()
	route, err := NewRoute(&panickyHandler{}).ExactPath("/boom").Methods("GET").Build()
	require.NoError(t, err)
	router.Register(route)

	cfg := testConnConfig()
	cfg.SafeMode = true
	client, done := newTestConnection(t, router, cfg)
	defer client.Close()

	_, err = client.Write([]byte("GET /boom HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 598 Handler Exception\r\n", status)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connection did not close after a recovered panic")
	}
}

type panickyHandler struct{}

func (h *panickyHandler) OnHeaders(req *Request, reply ReplyStream) error {
	panic("boom")
}

func (h *panickyHandler) OnData(req *Request, data []byte, reply ReplyStream) (int, error) {
	return len(data), nil
}

func (h *panickyHandler) OnClose(req *Request, err error) {}

// Scenario 8: a second SendHeaders call is rejected with
// ErrHeadersAlreadySent instead of re-sending or corrupting the response.
func TestConnectionSendHeadersTwiceRejected(t *testing.T) {
	router := NewRouter()
	var secondErr error
	route, err := NewRoute(&SimpleHandler{
		Serve: func(req *Request, body []byte, reply ReplyStream) error {
			resp := NewResponse(200)
			resp.Header.SetContentLength(0)
			require.NoError(t, reply.SendHeaders(resp))
			secondErr = reply.SendHeaders(resp)
			reply.Close(false)
			return nil
		},
	}).ExactPath("/ping").Methods("GET").Build()
	require.NoError(t, err)
	router.Register(route)

	client, _ := newTestConnection(t, router, testConnConfig())
	defer client.Close()

	_, err = client.Write([]byte("GET /ping HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)
	assert.ErrorIs(t, secondErr, ErrHeadersAlreadySent)
}
