package voidhttp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpointTCP(t *testing.T) {
	ep, err := ParseEndpoint("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "tcp", ep.Network)
	assert.Equal(t, "127.0.0.1:8080", ep.Address)
}

func TestParseEndpointTCPIPv6(t *testing.T) {
	ep, err := ParseEndpoint("[::1]:8080")
	require.NoError(t, err)
	assert.Equal(t, "tcp", ep.Network)
	assert.Equal(t, "[::1]:8080", ep.Address)
}

func TestParseEndpointUnix(t *testing.T) {
	ep, err := ParseEndpoint("unix:/var/run/voidwave.sock")
	require.NoError(t, err)
	assert.Equal(t, "unix", ep.Network)
	assert.Equal(t, "/var/run/voidwave.sock", ep.Address)
}

func TestParseEndpointRejectsBareUnixPrefix(t *testing.T) {
	_, err := ParseEndpoint("unix:")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestParseEndpointRejectsMissingPort(t *testing.T) {
	_, err := ParseEndpoint("localhost")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestParseEndpointRejectsEmpty(t *testing.T) {
	_, err := ParseEndpoint("")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

// TestServerStatsCountBytesOnce guards against double-counting bytes
// in/out: Stats.BytesReceived/BytesSent must be fed from exactly one
// source (the per-request access-log entry), not also from a raw socket
// wrapper, or a single request's bytes get tallied twice.
func TestServerStatsCountBytesOnce(t *testing.T) {
	router := NewRouter()
	var resp *Response
	route, err := NewRoute(&SimpleHandler{
		Serve: func(req *Request, body []byte, reply ReplyStream) error {
			resp = NewResponse(200)
			resp.Header.SetContentLength(int64(len(body)))
			reply.SendHeaders(resp)
			reply.SendData(body, nil)
			reply.Close(false)
			return nil
		},
	}).ExactPath("/echo").Methods("POST").Build()
	require.NoError(t, err)
	router.Register(route)

	cfg := DefaultConfig()
	cfg.Router = router
	cfg.Endpoints = []string{"127.0.0.1:0"}
	server := NewServer(cfg)

	go server.ListenAndServe()
	defer server.Close()

	var addr string
	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		if len(server.listeners) == 0 {
			return false
		}
		addr = server.listeners[0].Addr().String()
		return true
	}, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return server.stats.ActiveConnections.Load() == 1
	}, time.Second, 5*time.Millisecond)

	body := "hello"
	reqLine := "POST /echo HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\nConnection: close\r\n\r\n" + body
	_, err = conn.Write([]byte(reqLine))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	assert.Eventually(t, func() bool {
		return server.stats.ActiveConnections.Load() == 0
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, resp)
	wantSent := int64(len(encodeStatusLineAndHeaders("HTTP/1.1", resp)) + len(body))
	assert.Equal(t, int64(len(body)), server.stats.BytesReceived.Load())
	assert.Equal(t, wantSent, server.stats.BytesSent.Load())
}
