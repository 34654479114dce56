package voidhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReply is a minimal ReplyStream stub for exercising Handler
// implementations directly, without a real Connection.
type fakeReply struct {
	wantMoreCalls int
}

func (r *fakeReply) SendHeaders(resp *Response) error { return nil }
func (r *fakeReply) SendData(data []byte, done func(err error)) {
	if done != nil {
		done(nil)
	}
}
func (r *fakeReply) Close(graceful bool) {}
func (r *fakeReply) WantMore()           { r.wantMoreCalls++ }
func (r *fakeReply) PauseReceive()       {}

// TestChunkHandlerGatesOnBothReadinessBits verifies OnChunk only fires once
// a full chunk has accumulated AND the handler has signaled readiness via
// TryNextChunk; a handler that never calls TryNextChunk again after its
// first chunk sees no second delivery and the connection stays paused.
func TestChunkHandlerGatesOnBothReadinessBits(t *testing.T) {
	var delivered [][]byte
	var flagsSeen []ChunkFlags
	h := &ChunkHandler{
		ChunkSize: 4,
		OnChunk: func(req *Request, chunk []byte, flags ChunkFlags, reply ReplyStream) error {
			delivered = append(delivered, append([]byte(nil), chunk...))
			flagsSeen = append(flagsSeen, flags)
			return nil
		},
	}
	reply := &fakeReply{}
	req := &Request{}

	require.NoError(t, h.OnHeaders(req, reply))

	// First chunk fires immediately: the handler starts out ready (mirrors
	// construction-time readiness), so filling the first ChunkSize bytes is
	// enough on its own.
	n, err := h.OnData(req, []byte("abcd"), reply)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, delivered, 1)
	assert.Equal(t, "abcd", string(delivered[0]))
	assert.Equal(t, FirstChunk, flagsSeen[0])
	assert.Equal(t, 1, reply.wantMoreCalls)

	// Second chunk's bytes arrive, but the handler hasn't called
	// TryNextChunk yet: data accumulates and sets the data-ready bit, but
	// delivery is gated
	// until readiness is reasserted. Since handlerReady was cleared after
	// the first fire, a full second chunk written before TryNextChunk is
	// accepted into the buffer but held back.
	n, err = h.OnData(req, []byte("efgh"), reply)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, delivered, 1, "second chunk must not fire before TryNextChunk")
	assert.Equal(t, 1, reply.wantMoreCalls)

	// Further bytes are refused (back-pressure) while a chunk is pending.
	n, err = h.OnData(req, []byte("ijkl"), reply)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Once the handler asks for the next chunk, the already-buffered one
	// fires and WantMore resumes the connection.
	require.NoError(t, h.TryNextChunk())
	require.Len(t, delivered, 2)
	assert.Equal(t, "efgh", string(delivered[1]))
	assert.Equal(t, ChunkFlags(0), flagsSeen[1])
	assert.Equal(t, 2, reply.wantMoreCalls)
}

// TestChunkHandlerFlushesFinalPartialChunk verifies a short trailing chunk
// is delivered with LastChunk set once the body completes, even though it
// never reached ChunkSize.
func TestChunkHandlerFlushesFinalPartialChunk(t *testing.T) {
	var flags ChunkFlags
	var body []byte
	h := &ChunkHandler{
		ChunkSize: 10,
		OnChunk: func(req *Request, chunk []byte, f ChunkFlags, reply ReplyStream) error {
			body = append(body, chunk...)
			flags = f
			return nil
		},
	}
	reply := &fakeReply{}
	req := &Request{}

	require.NoError(t, h.OnHeaders(req, reply))
	n, err := h.OnData(req, []byte("ab"), reply)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, h.onBodyComplete(req, reply))
	assert.Equal(t, "ab", string(body))
	assert.Equal(t, FirstChunk|LastChunk, flags)
}
