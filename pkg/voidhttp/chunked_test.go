package voidhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedDecoderSingleChunk(t *testing.T) {
	d := NewChunkedDecoder(0, 0)
	data := []byte("5\r\nhello\r\n0\r\n\r\n")

	var body []byte
	for len(data) > 0 {
		chunk, consumed, status, err := d.Feed(data)
		require.NoError(t, err)
		body = append(body, chunk...)
		data = data[consumed:]
		if status == ChunkDone {
			break
		}
	}
	assert.Equal(t, "hello", string(body))
}

func TestChunkedDecoderMultipleChunksAcrossFeeds(t *testing.T) {
	d := NewChunkedDecoder(0, 0)
	var body []byte

	feed := func(data []byte) ChunkStatus {
		var status ChunkStatus
		for len(data) > 0 {
			chunk, consumed, st, err := d.Feed(data)
			require.NoError(t, err)
			body = append(body, chunk...)
			data = data[consumed:]
			status = st
			if st == ChunkDone || st == ChunkNeedMore {
				break
			}
		}
		return status
	}

	feed([]byte("3\r\nfoo\r\n"))
	status := feed([]byte("3\r\nbar\r\n0\r\n\r\n"))
	assert.Equal(t, ChunkDone, status)
	assert.Equal(t, "foobar", string(body))
}

func TestChunkedDecoderByteAtATime(t *testing.T) {
	d := NewChunkedDecoder(0, 0)
	raw := []byte("4\r\nabcd\r\n0\r\n\r\n")
	var body []byte
	done := false
	for _, b := range raw {
		chunk, _, status, err := d.Feed([]byte{b})
		require.NoError(t, err)
		body = append(body, chunk...)
		if status == ChunkDone {
			done = true
		}
	}
	assert.True(t, done)
	assert.Equal(t, "abcd", string(body))
}

func TestChunkedDecoderRejectsOversizeChunk(t *testing.T) {
	d := NewChunkedDecoder(4, 0)
	_, _, status, err := d.Feed([]byte("ff\r\n"))
	assert.Equal(t, ChunkMalformed, status)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}

func TestChunkedDecoderRejectsOversizeBody(t *testing.T) {
	d := NewChunkedDecoder(0, 3)
	data := []byte("5\r\nhello\r\n")
	var err error
	var status ChunkStatus
	for len(data) > 0 {
		var consumed int
		_, consumed, status, err = d.Feed(data)
		data = data[consumed:]
		if status != ChunkNeedMore {
			break
		}
	}
	assert.Equal(t, ChunkMalformed, status)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}

func TestChunkedDecoderRejectsMalformedSize(t *testing.T) {
	d := NewChunkedDecoder(0, 0)
	_, _, status, err := d.Feed([]byte("zz\r\n"))
	assert.Equal(t, ChunkMalformed, status)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}

func TestChunkedDecoderDiscardsTrailers(t *testing.T) {
	d := NewChunkedDecoder(0, 0)
	data := []byte("3\r\nfoo\r\n0\r\nX-Trailer: ignored\r\n\r\n")
	var body []byte
	var status ChunkStatus
	for len(data) > 0 {
		chunk, consumed, st, err := d.Feed(data)
		require.NoError(t, err)
		body = append(body, chunk...)
		data = data[consumed:]
		status = st
		if st == ChunkDone {
			break
		}
	}
	assert.Equal(t, ChunkDone, status)
	assert.Equal(t, "foo", string(body))
}
