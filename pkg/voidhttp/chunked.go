package voidhttp

import (
	"bytes"
	"strconv"
)

// ChunkStatus is the outcome of feeding bytes to a ChunkedDecoder.
type ChunkStatus int

const (
	ChunkNeedMore ChunkStatus = iota
	ChunkHaveData
	ChunkDone
	ChunkMalformed
)

type chunkPhase int

const (
	chunkPhaseSize chunkPhase = iota
	chunkPhaseSizeCR
	chunkPhaseData
	chunkPhaseDataCR
	chunkPhaseDataLF
	chunkPhaseTrailer
	chunkPhaseDone
)

// ChunkedDecoder incrementally decodes an HTTP/1.1 chunked transfer-coded
// body: a byte-at-a-time, non-blocking state machine. The connection FSM
// feeds it exactly the bytes the last socket read produced and must get
// an unambiguous "need more" back rather than block waiting on the next
// read.
type ChunkedDecoder struct {
	phase        chunkPhase
	sizeBuf      []byte
	remaining    int64 // bytes left in the current chunk body
	maxChunkSize int64
	totalRead    int64
	maxBodySize  int64
}

// NewChunkedDecoder returns a decoder enforcing the given per-chunk and
// total-body size ceilings (<=0 means unbounded).
func NewChunkedDecoder(maxChunkSize, maxBodySize int64) *ChunkedDecoder {
	return &ChunkedDecoder{maxChunkSize: maxChunkSize, maxBodySize: maxBodySize}
}

// Reset primes the decoder for the next chunked body on the same
// connection.
func (c *ChunkedDecoder) Reset() {
	c.phase = chunkPhaseSize
	c.sizeBuf = c.sizeBuf[:0]
	c.remaining = 0
	c.totalRead = 0
}

// Feed advances the state machine over data. It returns the portion of data
// that is body payload (ChunkHaveData — the caller must deliver it to the
// handler before calling Feed again with fresh bytes), the count of input
// bytes consumed in producing it, and the status. On ChunkDone, consumed
// indexes just past the terminating CRLF of the zero-length final chunk
// (trailers, if any, are skipped but discarded — not surfaced to the
// handler).
func (c *ChunkedDecoder) Feed(data []byte) (chunkData []byte, consumed int, status ChunkStatus, err error) {
	i := 0
	for i < len(data) {
		switch c.phase {
		case chunkPhaseSize:
			b := data[i]
			i++
			if b == '\r' {
				c.phase = chunkPhaseSizeCR
				continue
			}
			if b == ';' {
				// chunk extension: skip to CR.
				for i < len(data) && data[i] != '\r' {
					i++
				}
				continue
			}
			if !isHexDigit(b) {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			c.sizeBuf = append(c.sizeBuf, b)
			if len(c.sizeBuf) > 16 {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}

		case chunkPhaseSizeCR:
			if data[i] != '\n' {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			i++
			size, err := strconv.ParseInt(string(c.sizeBuf), 16, 64)
			if err != nil || size < 0 {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			if c.maxChunkSize > 0 && size > c.maxChunkSize {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			c.sizeBuf = c.sizeBuf[:0]
			if size == 0 {
				c.phase = chunkPhaseTrailer
				continue
			}
			c.remaining = size
			c.phase = chunkPhaseData

		case chunkPhaseData:
			n := len(data) - i
			if int64(n) > c.remaining {
				n = int(c.remaining)
			}
			if n == 0 {
				return nil, i, ChunkNeedMore, nil
			}
			chunk := data[i : i+n]
			i += n
			c.remaining -= int64(n)
			c.totalRead += int64(n)
			if c.maxBodySize > 0 && c.totalRead > c.maxBodySize {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			if c.remaining == 0 {
				c.phase = chunkPhaseDataCR
			}
			return chunk, i, ChunkHaveData, nil

		case chunkPhaseDataCR:
			if data[i] != '\r' {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			i++
			c.phase = chunkPhaseDataLF

		case chunkPhaseDataLF:
			if data[i] != '\n' {
				return nil, i, ChunkMalformed, ErrChunkedEncoding
			}
			i++
			c.phase = chunkPhaseSize

		case chunkPhaseTrailer:
			// Discard trailer lines up through the terminating blank line.
			idx := bytes.IndexByte(data[i:], '\n')
			if idx < 0 {
				return nil, i, ChunkNeedMore, nil
			}
			line := data[i : i+idx]
			i += idx + 1
			if len(bytes.TrimRight(line, "\r")) == 0 {
				c.phase = chunkPhaseDone
				return nil, i, ChunkDone, nil
			}

		case chunkPhaseDone:
			return nil, i, ChunkDone, nil
		}
	}
	if c.phase == chunkPhaseDone {
		return nil, i, ChunkDone, nil
	}
	return nil, i, ChunkNeedMore, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
