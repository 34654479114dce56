package voidclient

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yourusername/voidwave/pkg/voidhttp"
)

// Response is the result of a round trip. Body is read in full; voidclient
// has no streaming response contract of its own — that's a server-side
// concept only.
type Response struct {
	StatusCode int
	Reason     string
	Header     voidhttp.Header
	Body       []byte
}

// readResponse parses a status line, headers, and body off r, honoring
// Content-Length and chunked Transfer-Encoding the same way the server
// side does, since both directions of this protocol share the same wire
// grammar.
func readResponse(r *bufio.Reader) (*Response, bool, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, false, err
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, false, fmt.Errorf("voidclient: malformed status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, false, fmt.Errorf("voidclient: malformed status code %q", parts[1])
	}
	resp := &Response{StatusCode: code}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}

	for {
		hline, err := r.ReadString('\n')
		if err != nil {
			return nil, false, err
		}
		hline = strings.TrimRight(hline, "\r\n")
		if hline == "" {
			break
		}
		i := strings.IndexByte(hline, ':')
		if i < 0 {
			continue
		}
		name := hline[:i]
		value := strings.TrimSpace(hline[i+1:])
		resp.Header.Add(name, value)
	}

	keepAlive := !strings.EqualFold(resp.Header.Connection(), "close")

	if resp.Header.IsChunked() {
		body, err := readChunkedBody(r)
		if err != nil {
			return nil, false, err
		}
		resp.Body = body
		return resp, keepAlive, nil
	}

	if n, ok := resp.Header.ContentLength(); ok && n > 0 {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, false, err
		}
		resp.Body = buf
	}
	return resp, keepAlive, nil
}

func readChunkedBody(r *bufio.Reader) ([]byte, error) {
	var body []byte
	for {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		if i := strings.IndexByte(sizeLine, ';'); i >= 0 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("voidclient: malformed chunk size %q", sizeLine)
		}
		if size == 0 {
			// Trailing CRLF after the terminal zero-size chunk.
			if _, err := r.ReadString('\n'); err != nil {
				return nil, err
			}
			return body, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}
		body = append(body, chunk...)
		if _, err := r.ReadString('\n'); err != nil { // trailing CRLF
			return nil, err
		}
	}
}
