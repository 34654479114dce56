package voidhttp

import (
	"strconv"
	"strings"
)

// stripCRLF neutralizes embedded CR/LF so a handler-supplied header value
// can never split the response into an injected extra header or body.
func stripCRLF(s string) string {
	if strings.IndexByte(s, '\r') < 0 && strings.IndexByte(s, '\n') < 0 {
		return s
	}
	r := strings.NewReplacer("\r", " ", "\n", " ")
	return r.Replace(s)
}

// encodeStatusLineAndHeaders renders a response's status line and headers
// as wire bytes, terminated by the blank line that precedes the body.
func encodeStatusLineAndHeaders(proto string, resp *Response) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, proto...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(resp.Code), 10)
	buf = append(buf, ' ')
	buf = append(buf, resp.ReasonPhrase()...)
	buf = append(buf, '\r', '\n')
	resp.Header.VisitAll(func(name, value string) bool {
		buf = append(buf, stripCRLF(name)...)
		buf = append(buf, ':', ' ')
		buf = append(buf, stripCRLF(value)...)
		buf = append(buf, '\r', '\n')
		return true
	})
	buf = append(buf, '\r', '\n')
	return buf
}
