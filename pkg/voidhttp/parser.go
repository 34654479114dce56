package voidhttp

import (
	"bytes"
	"strconv"
)

// ParseStatus is the outcome of feeding bytes to a Parser.
type ParseStatus int

const (
	StatusIncomplete ParseStatus = iota
	StatusComplete
	StatusMalformed
)

type parsePhase int

const (
	phaseLeadingBlank parsePhase = iota
	phaseRequestLine
	phaseHeaders
	phaseDone
)

// Parser incrementally parses a request line and headers from a byte
// stream, across any number of Feed calls: a genuinely incremental
// line-at-a-time machine rather than a single buffered
// read-until-"\r\n\r\n" scan, since the connection FSM (connection.go)
// feeds whatever the last non-blocking read produced and must be able to
// report "incomplete" without looping on the socket.
type Parser struct {
	phase parsePhase
	buf   []byte // bytes fed but not yet classified into a line
	err   error

	lastHeaderName string // for obs-fold continuation
	haveLastHeader bool

	hasContentLength bool
	contentLengthVal int64
	hasTransferEnc   bool
	hasHost          bool

	req       *Request
	remainder []byte // bytes after the terminating CRLF, once StatusComplete
}

// NewParser returns a Parser primed to read a request line.
func NewParser() *Parser {
	return &Parser{phase: phaseLeadingBlank}
}

// Reset primes the parser for the next request on the same connection.
func (p *Parser) Reset() {
	p.phase = phaseLeadingBlank
	p.buf = p.buf[:0]
	p.err = nil
	p.lastHeaderName = ""
	p.haveLastHeader = false
	p.hasContentLength = false
	p.contentLengthVal = 0
	p.hasTransferEnc = false
	p.hasHost = false
	p.req = nil
	p.remainder = nil
}

// Remainder returns bytes fed but not consumed by the parsed head (body
// bytes, or the start of a pipelined next request), valid after
// StatusComplete.
func (p *Parser) Remainder() []byte {
	return p.remainder
}

// Feed appends data to the parser and attempts to advance through the
// request line and header block, writing results into req. Feed may be
// called repeatedly with successive reads until StatusComplete or
// StatusMalformed is returned.
func (p *Parser) Feed(req *Request, data []byte) (ParseStatus, error) {
	if p.req == nil {
		p.req = req
		p.req.ContentLength = -1
	}
	p.buf = append(p.buf, data...)

	for {
		switch p.phase {
		case phaseLeadingBlank:
			// Tolerate leading bare CRLF/LF between pipelined requests.
			for len(p.buf) > 0 && (p.buf[0] == '\r' || p.buf[0] == '\n') {
				p.buf = p.buf[1:]
			}
			if len(p.buf) == 0 {
				return StatusIncomplete, nil
			}
			p.phase = phaseRequestLine
			continue

		case phaseRequestLine:
			line, ok := p.takeLine()
			if !ok {
				if len(p.buf) > MaxRequestLineSize {
					return StatusMalformed, ErrRequestLineTooLarge
				}
				return StatusIncomplete, nil
			}
			if err := p.parseRequestLine(line); err != nil {
				return StatusMalformed, err
			}
			p.phase = phaseHeaders
			continue

		case phaseHeaders:
			line, ok := p.takeLine()
			if !ok {
				if len(p.buf) > MaxHeadersSize {
					return StatusMalformed, ErrHeadersTooLarge
				}
				return StatusIncomplete, nil
			}
			if len(line) == 0 {
				// End of header block.
				if p.hasContentLength && p.hasTransferEnc {
					return StatusMalformed, ErrSmuggling
				}
				p.phase = phaseDone
				p.remainder = p.buf
				p.buf = nil
				return StatusComplete, nil
			}
			if err := p.parseHeaderLine(line); err != nil {
				return StatusMalformed, err
			}
			continue

		case phaseDone:
			return StatusComplete, nil
		}
	}
}

// takeLine removes and returns the first CRLF- or LF-terminated line from
// p.buf (sans terminator), or ok=false if no terminator has arrived yet.
func (p *Parser) takeLine() (line []byte, ok bool) {
	idx := bytes.IndexByte(p.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	end := idx
	if end > 0 && p.buf[end-1] == '\r' {
		end--
	}
	line = p.buf[:end]
	p.buf = p.buf[idx+1:]
	return line, true
}

// parseRequestLine parses "METHOD SP target SP HTTP/MAJOR.MINOR".
func (p *Parser) parseRequestLine(line []byte) error {
	if len(line) > MaxRequestLineSize {
		return ErrRequestLineTooLarge
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrInvalidRequestLine
	}
	method := line[:sp1]
	if !isValidMethod(method) {
		return ErrInvalidMethod
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return ErrInvalidRequestLine
	}
	target := rest[:sp2]
	if containsControl(target) {
		return ErrInvalidTarget
	}

	version := rest[sp2+1:]
	major, minor, err := parseVersion(version)
	if err != nil {
		return err
	}

	p.req.Method = string(method)
	p.req.Target = string(target)
	path, rawQuery := parseTarget(p.req.Target)
	p.req.URL.Path = path
	p.req.URL.SetRawQuery(rawQuery)
	p.req.ProtoMajor = major
	p.req.ProtoMinor = minor
	return nil
}

func containsControl(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

// parseVersion parses "HTTP/M.N" with decimal single-digit-or-more M and N.
func parseVersion(v []byte) (major, minor int, err error) {
	const prefix = "HTTP/"
	if len(v) <= len(prefix) || string(v[:len(prefix)]) != prefix {
		return 0, 0, ErrInvalidVersion
	}
	v = v[len(prefix):]
	dot := bytes.IndexByte(v, '.')
	if dot <= 0 || dot == len(v)-1 {
		return 0, 0, ErrInvalidVersion
	}
	majS, minS := v[:dot], v[dot+1:]
	maj, err1 := strconv.Atoi(string(majS))
	min, err2 := strconv.Atoi(string(minS))
	if err1 != nil || err2 != nil || maj < 0 || min < 0 {
		return 0, 0, ErrInvalidVersion
	}
	return maj, min, nil
}

// parseHeaderLine parses one "Name: Value" line, handling obs-fold
// continuations.
func (p *Parser) parseHeaderLine(line []byte) error {
	if len(line[0:1]) > 0 && (line[0] == ' ' || line[0] == '\t') {
		// obs-fold: continuation of the previous header value.
		if !p.haveLastHeader {
			return ErrInvalidHeader
		}
		cont := bytes.TrimSpace(line)
		p.appendContinuation(p.lastHeaderName, string(cont))
		return nil
	}

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return ErrInvalidHeader
	}
	name := line[:colon]
	value := bytes.TrimSpace(line[colon+1:])

	if len(name) > MaxHeaderNameSize || len(value) > MaxHeaderValueSize {
		return ErrHeaderTooLarge
	}
	for _, c := range value {
		if c == '\r' || c == '\n' {
			return ErrInvalidHeader
		}
	}
	if bytes.IndexByte(name, ' ') >= 0 || bytes.IndexByte(name, '\t') >= 0 {
		return ErrInvalidHeader
	}

	nameStr := string(name)
	valueStr := string(value)
	p.req.Header.Add(nameStr, valueStr)
	p.lastHeaderName = nameStr
	p.haveLastHeader = true

	if err := p.noteSpecialHeader(nameStr, valueStr); err != nil {
		return err
	}
	if p.req.Header.Len() > MaxHeaderCount {
		return ErrTooManyHeaders
	}
	return nil
}

// appendContinuation joins an obs-fold line to the most recently added
// header with that name, with a single SP.
func (p *Parser) appendContinuation(name, cont string) {
	for i := len(p.req.Header.fields) - 1; i >= 0; i-- {
		if eqFold(p.req.Header.fields[i].name, name) {
			p.req.Header.fields[i].value += " " + cont
			return
		}
	}
}

func (p *Parser) noteSpecialHeader(name, value string) error {
	switch {
	case eqFold(name, HeaderContentLength):
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return ErrInvalidContentLength
		}
		if p.hasContentLength && p.contentLengthVal != n {
			return ErrDuplicateContentLength
		}
		p.hasContentLength = true
		p.contentLengthVal = n
		p.req.ContentLength = n
	case eqFold(name, HeaderTransferEncoding):
		p.hasTransferEnc = true
	case eqFold(name, HeaderHost):
		if p.hasHost {
			return ErrInvalidHeader
		}
		p.hasHost = true
	}
	return nil
}
