package voidhttp

import "errors"

// Parser errors.
var (
	ErrInvalidRequestLine = errors.New("voidhttp: invalid request line")
	ErrInvalidMethod      = errors.New("voidhttp: invalid HTTP method")
	ErrInvalidTarget      = errors.New("voidhttp: invalid request target")
	ErrInvalidVersion     = errors.New("voidhttp: invalid or unsupported protocol version")
	ErrInvalidHeader      = errors.New("voidhttp: invalid HTTP header")
	ErrHeaderTooLarge     = errors.New("voidhttp: header name or value too large")
	ErrTooManyHeaders     = errors.New("voidhttp: too many headers")
	ErrRequestLineTooLarge = errors.New("voidhttp: request line too large")
	ErrHeadersTooLarge    = errors.New("voidhttp: headers too large")
	ErrChunkedEncoding    = errors.New("voidhttp: chunked encoding error")
	ErrInvalidContentLength = errors.New("voidhttp: invalid Content-Length")
	ErrSmuggling          = errors.New("voidhttp: request has both Content-Length and Transfer-Encoding")
	ErrDuplicateContentLength = errors.New("voidhttp: duplicate Content-Length headers with different values")
)

// Connection / dispatch errors.
var (
	ErrConnectionClosed   = errors.New("voidhttp: connection closed")
	ErrPeerReset          = errors.New("voidhttp: peer reset connection")
	ErrHandlerPanic       = errors.New("voidhttp: handler panicked")
	ErrNoRoute            = errors.New("voidhttp: no matching route")
	ErrAmbiguousPredicate = errors.New("voidhttp: conflicting path predicate on route")
	ErrHeadersAlreadySent = errors.New("voidhttp: headers already sent")
	ErrServerStopped      = errors.New("voidhttp: server stopped")
	ErrInvalidEndpoint    = errors.New("voidhttp: invalid endpoint bind string")
)
