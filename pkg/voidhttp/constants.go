package voidhttp

// Header and request limits. RFC 7230 recommends an 8KB ceiling on the
// request line; the same number is applied to each header value.
const (
	MaxRequestLineSize = 8192
	MaxHeaderNameSize  = 256
	MaxHeaderValueSize = 8192
	MaxHeaderCount     = 100
	MaxHeadersSize     = 64 * 1024

	// DefaultReceiveBufferSize is the per-connection receive buffer size.
	DefaultReceiveBufferSize = 4096
)

var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	499: "Client Closed Request",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	597: "Abandoned",
	598: "Handler Exception",
	599: "Peer Disconnect",
}

// StatusText returns a default reason phrase for code, or "" if none is known.
func StatusText(code int) string {
	return statusText[code]
}

// Common header names, used throughout the package for case-insensitive
// comparisons without repeated string literals.
const (
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderConnection       = "Connection"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderHost             = "Host"
	HeaderLastModified     = "Last-Modified"
	HeaderIfModifiedSince  = "If-Modified-Since"
	HeaderDate             = "Date"
)

const (
	connClose     = "close"
	connKeepAlive = "keep-alive"
	chunkedToken  = "chunked"
)
