package voidhttp

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/voidwave/internal/reqid"
)

// Stats is the server's live counters: plain atomic counters, exposed
// both to the monitor side-channel (monitor.go) and to Prometheus
// (metrics.go) from the same source of truth.
type Stats struct {
	startedAt         time.Time
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	TotalRequests     atomic.Int64
	BytesReceived     atomic.Int64
	BytesSent         atomic.Int64
	Errors            atomic.Int64
}

// Duration reports how long the server has been running.
func (s *Stats) Duration() time.Duration {
	return time.Since(s.startedAt)
}

// RequestsPerSecond reports the lifetime request rate.
func (s *Stats) RequestsPerSecond() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.TotalRequests.Load()) / d
}

// Endpoint is one listen address: "host:port" (IPv4/IPv6 numeric address
// or hostname) or "unix:/path/to/socket".
type Endpoint struct {
	Network string // "tcp" or "unix"
	Address string
}

// ParseEndpoint parses a bind string: a leading "unix:" selects a
// UNIX-domain socket bound at the remaining path; anything else is a
// "host:port" TCP bind string, passed through to net.Listen as-is so
// numeric IPv6 addresses (e.g. "[::1]:8080") resolve the normal way.
func ParseEndpoint(s string) (Endpoint, error) {
	if rest, ok := strings.CutPrefix(s, "unix:"); ok {
		if rest == "" {
			return Endpoint{}, ErrInvalidEndpoint
		}
		return Endpoint{Network: "unix", Address: rest}, nil
	}
	if s == "" || !strings.Contains(s, ":") {
		return Endpoint{}, ErrInvalidEndpoint
	}
	return Endpoint{Network: "tcp", Address: s}, nil
}

// Config configures a Server.
type Config struct {
	Endpoints         []string
	Router            *Router
	Threads           int
	ReceiveBufferSize int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxKeepAliveCount int
	MaxChunkSize      int64
	MaxBodySize       int64
	DisableKeepalive  bool
	RequestIDHeader   string
	TraceHeader       string
	SafeMode          bool

	// Logger receives one structured line per completed request (§6's
	// access log) plus lifecycle/monitor events. Nil disables logging,
	// matching zap.NewNop()'s own no-op behavior.
	Logger *zap.Logger

	// ExtraStats is merged into the monitor's "i" JSON payload alongside
	// Stats. Read lazily on each monitor request, not cached.
	ExtraStats func() map[string]any
}

// DefaultConfig returns a Config with the same defaults as
// DefaultConnectionConfig plus a single worker (Threads is an explicit
// config value; 0 here means "pick one worker", not "pick automatically").
func DefaultConfig() Config {
	cc := DefaultConnectionConfig()
	return Config{
		Threads:           1,
		ReceiveBufferSize: cc.ReceiveBufferSize,
		ReadTimeout:       cc.ReadTimeout,
		WriteTimeout:      cc.WriteTimeout,
		IdleTimeout:       cc.IdleTimeout,
	}
}

func (cfg Config) connConfig() ConnectionConfig {
	return ConnectionConfig{
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxKeepAliveCount: cfg.MaxKeepAliveCount,
		MaxChunkSize:      cfg.MaxChunkSize,
		MaxBodySize:       cfg.MaxBodySize,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		RequestIDHeader:   cfg.RequestIDHeader,
		TraceHeader:       cfg.TraceHeader,
		DisableKeepalive:  cfg.DisableKeepalive,
		SafeMode:          cfg.SafeMode,
	}
}

// Server accepts connections on one or more endpoints and dispatches them
// through a WorkerPool.
type Server struct {
	cfg         Config
	stats       *Stats
	pool        *WorkerPool
	listeners   []net.Listener
	mu          sync.Mutex
	wg          sync.WaitGroup
	stopping    atomic.Bool
	router      atomic.Pointer[Router]
	application atomic.Pointer[[]byte]
}

// NewServer builds a Server from cfg. cfg.Router must be set.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, stats: &Stats{startedAt: time.Now()}}
	s.router.Store(cfg.Router)
	idHeader := reqidHeaderOf(cfg)
	s.pool = NewWorkerPool(cfg.Threads, func(conn net.Conn) *Connection {
		s.stats.TotalConnections.Add(1)
		s.stats.ActiveConnections.Add(1)
		c := NewConnection(conn, cfg.connConfig(), s.router.Load(), idHeader)
		c.onAccessLog = func(entry AccessLogEntry) {
			s.stats.TotalRequests.Add(1)
			s.stats.BytesReceived.Add(entry.BytesReceived)
			s.stats.BytesSent.Add(entry.BytesSent)
			if entry.Status >= 500 {
				s.stats.Errors.Add(1)
			}
			s.logAccess(entry)
		}
		c.onClose = func() {
			s.stats.ActiveConnections.Add(-1)
		}
		return c
	})
	return s
}

// Reload atomically swaps the router table and the opaque "application"
// sub-tree used by new connections from this point on; connections
// already in flight keep running against the router they were handed at
// accept time. application may be nil if the caller has nothing new to
// publish.
func (s *Server) Reload(router *Router, application []byte) {
	s.router.Store(router)
	if application != nil {
		s.application.Store(&application)
	}
}

// Application returns the most recently reloaded "application" sub-tree,
// or nil if none has been published yet.
func (s *Server) Application() []byte {
	p := s.application.Load()
	if p == nil {
		return nil
	}
	return *p
}

// logAccess writes one structured access-log line when a Logger is
// configured.
func (s *Server) logAccess(e AccessLogEntry) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Info("request",
		zap.String("method", e.Method),
		zap.String("url", e.URL),
		zap.String("local", e.LocalAddr),
		zap.String("remote", e.RemoteAddr),
		zap.Int("status", e.Status),
		zap.Uint64("request_id", e.RequestID),
		zap.Bool("trace", e.Trace),
		zap.Int64("bytes_received", e.BytesReceived),
		zap.Int64("bytes_sent", e.BytesSent),
		zap.Int64("total_us", e.TotalMicros()),
		zap.Duration("receive_time", e.ReceiveTime),
		zap.Duration("send_time", e.SendTime),
		zap.Duration("ttfb", e.TimeToFirstByte),
	)
}

func reqidHeaderOf(cfg Config) func(req *Request) (uint64, bool) {
	if cfg.RequestIDHeader == "" && cfg.TraceHeader == "" {
		return nil
	}
	h := reqid.Header{RequestID: cfg.RequestIDHeader, Trace: cfg.TraceHeader}
	return func(req *Request) (uint64, bool) {
		return reqid.Get(h, req.Header.Get)
	}
}

// Stats returns the server's live counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ListenAndServe binds every configured endpoint and serves until Close or
// Shutdown is called. It blocks until all listeners stop.
func (s *Server) ListenAndServe() error {
	for _, ep := range s.cfg.Endpoints {
		e, err := ParseEndpoint(ep)
		if err != nil {
			return err
		}
		ln, err := net.Listen(e.Network, e.Address)
		if err != nil {
			return err
		}
		if e.Network == "unix" {
			// UNIX sockets are created mode 0666; net.Listen applies the
			// process umask instead, so fix it up explicitly.
			// Close() already unlinks the path on shutdown (Go's default
			// for listeners it created via Listen/ListenUnix).
			if err := os.Chmod(e.Address, 0666); err != nil {
				ln.Close()
				return err
			}
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.acceptLoop(ln)
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			continue
		}
		s.pool.Submit(conn)
	}
}

// Shutdown stops accepting new connections and waits for the accept loops
// to exit, or until ctx is done. Connections already being served are
// neither closed nor waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopping.Store(true)
	s.mu.Lock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()
	s.pool.Stop()

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting and tears every listener down immediately.
func (s *Server) Close() error {
	s.stopping.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.pool.Stop()
	return nil
}
