// Package voidclient is the HTTP client sibling to voidhttp: an
// async-flavored client built on a pooled, multi-connection transport.
// Connections are tracked in a plain mutex-guarded idle list per host,
// since requests are issued from arbitrary goroutines against a shared
// per-host pool with idle eviction.
package voidclient

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

var (
	ErrPoolClosed    = errors.New("voidclient: pool closed")
	ErrConnTimeout   = errors.New("voidclient: connection acquisition timed out")
)

// PoolConfig configures a per-host connection pool.
type PoolConfig struct {
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	MaxIdleTime         time.Duration
	DialTimeout         time.Duration
}

// DefaultPoolConfig returns reasonable defaults for the knobs this
// client actually uses (no HTTP/2 or HTTP/3 preference: this client is
// HTTP/1.x only).
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnsPerHost:     64,
		MaxIdleConnsPerHost: 8,
		MaxIdleTime:         90 * time.Second,
		DialTimeout:         30 * time.Second,
	}
}

// pooledConn wraps a net.Conn with the bookkeeping needed to decide
// whether it's still safe to reuse. It carries its *bufio.Reader along
// with it: a fresh bufio.Reader wrapping a reused conn would silently
// drop any bytes the previous round trip had already read into its
// internal buffer but not yet consumed (a pipelined peer, or a chunked
// body whose trailing CRLF shares a packet with the next response's
// status line), corrupting the next read off that connection.
type pooledConn struct {
	conn     net.Conn
	reader   *bufio.Reader
	lastUsed time.Time
}

// hostPool is the idle connection list for one "host:port" key.
type hostPool struct {
	mu      sync.Mutex
	idle    []*pooledConn
	active  int
	waiters []chan struct{}
}

// wakeOne releases one blocked Get waiter, if any; called with hp.mu held.
func (hp *hostPool) wakeOne() {
	if len(hp.waiters) == 0 {
		return
	}
	w := hp.waiters[0]
	hp.waiters = hp.waiters[1:]
	close(w)
}

// ConnectionPool hands out pooled connections keyed by "host:port",
// one hostPool per distinct target rather than a single client-wide pool.
type ConnectionPool struct {
	cfg    PoolConfig
	mu     sync.Mutex
	hosts  map[string]*hostPool
	closed bool
}

// NewConnectionPool builds an empty pool.
func NewConnectionPool(cfg PoolConfig) *ConnectionPool {
	return &ConnectionPool{cfg: cfg, hosts: make(map[string]*hostPool)}
}

func (p *ConnectionPool) hostPoolFor(key string) *hostPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	hp, ok := p.hosts[key]
	if !ok {
		hp = &hostPool{}
		p.hosts[key] = hp
	}
	return hp
}

// Get returns an idle connection (and its surviving buffered reader) for
// key if one is fresh enough, or dials a new one via dial. It respects
// ctx's deadline both for waiting on a free slot and for the dial itself.
// If cfg.MaxConnsPerHost is set and every slot for key is already checked
// out, Get blocks until one is returned via Put or ctx is done.
func (p *ConnectionPool) Get(ctx context.Context, key, network, addr string) (net.Conn, *bufio.Reader, error) {
	if p.isClosed() {
		return nil, nil, ErrPoolClosed
	}
	hp := p.hostPoolFor(key)

	for {
		hp.mu.Lock()
		if p.cfg.MaxConnsPerHost > 0 && hp.active >= p.cfg.MaxConnsPerHost {
			waiter := make(chan struct{})
			hp.waiters = append(hp.waiters, waiter)
			hp.mu.Unlock()
			select {
			case <-waiter:
				continue
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		now := time.Now()
		for len(hp.idle) > 0 {
			pc := hp.idle[len(hp.idle)-1]
			hp.idle = hp.idle[:len(hp.idle)-1]
			if p.cfg.MaxIdleTime > 0 && now.Sub(pc.lastUsed) > p.cfg.MaxIdleTime {
				pc.conn.Close()
				continue
			}
			hp.active++
			hp.mu.Unlock()
			return pc.conn, pc.reader, nil
		}
		hp.active++
		hp.mu.Unlock()

		d := net.Dialer{Timeout: p.cfg.DialTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			hp.mu.Lock()
			hp.active--
			hp.wakeOne()
			hp.mu.Unlock()
			return nil, nil, err
		}
		return conn, bufio.NewReader(conn), nil
	}
}

// Put returns conn (and its reader, which may hold buffered bytes
// belonging to a not-yet-read response) to the idle pool for key, or
// closes it if the pool is at capacity or the caller signals it's no
// longer reusable (healthy == false, e.g. after a non-keep-alive
// response).
func (p *ConnectionPool) Put(key string, conn net.Conn, reader *bufio.Reader, healthy bool) {
	hp := p.hostPoolFor(key)
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.active--
	defer hp.wakeOne()
	if !healthy || p.isClosed() || len(hp.idle) >= p.cfg.MaxIdleConnsPerHost {
		conn.Close()
		return
	}
	hp.idle = append(hp.idle, &pooledConn{conn: conn, reader: reader, lastUsed: time.Now()})
}

func (p *ConnectionPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close closes every idle connection and marks the pool closed; active
// (checked-out) connections are closed as they're returned via Put.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	p.closed = true
	hosts := p.hosts
	p.mu.Unlock()

	for _, hp := range hosts {
		hp.mu.Lock()
		for _, pc := range hp.idle {
			pc.conn.Close()
		}
		hp.idle = nil
		hp.mu.Unlock()
	}
	return nil
}
