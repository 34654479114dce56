package voidhttp

import (
	"net"

	json "github.com/goccy/go-json"
)

// monitorHelp is the usage blurb returned for 'h' and any unrecognized
// input byte.
const monitorHelp = "usage: one byte selects a command\n  i - info (JSON stats)\n  s - stop the server\n  h - this help\n"

// MonitorStats is the JSON document the 'i' command returns: Stats plus
// whatever the application layer wants to merge in. Stats is the single
// source of truth, mirrored into both the monitor and Prometheus.
type MonitorStats struct {
	TotalConnections  int64          `json:"total_connections"`
	ActiveConnections int64          `json:"active_connections"`
	TotalRequests     int64          `json:"total_requests"`
	BytesReceived     int64          `json:"bytes_received"`
	BytesSent         int64          `json:"bytes_sent"`
	Errors            int64          `json:"errors"`
	UptimeSeconds     float64        `json:"uptime_seconds"`
	RequestsPerSecond float64        `json:"requests_per_second"`
	Application       map[string]any `json:"application,omitempty"`
}

func (s *Stats) snapshot(extra func() map[string]any) MonitorStats {
	ms := MonitorStats{
		TotalConnections:  s.TotalConnections.Load(),
		ActiveConnections: s.ActiveConnections.Load(),
		TotalRequests:     s.TotalRequests.Load(),
		BytesReceived:     s.BytesReceived.Load(),
		BytesSent:         s.BytesSent.Load(),
		Errors:            s.Errors.Load(),
		UptimeSeconds:     s.Duration().Seconds(),
		RequestsPerSecond: s.RequestsPerSecond(),
	}
	if extra != nil {
		ms.Application = extra()
	}
	return ms
}

// Monitor is a read-only side-channel acceptor: one byte selects 'i'
// (info), 's' (stop), or anything else (help).
type Monitor struct {
	ln      net.Listener
	server  *Server
	onStop  func()
	done    chan struct{}
}

// NewMonitor binds addr (a "host:port" or "unix:/path" bind string, per
// ParseEndpoint) and returns a Monitor serving server's stats. onStop is
// invoked when the 's' command is received, after the "Stopping...\n"
// reply has been written.
func NewMonitor(addr string, server *Server, onStop func()) (*Monitor, error) {
	ep, err := ParseEndpoint(addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return nil, err
	}
	return &Monitor{ln: ln, server: server, onStop: onStop, done: make(chan struct{})}, nil
}

// Serve accepts monitor connections until Close is called.
func (m *Monitor) Serve() error {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			select {
			case <-m.done:
				return nil
			default:
				continue
			}
		}
		go m.handle(conn)
	}
}

func (m *Monitor) handle(conn net.Conn) {
	defer conn.Close()
	var cmd [1]byte
	n, err := conn.Read(cmd[:])
	if err != nil || n == 0 {
		return
	}
	switch cmd[0] {
	case 'i':
		snap := m.server.stats.snapshot(m.server.cfg.ExtraStats)
		body, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return
		}
		conn.Write(body)
		conn.Write([]byte("\n"))
	case 's':
		conn.Write([]byte("Stopping...\n"))
		if m.onStop != nil {
			m.onStop()
		}
	default:
		conn.Write([]byte(monitorHelp))
	}
}

// Close stops accepting new monitor connections.
func (m *Monitor) Close() error {
	close(m.done)
	return m.ln.Close()
}
