// Package config decodes the server's JSON configuration document, using
// github.com/goccy/go-json rather than encoding/json for the faster
// decode path on a document that's re-read on every reload.
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Daemon holds the "daemon.*" config sub-tree.
type Daemon struct {
	Fork bool `json:"fork"`
	UID  int  `json:"uid"`
}

// Logger holds the "logger" config sub-tree. Only a level and an
// optional file path are modeled — the two knobs a config-driven zap
// logger actually needs.
type Logger struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Config is the top-level configuration document. Application is left as
// raw JSON and forwarded, undecoded, to the user's initialize hook — an
// opaque sub-tree this package never needs to understand.
type Config struct {
	Endpoints         []string        `json:"endpoints"`
	Threads           int             `json:"threads"`
	BufferSize        int             `json:"buffer_size"`
	Backlog           int             `json:"backlog"`
	MonitorPort       int             `json:"monitor-port"`
	Daemon            Daemon          `json:"daemon"`
	SafeMode          bool            `json:"safe_mode"`
	RequestHeader     string          `json:"request_header"`
	TraceHeader       string          `json:"trace_header"`
	Logger            Logger          `json:"logger"`
	Application       json.RawMessage `json:"application"`
	EnableStats       bool            `json:"enable_stats"`
	MetricsAddr       string          `json:"metrics_addr"`

	// path records where this Config was loaded from, so the reload path
	// (cmd/voidserved's serverAdapter.reload, driven by SIGHUP or
	// lifecycle.ConfigWatcher) knows what to re-read without threading the
	// path through separately.
	path string
}

// Load reads and decodes path into a Config. Required: endpoints must be
// non-empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("config: %s: endpoints is required", path)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	cfg.path = path
	return &cfg, nil
}

// Path returns the filesystem path this Config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SameEndpoints reports whether other binds the identical set of
// endpoints as c, in the same order. Reload refuses a config swap that
// would add or remove a listener, since listeners are already bound by
// the time a reload can happen.
func (c *Config) SameEndpoints(other *Config) bool {
	if len(c.Endpoints) != len(other.Endpoints) {
		return false
	}
	for i, ep := range c.Endpoints {
		if other.Endpoints[i] != ep {
			return false
		}
	}
	return true
}
