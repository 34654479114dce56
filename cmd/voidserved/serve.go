package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/voidwave/internal/config"
	"github.com/yourusername/voidwave/pkg/lifecycle"
	"github.com/yourusername/voidwave/pkg/voidhttp"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		daemonize  bool
		pidfile    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, daemonize, pidfile)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to JSON config file (required)")
	cmd.Flags().BoolVar(&daemonize, "daemonize", false, "detach into the background")
	cmd.Flags().StringVar(&pidfile, "pidfile", "", "write the server's PID to this path")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(configPath string, daemonize bool, pidfile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if daemonize {
		childPID, spawned, err := lifecycle.Daemonize()
		if err != nil {
			return err
		}
		if spawned {
			// This is the original process: the detached child is now
			// running independently. Record its PID and exit 0.
			return lifecycle.WritePIDFile(pidfile, childPID)
		}
	}
	if err := lifecycle.WritePIDFile(pidfile, os.Getpid()); err != nil {
		return err
	}
	defer lifecycle.RemovePIDFile(pidfile)

	logger, err := newLogger(cfg.Logger.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Daemon.UID > 0 {
		if err := lifecycle.DropPrivileges(cfg.Daemon.UID); err != nil {
			return &setuidError{err: err}
		}
	}

	router := defaultRouter()
	server := voidhttp.NewServer(voidhttp.Config{
		Endpoints:         cfg.Endpoints,
		Router:            router,
		Threads:           cfg.Threads,
		ReceiveBufferSize: cfg.BufferSize,
		RequestIDHeader:   cfg.RequestHeader,
		TraceHeader:       cfg.TraceHeader,
		DisableKeepalive:  false,
		SafeMode:          cfg.SafeMode,
		Logger:            logger,
	})

	wrapped := newServerAdapter(server, logger, cfg)
	monitorSrv := (*voidhttp.Monitor)(nil)
	if cfg.MonitorPort > 0 {
		m, err := voidhttp.NewMonitor(fmt.Sprintf(":%d", cfg.MonitorPort), server, func() {
			wrapped.Stop()
		})
		if err != nil {
			return err
		}
		monitorSrv = m
		go m.Serve()
	}

	var metricsSrv *http.Server
	if cfg.EnableStats && cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", voidhttp.MetricsHandler(server.Stats(), prometheus.NewRegistry()))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	mon := lifecycle.NewMonitor()
	mon.Register(wrapped)
	go mon.Start()

	watcher, err := lifecycle.WatchConfig(cfg.Path(), logger, wrapped.reload)
	if err == nil {
		defer watcher.Close()
	}

	logger.Info("starting", zap.Strings("endpoints", cfg.Endpoints))
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopAncillary := func() {
		if monitorSrv != nil {
			monitorSrv.Close()
		}
		if metricsSrv != nil {
			metricsSrv.Close()
		}
	}

	select {
	case err := <-errCh:
		stopAncillary()
		return err
	case <-wrapped.stopped:
		stopAncillary()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case <-ctx.Done():
		stopAncillary()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// serverAdapter satisfies lifecycle.Server for a *voidhttp.Server, whose
// natural shutdown method takes a context (there's no bare Stop/Reload in
// the core API, since the core framework has no opinion on process
// lifecycle). It also remembers the config last applied, so a reload can
// validate the new one against it.
type serverAdapter struct {
	server  *voidhttp.Server
	logger  *zap.Logger
	stopped chan struct{}
	once    sync.Once

	mu  sync.Mutex
	cfg *config.Config
}

func newServerAdapter(server *voidhttp.Server, logger *zap.Logger, cfg *config.Config) *serverAdapter {
	return &serverAdapter{server: server, logger: logger, stopped: make(chan struct{}), cfg: cfg}
}

func (a *serverAdapter) Stop() {
	a.once.Do(func() { close(a.stopped) })
}

func (a *serverAdapter) Reload() {
	a.reload()
}

// reload re-reads the config file and, if its endpoints are unchanged
// from what's currently running (endpoints cannot be added or removed
// without a restart — listeners are already bound), atomically swaps in
// a freshly built router and the new "application" sub-tree. A config
// that fails to parse, or that tries to change endpoints, is rejected
// and the server keeps running on its current config.
func (a *serverAdapter) reload() {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := config.Load(a.cfg.Path())
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("reload: failed to re-read config, keeping current", zap.Error(err))
		}
		return
	}
	if !a.cfg.SameEndpoints(next) {
		if a.logger != nil {
			a.logger.Warn("reload: endpoints changed, refusing (restart required)")
		}
		return
	}
	a.server.Reload(defaultRouter(), []byte(next.Application))
	a.cfg = next
	if a.logger != nil {
		a.logger.Info("reload applied")
	}
}

func newLogger(level string) (*zap.Logger, error) {
	switch level {
	case "debug":
		return zap.NewDevelopment()
	case "", "info", "warn", "error":
		return zap.NewProduction()
	default:
		return zap.NewProduction()
	}
}

// defaultRouter registers a minimal /ping handler so the binary is
// runnable out of the box; a real deployment replaces this with
// application-specific routes built the same way.
func defaultRouter() *voidhttp.Router {
	r := voidhttp.NewRouter()
	ping := &voidhttp.SimpleHandler{
		Serve: func(req *voidhttp.Request, body []byte, reply voidhttp.ReplyStream) error {
			resp := voidhttp.NewResponse(200)
			resp.Header.SetContentLength(0)
			reply.SendHeaders(resp)
			reply.Close(false)
			return nil
		},
	}
	r.MustRegister(voidhttp.NewRoute(ping).ExactPath("/ping").Methods("GET"))
	return r
}
