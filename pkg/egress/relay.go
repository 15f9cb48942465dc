package egress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/tunnelgate/pkg/config"
	"github.com/cuemby/tunnelgate/pkg/health"
	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// Relay ties together the egress HTTP server, the per-session TCP
// dialer and response pumps into one running process (spec.md §2's
// egress row).
type Relay struct {
	cfg         *config.Egress
	registry    *tunnel.Registry
	httpClient  *http.Client
	envelopeCfg tunnel.EnvelopeConfig

	httpSrv    *http.Server
	metricsSrv *http.Server
	wg         sync.WaitGroup

	httpAddr    net.Addr
	metricsAddr net.Addr
	ready       chan struct{}
}

// New builds a Relay from configuration but does not yet bind any
// sockets; call Start for that.
func New(cfg *config.Egress) *Relay {
	return &Relay{
		cfg:         cfg,
		registry:    tunnel.NewRegistry(),
		httpClient:  &http.Client{},
		envelopeCfg: tunnel.EnvelopeConfig{GzipEnabled: cfg.GzipEnabled, GzipThreshold: cfg.GzipThresholdBytes},
		ready:       make(chan struct{}),
	}
}

// Ready is closed once both listeners are bound, ahead of Start
// returning. Tests that need the actual bound address (HTTPPort 0 picks
// an ephemeral one) wait on this before calling Addr.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Addr returns the bound address of the main HTTP server. Valid only
// after Ready is closed.
func (r *Relay) Addr() net.Addr { return r.httpAddr }

// MetricsAddr returns the bound address of the /metrics, /health, and
// /ready HTTP server. Valid only after Ready is closed.
func (r *Relay) MetricsAddr() net.Addr { return r.metricsAddr }

// Start binds the main HTTP server and the metrics/health HTTP server,
// then blocks until ctx is cancelled, at which point it runs the
// shutdown sequence and returns.
func (r *Relay) Start(ctx context.Context) error {
	r.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:      http.HandlerFunc(r.handleRequest),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	ln, err := net.Listen("tcp", r.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("egress: listen %s: %w", r.httpSrv.Addr, err)
	}
	r.httpAddr = ln.Addr()
	log.Info(fmt.Sprintf("egress: HTTP server on %s, target %s:%d", ln.Addr(), r.cfg.TargetIP, r.cfg.TargetTCPPort))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("egress: HTTP server: %v", err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", r.healthHandler)
	mux.HandleFunc("/ready", r.readyHandler)
	r.metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", r.cfg.MetricsPort), Handler: mux}
	metricsLn, err := net.Listen("tcp", r.metricsSrv.Addr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("egress: listen metrics %s: %w", r.metricsSrv.Addr, err)
	}
	r.metricsAddr = metricsLn.Addr()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsSrv.Serve(metricsLn); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("egress: metrics server: %v", err))
		}
	}()

	close(r.ready)

	<-ctx.Done()
	return r.shutdown()
}

// shutdown implements spec.md §5's process-shutdown contract: every
// session executes its close path, bounded by cfg.ShutdownTimeout.
func (r *Relay) shutdown() error {
	log.Info("egress: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	if err := r.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(fmt.Sprintf("egress: HTTP server shutdown: %v", err))
	}
	if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(fmt.Sprintf("egress: metrics server shutdown: %v", err))
	}

	r.registry.IterateForShutdown(func(id string, e *tunnel.Entry) {
		e.Session.SetState(tunnel.StateClosed)
		if e.Cancel != nil {
			e.Cancel()
		}
		e.Conn.Close()
		metrics.SessionsClosedTotal.WithLabelValues("egress", "shutdown").Inc()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.ShutdownTimeout):
		log.Warn("egress: shutdown timed out waiting for goroutines")
	}

	log.Info("egress: shutdown complete")
	return nil
}

func (r *Relay) healthHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","active_sessions":` + fmt.Sprint(r.registry.Len()) + `}`))
}

// readyHandler reports whether the configured target is currently
// dialable, per SPEC_FULL.md's supplemented readiness feature.
func (r *Relay) readyHandler(w http.ResponseWriter, req *http.Request) {
	target := fmt.Sprintf("%s:%d", r.cfg.TargetIP, r.cfg.TargetTCPPort)
	checker := health.NewTCPChecker(target).WithTimeout(2 * time.Second)
	result := checker.Check(req.Context())
	if !result.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready","reason":"` + result.Message + `"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
