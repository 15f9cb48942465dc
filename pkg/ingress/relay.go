package ingress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/tunnelgate/pkg/config"
	"github.com/cuemby/tunnelgate/pkg/health"
	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// Relay ties together the ingress TCP listener, the outbound HTTP
// client, and the inbound callback server into one running process
// (spec.md §2's ingress row).
type Relay struct {
	cfg      *config.Ingress
	registry *tunnel.Registry
	client   *client

	tcpListener net.Listener
	callbackSrv *http.Server
	metricsSrv  *http.Server
	wg          sync.WaitGroup

	tcpAddr net.Addr
	ready   chan struct{}
}

// New builds a Relay from configuration but does not yet bind any
// sockets; call Start for that.
func New(cfg *config.Ingress) *Relay {
	return &Relay{
		cfg:      cfg,
		registry: tunnel.NewRegistry(),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once all listeners are bound, ahead of Start
// returning. Tests that need the actual bound address (TCPPort 0 picks
// an ephemeral one) wait on this before calling Addr.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Addr returns the bound address of the application TCP listener.
// Valid only after Ready is closed.
func (r *Relay) Addr() net.Addr { return r.tcpAddr }

// Start binds the TCP listener, the callback HTTP server, and the
// metrics/health HTTP server, then blocks until ctx is cancelled, at
// which point it runs the shutdown sequence and returns.
func (r *Relay) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.TCPPort))
	if err != nil {
		return fmt.Errorf("ingress: listen tcp :%d: %w", r.cfg.TCPPort, err)
	}
	r.tcpListener = ln
	r.tcpAddr = ln.Addr()
	log.Info(fmt.Sprintf("ingress: TCP listener on %s", ln.Addr()))

	callbackLn, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.ResponseHTTPPort))
	if err != nil {
		ln.Close()
		return fmt.Errorf("ingress: listen callback :%d: %w", r.cfg.ResponseHTTPPort, err)
	}
	callbackPort := callbackLn.Addr().(*net.TCPAddr).Port
	callbackURL := r.callbackURL(callbackPort)
	r.client = newClient(r.cfg, callbackURL)

	r.callbackSrv = &http.Server{
		Handler:      http.HandlerFunc(r.callbackHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.Info(fmt.Sprintf("ingress: callback server on %s, advertising %s", callbackLn.Addr(), callbackURL))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.callbackSrv.Serve(callbackLn); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("ingress: callback server: %v", err))
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
		callbackLn.Close()
		return fmt.Errorf("ingress: listen metrics %s: %w", r.metricsSrv.Addr, err)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsSrv.Serve(metricsLn); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("ingress: metrics server: %v", err))
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.acceptLoop(ln, &r.wg)
	}()

	close(r.ready)

	<-ctx.Done()
	return r.shutdown()
}

// shutdown implements spec.md §5's process-shutdown contract: every
// session executes its close path, bounded by cfg.ShutdownTimeout.
func (r *Relay) shutdown() error {
	log.Info("ingress: shutting down")

	r.tcpListener.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	if err := r.callbackSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(fmt.Sprintf("ingress: callback server shutdown: %v", err))
	}
	if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(fmt.Sprintf("ingress: metrics server shutdown: %v", err))
	}

	r.registry.IterateForShutdown(func(id string, e *tunnel.Entry) {
		e.Session.SetState(tunnel.StateClosed)
		e.Conn.Close()
		metrics.SessionsClosedTotal.WithLabelValues("ingress", "shutdown").Inc()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.ShutdownTimeout):
		log.Warn("ingress: shutdown timed out waiting for goroutines")
	}

	log.Info("ingress: shutdown complete")
	return nil
}

// callbackURL computes the absolute URL the egress relay should use to
// reach this relay's callback server (spec.md §6's X-Client-Callback-Url
// resolution of the callback-addressing open question).
func (r *Relay) callbackURL(port int) string {
	host := r.cfg.CallbackHost
	if host == "" {
		host = r.outboundHost()
	}
	return fmt.Sprintf("http://%s:%d/", host, port)
}

// outboundHost guesses the local address the OS would use to reach the
// egress relay, by opening a UDP "connection" (no packets sent) and
// reading back the chosen local address.
func (r *Relay) outboundHost() string {
	target := strings.TrimPrefix(strings.TrimPrefix(r.cfg.EgressBaseURL, "http://"), "https://")
	conn, err := net.Dial("udp", target)
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String()
}

func (r *Relay) healthHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","active_sessions":` + fmt.Sprint(r.registry.Len()) + `}`))
}

// readyHandler reports readiness by probing the egress relay's own
// health string, per SPEC_FULL.md's supplemented readiness feature.
func (r *Relay) readyHandler(w http.ResponseWriter, req *http.Request) {
	checker := health.NewHTTPChecker(r.cfg.EgressBaseURL + "/").WithTimeout(2 * time.Second)
	result := checker.Check(req.Context())
	if !result.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready","reason":"` + result.Message + `"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
