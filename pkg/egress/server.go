package egress

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// handleRequest dispatches the single "/" path by method, exactly per
// spec.md §4.4's table.
func (r *Relay) handleRequest(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPut:
		r.handlePut(w, req)
	case http.MethodPost:
		r.handlePost(w, req)
	case http.MethodDelete:
		r.handleDelete(w, req)
	case http.MethodGet:
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "HTTP to TCP service is running")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Relay) handlePut(w http.ResponseWriter, req *http.Request) {
	sessionID := req.Header.Get("Session-ID")
	callbackURL := req.Header.Get("X-Client-Callback-Url")
	if sessionID == "" || callbackURL == "" {
		http.Error(w, "missing Session-ID or X-Client-Callback-Url", http.StatusBadRequest)
		return
	}
	logger := log.WithSession(sessionID)

	if _, exists := r.registry.Get(sessionID); exists {
		// Re-PUT on an existing session id is a no-op success
		// (spec.md §4.4, §9 PUT idempotency).
		w.WriteHeader(http.StatusOK)
		return
	}

	target := fmt.Sprintf("%s:%d", r.cfg.TargetIP, r.cfg.TargetTCPPort)
	dialer := net.Dialer{Timeout: r.cfg.DialTimeout}
	conn, err := dialer.DialContext(req.Context(), "tcp", target)
	if err != nil {
		logger.Error().Err(err).Str("target", target).Msg("egress: dial target failed")
		http.Error(w, fmt.Sprintf("dial target failed: %v", err), http.StatusInternalServerError)
		return
	}

	sess := tunnel.NewSession(sessionID)
	sess.SetCallbackURL(callbackURL)

	pumpCtx, cancel := context.WithCancel(context.Background())
	if err := r.registry.Insert(sessionID, &tunnel.Entry{Session: sess, Conn: conn, Cancel: cancel}); err != nil {
		// Lost a race against a concurrent PUT for the same id.
		cancel()
		conn.Close()
		w.WriteHeader(http.StatusOK)
		return
	}
	sess.SetState(tunnel.StateOpen)
	metrics.SessionsOpenedTotal.WithLabelValues("egress").Inc()
	metrics.ActiveSessions.WithLabelValues("egress").Inc()
	logger.Info().Str("target", target).Msg("egress: session open")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runPump(pumpCtx, sessionID, sess, conn)
	}()

	w.WriteHeader(http.StatusOK)
}

func (r *Relay) handlePost(w http.ResponseWriter, req *http.Request) {
	sessionID := req.Header.Get("Session-ID")
	if sessionID == "" {
		http.Error(w, "missing Session-ID", http.StatusBadRequest)
		return
	}
	logger := log.WithSession(sessionID)

	entry, ok := r.registry.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	gzipped := req.Header.Get("X-Content-Encoding") == "gzip"
	raw, err := tunnel.Decode(body, gzipped)
	if err != nil {
		logger.Warn().Err(err).Msg("egress: envelope decode failed")
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}

	if _, err := entry.Conn.Write(raw); err != nil {
		logger.Warn().Err(err).Msg("egress: write to target socket failed")
		http.Error(w, fmt.Sprintf("write failed: %v", err), http.StatusInternalServerError)
		return
	}

	metrics.BytesTransferredTotal.WithLabelValues("egress", "out").Add(float64(len(raw)))
	w.WriteHeader(http.StatusOK)
}

func (r *Relay) handleDelete(w http.ResponseWriter, req *http.Request) {
	sessionID := req.Header.Get("Session-ID")
	if sessionID == "" {
		http.Error(w, "missing Session-ID", http.StatusBadRequest)
		return
	}
	logger := log.WithSession(sessionID)

	entry, ok := r.registry.RemoveAndTake(sessionID)
	if !ok {
		// Idempotent: tearing down an already-gone session is still
		// a success (spec.md §4.4).
		w.WriteHeader(http.StatusOK)
		return
	}
	entry.Session.SetState(tunnel.StateClosing)
	if entry.Cancel != nil {
		entry.Cancel()
	}
	entry.Conn.Close()
	entry.Session.SetState(tunnel.StateClosed)
	metrics.ActiveSessions.WithLabelValues("egress").Dec()
	metrics.SessionsClosedTotal.WithLabelValues("egress", "ingress-delete").Inc()
	logger.Info().Msg("egress: session closed")

	w.WriteHeader(http.StatusOK)
}
