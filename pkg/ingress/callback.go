package ingress

import (
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// callbackHandler implements the ingress relay's reverse-direction
// endpoint: the egress relay POSTs server-originated bytes here
// (spec.md §4.6). It carries no method other than POST at this path.
func (r *Relay) callbackHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := req.Header.Get("Session-ID")
	if sessionID == "" {
		http.Error(w, "missing Session-ID", http.StatusBadRequest)
		return
	}
	logger := log.WithSession(sessionID)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	gzipped := req.Header.Get("X-Content-Encoding") == "gzip"

	raw, err := tunnel.Decode(body, gzipped)
	if err != nil {
		logger.Warn().Err(err).Msg("ingress: callback envelope decode failed")
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}

	entry, ok := r.registry.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if entry.Session.State() == tunnel.StateClosing || entry.Session.State() == tunnel.StateClosed {
		http.Error(w, "session is closing", http.StatusGone)
		return
	}

	if _, err := entry.Conn.Write(raw); err != nil {
		logger.Warn().Err(err).Msg("ingress: write to application socket failed")
		http.Error(w, fmt.Sprintf("write failed: %v", err), http.StatusInternalServerError)
		return
	}

	metrics.BytesTransferredTotal.WithLabelValues("ingress", "in").Add(float64(len(raw)))
	w.WriteHeader(http.StatusOK)
}
