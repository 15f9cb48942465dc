package egress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// runPump reads the target TCP socket using the adaptive loop and POSTs
// each chunk to the session's callback URL (spec.md §4.5). One pump per
// session; since RunReadLoop only invokes onChunk once the previous call
// returned, POSTs for a session are never in flight concurrently,
// satisfying spec.md §5's per-session ordering requirement without an
// extra lock.
func (r *Relay) runPump(ctx context.Context, sessionID string, sess *tunnel.Session, conn net.Conn) {
	logger := log.WithSession(sessionID)

	err := tunnel.RunReadLoop(conn, sess, func(chunk []byte) error {
		metrics.BytesTransferredTotal.WithLabelValues("egress", "in").Add(float64(len(chunk)))
		return r.postCallback(ctx, sess.CallbackURL(), sessionID, chunk)
	})
	if err != nil {
		logger.Debug().Err(err).Msg("egress: response pump ended")
	}

	// Any HTTP failure, or the target closing, tears the session down
	// locally; no DELETE is sent to the ingress relay in this
	// direction (spec.md §4.5).
	if _, ok := r.registry.RemoveAndTake(sessionID); ok {
		sess.SetState(tunnel.StateClosed)
		conn.Close()
		metrics.ActiveSessions.WithLabelValues("egress").Dec()
		metrics.SessionsClosedTotal.WithLabelValues("egress", "pump-exit").Inc()
	}
}

func (r *Relay) postCallback(ctx context.Context, callbackURL, sessionID string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallbackTimeout)
	defer cancel()

	body, gzipped, err := tunnel.Encode(raw, r.envelopeCfg)
	if err != nil {
		return fmt.Errorf("egress: encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("egress: build callback POST: %w", err)
	}
	req.Header.Set("Session-ID", sessionID)
	req.Header.Set("Content-Type", "application/octet-stream")
	if gzipped {
		req.Header.Set("X-Content-Encoding", "gzip")
	}

	timer := metrics.NewTimer()
	resp, err := r.httpClient.Do(req)
	timer.ObserveDurationVec(metrics.HTTPRequestDuration, "egress", "POST")
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues("egress", "POST", "error").Inc()
		return fmt.Errorf("egress: callback POST %s: %w", callbackURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.HTTPRequestsTotal.WithLabelValues("egress", "POST", "non-2xx").Inc()
		return fmt.Errorf("egress: callback POST %s: status %d", callbackURL, resp.StatusCode)
	}
	metrics.HTTPRequestsTotal.WithLabelValues("egress", "POST", "ok").Inc()
	return nil
}
