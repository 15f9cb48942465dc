package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/cuemby/tunnelgate/pkg/log"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// acceptLoop accepts connections on ln (bound by Relay.Start) and, for
// each accepted connection, assigns a session and drives it end to end
// (spec.md §4.1). It returns when the listener is closed, which happens
// in Relay.shutdown, or on any other accept error.
func (r *Relay) acceptLoop(ln net.Listener, wg *sync.WaitGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error(fmt.Sprintf("ingress: accept: %v", err))
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.handleConn(conn)
		}()
	}
}

// handleConn owns one application TCP connection for its entire
// lifetime: session init, read loop, and teardown.
func (r *Relay) handleConn(conn net.Conn) {
	sessionID := tunnel.NewSessionID()
	sess := tunnel.NewSession(sessionID)
	logger := log.WithSession(sessionID)

	if err := r.registry.Insert(sessionID, &tunnel.Entry{Session: sess, Conn: conn}); err != nil {
		// Session ids are freshly minted UUIDs, so a duplicate means the
		// registry is inconsistent: abort the process.
		panic(fmt.Sprintf("ingress: %v", err))
	}

	ctx := context.Background()
	if err := r.client.put(ctx, sessionID); err != nil {
		logger.Warn().Err(err).Msg("ingress: PUT to egress failed, dropping connection")
		r.registry.RemoveAndTake(sessionID)
		conn.Close()
		return
	}

	sess.SetState(tunnel.StateOpen)
	metrics.SessionsOpenedTotal.WithLabelValues("ingress").Inc()
	metrics.ActiveSessions.WithLabelValues("ingress").Inc()
	logger.Info().Msg("ingress: session open")

	err := tunnel.RunReadLoop(conn, sess, func(chunk []byte) error {
		metrics.BytesTransferredTotal.WithLabelValues("ingress", "out").Add(float64(len(chunk)))
		return r.client.post(ctx, sessionID, chunk)
	})
	if err != nil {
		logger.Debug().Err(err).Msg("ingress: read loop ended")
	}

	sess.SetState(tunnel.StateClosing)
	r.registry.RemoveAndTake(sessionID)
	conn.Close()
	metrics.ActiveSessions.WithLabelValues("ingress").Dec()

	deleteCtx, cancel := context.WithTimeout(context.Background(), r.cfg.DeleteTimeout)
	defer cancel()
	if err := r.client.delete(deleteCtx, sessionID); err != nil {
		logger.Warn().Err(err).Msg("ingress: DELETE to egress failed")
	}
	sess.SetState(tunnel.StateClosed)
	metrics.SessionsClosedTotal.WithLabelValues("ingress", "client-disconnect").Inc()
	logger.Info().Msg("ingress: session closed")
}
