package ingress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/tunnelgate/pkg/config"
	"github.com/cuemby/tunnelgate/pkg/metrics"
	"github.com/cuemby/tunnelgate/pkg/tunnel"
)

// client issues the ingress relay's outbound PUT/POST/DELETE calls to
// the egress relay (spec.md §4.1). A single http.Client is shared
// across sessions; connection pooling across sessions is correct and
// desirable (spec.md §5).
type client struct {
	http          *http.Client
	baseURL       string
	callbackURL   string
	envelopeCfg   tunnel.EnvelopeConfig
	putTimeout    time.Duration
	postTimeout   time.Duration
	deleteTimeout time.Duration
}

func newClient(cfg *config.Ingress, callbackURL string) *client {
	return &client{
		http:          &http.Client{},
		baseURL:       cfg.EgressBaseURL,
		callbackURL:   callbackURL,
		envelopeCfg:   tunnel.EnvelopeConfig{GzipEnabled: cfg.GzipEnabled, GzipThreshold: cfg.GzipThresholdBytes},
		putTimeout:    cfg.PutTimeout,
		postTimeout:   cfg.PostTimeout,
		deleteTimeout: cfg.DeleteTimeout,
	}
}

// put registers a session with the egress relay and requests it dial
// the target. Idempotent on the egress side (spec.md §4.4).
func (c *client) put(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.putTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ingress: build PUT: %w", err)
	}
	req.Header.Set("Session-ID", sessionID)
	req.Header.Set("X-Client-Callback-Url", c.callbackURL)

	return c.do(req, "PUT")
}

// post delivers one chunk of application data to the egress relay.
func (c *client) post(ctx context.Context, sessionID string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.postTimeout)
	defer cancel()

	body, gzipped, err := tunnel.Encode(raw, c.envelopeCfg)
	if err != nil {
		return fmt.Errorf("ingress: encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ingress: build POST: %w", err)
	}
	req.Header.Set("Session-ID", sessionID)
	req.Header.Set("Content-Type", "application/octet-stream")
	if gzipped {
		req.Header.Set("X-Content-Encoding", "gzip")
	}

	return c.do(req, "POST")
}

// delete tears down a session on the egress relay. Idempotent; failures
// are logged by the caller, not retried (spec.md §4.1 step 4).
func (c *client) delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.deleteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ingress: build DELETE: %w", err)
	}
	req.Header.Set("Session-ID", sessionID)

	return c.do(req, "DELETE")
}

func (c *client) do(req *http.Request, method string) error {
	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	timer.ObserveDurationVec(metrics.HTTPRequestDuration, "ingress", method)
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues("ingress", method, "error").Inc()
		return fmt.Errorf("ingress: %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.HTTPRequestsTotal.WithLabelValues("ingress", method, "non-2xx").Inc()
		return fmt.Errorf("ingress: %s %s: status %d", method, req.URL, resp.StatusCode)
	}
	metrics.HTTPRequestsTotal.WithLabelValues("ingress", method, "ok").Inc()
	return nil
}
