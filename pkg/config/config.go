package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the file named by the TUNNELGATE_DOTENV environment
// variable into the process environment, if set. It is a no-op when
// the variable is unset, so containerized deployments that only ever
// set real environment variables never touch the filesystem.
func LoadDotEnv() error {
	path := os.Getenv("TUNNELGATE_DOTENV")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading dotenv %s: %w", path, err)
	}
	return nil
}

// Ingress holds the ingress relay's configuration (spec.md §6).
type Ingress struct {
	// TCPPort is where the ingress relay listens for application TCP
	// clients.
	TCPPort int
	// ResponseHTTPPort is where the ingress callback server listens
	// for POSTs from the egress relay.
	ResponseHTTPPort int
	// MetricsPort serves /metrics, /health, and /ready.
	MetricsPort int
	// EgressBaseURL is the egress relay's base HTTP URL, e.g.
	// "http://egress-host:8002".
	EgressBaseURL string
	// CallbackHost is the host (or IP) the egress relay should use to
	// reach this ingress relay's callback server. Defaults to the
	// outbound IP the OS would pick to reach EgressBaseURL.
	CallbackHost string

	GzipEnabled        bool
	GzipThresholdBytes int

	PutTimeout      time.Duration
	PostTimeout     time.Duration
	DeleteTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// Egress holds the egress relay's configuration (spec.md §6).
type Egress struct {
	// HTTPPort is where the egress HTTP server listens for
	// PUT/POST/DELETE/GET from the ingress relay.
	HTTPPort int
	// MetricsPort serves /metrics, /health, and /ready.
	MetricsPort int
	// TargetIP and TargetTCPPort address the backend TCP server the
	// egress relay dials on session init.
	TargetIP      string
	TargetTCPPort int

	GzipEnabled        bool
	GzipThresholdBytes int

	// DialTimeout bounds the outbound TCP dial to the target on session
	// init (spec.md §4.4's PUT handling).
	DialTimeout time.Duration
	// CallbackTimeout bounds each POST back to the ingress callback URL
	// (spec.md §4.5, §5's recommended 10s default).
	CallbackTimeout time.Duration
	ShutdownTimeout time.Duration
}

// LoadIngress reads Ingress configuration from the environment,
// applying the spec's recommended defaults for anything unset.
func LoadIngress() (*Ingress, error) {
	tcpPort, err := envInt("TCP_PORT", 8001)
	if err != nil {
		return nil, err
	}
	responsePort, err := envInt("RESPONSE_HTTP_PORT", 9001)
	if err != nil {
		return nil, err
	}
	metricsPort, err := envInt("METRICS_PORT", 9101)
	if err != nil {
		return nil, err
	}
	gzipEnabled, err := envBool("GZIP_ENABLED", true)
	if err != nil {
		return nil, err
	}
	gzipThreshold, err := envInt("GZIP_THRESHOLD_BYTES", 1024)
	if err != nil {
		return nil, err
	}

	cfg := &Ingress{
		TCPPort:            tcpPort,
		ResponseHTTPPort:   responsePort,
		MetricsPort:        metricsPort,
		EgressBaseURL:      envString("EGRESS_BASE_URL", "http://localhost:8002"),
		CallbackHost:       envString("CALLBACK_HOST", ""),
		GzipEnabled:        gzipEnabled,
		GzipThresholdBytes: gzipThreshold,
		PutTimeout:         5 * time.Second,
		PostTimeout:        10 * time.Second,
		DeleteTimeout:      5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
	}
	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return nil, fmt.Errorf("config: TCP_PORT out of range: %d", cfg.TCPPort)
	}
	if cfg.ResponseHTTPPort <= 0 || cfg.ResponseHTTPPort > 65535 {
		return nil, fmt.Errorf("config: RESPONSE_HTTP_PORT out of range: %d", cfg.ResponseHTTPPort)
	}
	return cfg, nil
}

// LoadEgress reads Egress configuration from the environment, applying
// the spec's recommended defaults for anything unset.
func LoadEgress() (*Egress, error) {
	httpPort, err := envInt("HTTP_PORT", 8002)
	if err != nil {
		return nil, err
	}
	metricsPort, err := envInt("METRICS_PORT", 9102)
	if err != nil {
		return nil, err
	}
	targetPort, err := envInt("TARGET_TCP_PORT", 8003)
	if err != nil {
		return nil, err
	}
	gzipEnabled, err := envBool("GZIP_ENABLED", true)
	if err != nil {
		return nil, err
	}
	gzipThreshold, err := envInt("GZIP_THRESHOLD_BYTES", 1024)
	if err != nil {
		return nil, err
	}

	cfg := &Egress{
		HTTPPort:           httpPort,
		MetricsPort:        metricsPort,
		TargetIP:           envString("TARGET_IP", "localhost"),
		TargetTCPPort:      targetPort,
		GzipEnabled:        gzipEnabled,
		GzipThresholdBytes: gzipThreshold,
		DialTimeout:        5 * time.Second,
		CallbackTimeout:    10 * time.Second,
		ShutdownTimeout:    5 * time.Second,
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("config: HTTP_PORT out of range: %d", cfg.HTTPPort)
	}
	if cfg.TargetTCPPort <= 0 || cfg.TargetTCPPort > 65535 {
		return nil, fmt.Errorf("config: TARGET_TCP_PORT out of range: %d", cfg.TargetTCPPort)
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a bool, got %q: %w", key, v, err)
	}
	return b, nil
}
