package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIngressDefaults(t *testing.T) {
	clearTunnelEnv(t)

	cfg, err := LoadIngress()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.TCPPort)
	assert.Equal(t, 9001, cfg.ResponseHTTPPort)
	assert.True(t, cfg.GzipEnabled)
	assert.Equal(t, 1024, cfg.GzipThresholdBytes)
	assert.Equal(t, "http://localhost:8002", cfg.EgressBaseURL)
}

func TestLoadIngressFromEnv(t *testing.T) {
	clearTunnelEnv(t)
	t.Setenv("TCP_PORT", "9999")
	t.Setenv("GZIP_ENABLED", "false")
	t.Setenv("GZIP_THRESHOLD_BYTES", "2048")

	cfg, err := LoadIngress()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.TCPPort)
	assert.False(t, cfg.GzipEnabled)
	assert.Equal(t, 2048, cfg.GzipThresholdBytes)
}

func TestLoadIngressRejectsBadPort(t *testing.T) {
	clearTunnelEnv(t)
	t.Setenv("TCP_PORT", "not-a-number")

	_, err := LoadIngress()
	assert.Error(t, err)
}

func TestLoadIngressRejectsOutOfRangePort(t *testing.T) {
	clearTunnelEnv(t)
	t.Setenv("TCP_PORT", "70000")

	_, err := LoadIngress()
	assert.Error(t, err)
}

func TestLoadEgressDefaults(t *testing.T) {
	clearTunnelEnv(t)

	cfg, err := LoadEgress()
	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.HTTPPort)
	assert.Equal(t, "localhost", cfg.TargetIP)
	assert.Equal(t, 8003, cfg.TargetTCPPort)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.CallbackTimeout)
}

func TestLoadEgressFromEnv(t *testing.T) {
	clearTunnelEnv(t)
	t.Setenv("TARGET_IP", "10.0.0.5")
	t.Setenv("TARGET_TCP_PORT", "7000")

	cfg, err := LoadEgress()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.TargetIP)
	assert.Equal(t, 7000, cfg.TargetTCPPort)
}

func TestLoadDotEnvNoopWhenUnset(t *testing.T) {
	clearTunnelEnv(t)
	assert.NoError(t, LoadDotEnv())
}

func clearTunnelEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TCP_PORT", "RESPONSE_HTTP_PORT", "METRICS_PORT", "EGRESS_BASE_URL",
		"CALLBACK_HOST", "GZIP_ENABLED", "GZIP_THRESHOLD_BYTES",
		"HTTP_PORT", "TARGET_IP", "TARGET_TCP_PORT", "TUNNELGATE_DOTENV",
	} {
		t.Setenv(key, "")
	}
}
