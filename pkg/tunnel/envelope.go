package tunnel

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// EnvelopeConfig controls whether, and at what size, payloads are
// gzip-compressed before being base64-wrapped for the wire (spec.md
// §4.3).
type EnvelopeConfig struct {
	GzipEnabled   bool
	GzipThreshold int
}

// DefaultEnvelopeConfig matches the spec's recommended defaults.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{GzipEnabled: true, GzipThreshold: 1024}
}

// Encode wraps raw payload bytes for the wire: gzip it when enabled and
// over threshold, then base64-encode the result. The returned gzipped
// flag tells the caller whether to set the X-Content-Encoding: gzip
// header.
func Encode(raw []byte, cfg EnvelopeConfig) (body []byte, gzipped bool, err error) {
	payload := raw
	if cfg.GzipEnabled && len(raw) > cfg.GzipThreshold {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, false, fmt.Errorf("envelope: gzip write: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, false, fmt.Errorf("envelope: gzip close: %w", err)
		}
		payload = buf.Bytes()
		gzipped = true
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
	base64.StdEncoding.Encode(encoded, payload)
	return encoded, gzipped, nil
}

// Decode reverses Encode: base64-decode the body, then gzip-decompress
// it if the sender declared X-Content-Encoding: gzip.
func Decode(body []byte, gzipped bool) ([]byte, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(decoded, body)
	if err != nil {
		return nil, fmt.Errorf("envelope: base64 decode: %w", err)
	}
	decoded = decoded[:n]

	if !gzipped {
		return decoded, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("envelope: gzip reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("envelope: gzip read: %w", err)
	}
	return raw, nil
}
