// Package metrics exposes Prometheus instrumentation for both relays:
// session counts, transferred bytes, and HTTP call latency. Neither the
// original prototype nor spec.md's core requires metrics — this is
// additive observability carried from the teacher's ambient stack.
package metrics
