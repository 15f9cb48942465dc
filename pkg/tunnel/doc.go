// Package tunnel holds the relay-agnostic core of the TCP-over-HTTP
// tunnel: the session type, the session registry, the adaptive read
// buffer, and the payload envelope codec. Nothing in this package
// performs network I/O beyond what it's handed; pkg/ingress and
// pkg/egress own the listeners, HTTP clients, and HTTP servers that
// drive it.
package tunnel
