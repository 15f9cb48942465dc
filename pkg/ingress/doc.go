// Package ingress implements the tunnel's ingress relay: it accepts
// application TCP connections, assigns each a session, and relays their
// byte streams to the egress relay over HTTP. A callback server on a
// separate port receives the reverse direction (spec.md §4.1, §4.6).
package ingress
