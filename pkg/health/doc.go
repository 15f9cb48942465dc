// Package health provides reusable liveness/readiness checkers.
//
// TCPChecker probes the egress relay's configured target address before
// the relay reports itself ready to accept PUTs. HTTPChecker probes the
// egress relay's own GET health string from the ingress relay's
// readiness handler. Neither original prototype had a readiness concept
// beyond the bare liveness string on GET "/" (spec.md §4.4, kept
// unchanged here) — the /ready endpoint built on this package is
// additive and does not alter that wire behavior.
package health
