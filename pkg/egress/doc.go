// Package egress implements the tunnel's egress relay: it accepts
// PUT/POST/DELETE/GET over HTTP from the ingress relay, dials the
// configured target TCP server per session, and pumps target-originated
// bytes back to the ingress relay's callback URL (spec.md §4.4, §4.5).
package egress
