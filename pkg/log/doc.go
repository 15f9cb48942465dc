// Package log provides structured logging for the tunnel relays using
// zerolog: a single global logger configured once via Init, plus
// per-session child loggers created with WithSession so every line
// tied to a tunnel carries its session ID.
package log
