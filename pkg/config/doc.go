// Package config loads the ingress and egress relays' configuration
// from environment variables (spec.md §6), the one piece of the system
// the core specification treats as an external collaborator. An
// optional .env file, pointed to by TUNNELGATE_DOTENV, can seed the
// environment before it's read; production deployments that only set
// real environment variables are unaffected by its absence.
package config
