// Command relay runs the in-memory HTTP relay that carries protocol messages
// between sastrust devices. Devices register under their identity with a
// signed registration; messages are routed by channel kind and queued per
// recipient device until it fetches and acknowledges them. See package
// internal/relay for the HTTP API.
//
// All state is held in memory and lost on process exit. The relay never sees
// private keys; it only sees public identities and protocol payloads, so it
// is intended for local use or as an untrusted middleman on a private
// network. Prometheus metrics are served at /metrics.
package main
