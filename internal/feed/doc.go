// Package feed serves the daemon's HTTP surface: health and readiness,
// the monitor status snapshot, Prometheus metrics, a websocket event
// stream, and a token-guarded capture control endpoint.
//
// Ownership boundary: HTTP/websocket transport only. Status comes from an
// injected Source, control actions go through an injected Controller, and
// events arrive via the Hub; the feed never talks to the terminal itself.
package feed
