// Package monitor keeps one terminal connection alive and turns polled
// capture state into edge-triggered events.
//
// Ownership boundary: the reconnect schedule (backoff, retry budget), the
// watched-field caches, and the event stream belong here. The wire client is
// owned by the client package; the monitor drives it through its public API
// only and interprets failures by returned error kind. Each connection cycle
// builds a fresh client instance and discards it on failure.
package monitor
