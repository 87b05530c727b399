// Package oscbridge exposes capture control over OSC and republishes
// monitor events as outbound OSC broadcasts.
//
// Ownership boundary: the UDP surface only — address table, rate limiting,
// argument extraction, and the broadcast mapping. What a control message
// does to the terminal is decided by the injected Controller; connection
// policy stays in the monitor package.
package oscbridge
