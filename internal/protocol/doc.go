// Package protocol owns the terminal wire contract and parsing primitives.
//
// Ownership boundary:
// - NUL-sentinel frame scanning and canonical encoding
// - header forms (command, reply, callback push) and the version handshake
// - host result codes
package protocol
