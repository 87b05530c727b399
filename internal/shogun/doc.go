// Package shogun owns the typed command surface of a Shogun Live host.
//
// Ownership boundary:
// - the command catalogue (names, inputs, outputs)
//
// - capture control and capture state access
//
// - terminal application info and schema checks
//
// Services are thin wrappers over one client connection; they decode
// replies into Go values and surface non-ok result codes unchanged as
// *client.RemoteError. Connection policy lives in the monitor package.
package shogun
