// Package client owns the terminal RPC session: one TCP connection to a
// Shogun Live host, command dispatch with reply correlation, and callback
// subscriptions.
//
// Ownership boundary:
// - dial/handshake/teardown for a single connection
// - command id allocation and reply matching
// - callback registration refcounts and handler dispatch
//
// A Client is one-shot: it serves a single connection and is discarded
// once that connection fails or is closed. Reconnection policy lives in
// the monitor package.
package client
