// Package bridge wires the daemon together: the connection monitor, the
// OSC control/broadcast surface, and the HTTP status feed, under one
// signal-driven lifecycle.
//
// Ownership boundary: startup order, the event pump fanning monitor
// events out to the sinks, the heartbeat log line, and the retry-once
// policy for explicit user actions. Each subsystem keeps its own concern.
package bridge
