package monitor

import "time"

// State is the monitor lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateWaiting      State = "waiting"
)

// EventKind tags entries on the monitor event stream.
type EventKind string

const (
	EventConnectionUp     EventKind = "connection_up"
	EventConnectionDown   EventKind = "connection_down"
	EventRecordingStarted EventKind = "recording_started"
	EventRecordingStopped EventKind = "recording_stopped"
	EventFieldChanged     EventKind = "field_changed"
)

// Watched field names carried on change events.
const (
	FieldRecording          = "recording"
	FieldCaptureName        = "capture_name"
	FieldCaptureDescription = "capture_description"
	FieldCaptureFolder      = "capture_folder"
)

// Event is one edge-triggered observation. Field and Value are set on
// field-change and recording events; Reason rides on connection-down.
type Event struct {
	Kind   EventKind `json:"kind"`
	Field  string    `json:"field,omitempty"`
	Value  string    `json:"value,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	State              State  `json:"state"`
	Address            string `json:"address"`
	Attempt            int    `json:"attempt,omitempty"`
	Protocol           string `json:"protocol,omitempty"`
	AppName            string `json:"app_name,omitempty"`
	AppVersion         string `json:"app_version,omitempty"`
	Recording          bool   `json:"recording"`
	CaptureName        string `json:"capture_name,omitempty"`
	CaptureDescription string `json:"capture_description,omitempty"`
	CaptureFolder      string `json:"capture_folder,omitempty"`
	LastError          string `json:"last_error,omitempty"`
}
