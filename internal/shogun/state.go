package shogun

import "fmt"

// CaptureState is the host's capture lifecycle enum as sent on the wire.
type CaptureState int32

const (
	CaptureNone CaptureState = iota
	CaptureStarting
	CaptureStarted
	CaptureStopping
	CaptureStopped
)

func (s CaptureState) String() string {
	switch s {
	case CaptureNone:
		return "None"
	case CaptureStarting:
		return "Starting"
	case CaptureStarted:
		return "Started"
	case CaptureStopping:
		return "Stopping"
	case CaptureStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("CaptureState(%d)", int32(s))
	}
}

// Recording reports whether the host is actively writing a take.
func (s CaptureState) Recording() bool { return s == CaptureStarted }
