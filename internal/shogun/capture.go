package shogun

import (
	"github.com/danmuck/shogunctl/internal/client"
)

// CaptureService drives capture control on one connected client. The
// client must carry a catalogue that includes the capture commands; see
// NewCatalog.
type CaptureService struct {
	c *client.Client
}

func NewCaptureService(c *client.Client) *CaptureService {
	return &CaptureService{c: c}
}

// CaptureName reads the configured name for the next capture.
func (s *CaptureService) CaptureName() (string, error) {
	return s.stringQuery(CmdCaptureName)
}

// SetCaptureName configures the name used for the next capture.
func (s *CaptureService) SetCaptureName(name string) error {
	_, err := s.c.Call(CmdSetCaptureName, name)
	return err
}

// CaptureDescription reads the description recorded with each capture.
func (s *CaptureService) CaptureDescription() (string, error) {
	return s.stringQuery(CmdCaptureDescription)
}

func (s *CaptureService) SetCaptureDescription(description string) error {
	_, err := s.c.Call(CmdSetCaptureDescription, description)
	return err
}

// CaptureFolder reads the folder captures are written to.
func (s *CaptureService) CaptureFolder() (string, error) {
	return s.stringQuery(CmdCaptureFolder)
}

func (s *CaptureService) SetCaptureFolder(folder string) error {
	_, err := s.c.Call(CmdSetCaptureFolder, folder)
	return err
}

// StartCapture begins recording a take and returns the capture id.
func (s *CaptureService) StartCapture() (uint32, error) {
	reply, err := s.c.Call(CmdStartCapture)
	if err != nil {
		return 0, err
	}
	var id uint32
	if err := reply.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// StopCapture finishes recording the identified capture. Id 0 stops the
// active capture regardless of how it was started.
func (s *CaptureService) StopCapture(id uint32) error {
	_, err := s.c.Call(CmdStopCapture, id)
	return err
}

// CancelCapture stops the identified capture and discards its data.
func (s *CaptureService) CancelCapture(id uint32) error {
	_, err := s.c.Call(CmdCancelCapture, id)
	return err
}

// LatestCaptureName reads the name of the most recent take.
func (s *CaptureService) LatestCaptureName() (string, error) {
	return s.stringQuery(CmdLatestCaptureName)
}

// LatestCaptureState reads the lifecycle state of the most recent take.
func (s *CaptureService) LatestCaptureState() (CaptureState, error) {
	reply, err := s.c.Call(CmdLatestCaptureState)
	if err != nil {
		return CaptureNone, err
	}
	var state CaptureState
	if err := reply.Scan(&state); err != nil {
		return CaptureNone, err
	}
	return state, nil
}

func (s *CaptureService) stringQuery(command string) (string, error) {
	reply, err := s.c.Call(command)
	if err != nil {
		return "", err
	}
	var out string
	if err := reply.Scan(&out); err != nil {
		return "", err
	}
	return out, nil
}
