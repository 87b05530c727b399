package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/danmuck/shogunctl/internal/client"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/shogun"
)

// captureSource hands out the capture service bound to the live
// connection. The monitor satisfies it.
type captureSource interface {
	Capture() (*shogun.CaptureService, error)
	ForceReconnect()
}

// controller executes explicit user actions from the OSC and feed
// surfaces. A connection fault triggers exactly one forced reconnect and
// one retry; a second failure is surfaced to the caller.
type controller struct {
	src       captureSource
	retryWait time.Duration

	mu     sync.Mutex
	lastID uint32
}

func newController(src captureSource, retryWait time.Duration) *controller {
	if retryWait <= 0 {
		retryWait = 3 * time.Second
	}
	return &controller{src: src, retryWait: retryWait}
}

func (c *controller) StartCapture(name string) error {
	return c.withRetry("start", func(capture *shogun.CaptureService) error {
		if name != "" {
			if err := capture.SetCaptureName(name); err != nil {
				return err
			}
		}
		id, err := capture.StartCapture()
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.lastID = id
		c.mu.Unlock()
		logs.Infof("bridge.controller.StartCapture id=%d name=%q", id, name)
		return nil
	})
}

// StopCapture stops the capture started through this controller, or the
// active one when none was (id 0 targets whatever is recording).
func (c *controller) StopCapture() error {
	return c.withRetry("stop", func(capture *shogun.CaptureService) error {
		c.mu.Lock()
		id := c.lastID
		c.lastID = 0
		c.mu.Unlock()
		return capture.StopCapture(id)
	})
}

func (c *controller) SetCaptureName(name string) error {
	return c.withRetry("set_name", func(capture *shogun.CaptureService) error {
		return capture.SetCaptureName(name)
	})
}

func (c *controller) withRetry(action string, op func(*shogun.CaptureService) error) error {
	capture, err := c.src.Capture()
	if err == nil {
		err = op(capture)
	}
	if !isConnectionFault(err) {
		return err
	}

	logs.Warnf("bridge.controller retrying action=%s after=%v", action, err)
	c.src.ForceReconnect()
	capture, waitErr := c.waitCapture()
	if waitErr != nil {
		// Reconnect did not land in time; surface the original failure.
		return err
	}
	return op(capture)
}

// waitCapture polls for the connection the forced reconnect should bring
// up, bounded by retryWait.
func (c *controller) waitCapture() (*shogun.CaptureService, error) {
	deadline := time.Now().Add(c.retryWait)
	for {
		capture, err := c.src.Capture()
		if err == nil {
			return capture, nil
		}
		if !time.Now().Before(deadline) {
			return nil, err
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func isConnectionFault(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, client.ErrNotConnected) ||
		errors.Is(err, client.ErrClosed) ||
		errors.Is(err, client.ErrSendFailed)
}
