package client

import (
	"errors"
	"fmt"

	"github.com/danmuck/shogunctl/internal/protocol"
)

var (
	ErrAddressRequired      = errors.New("client: terminal address required")
	ErrConnect              = errors.New("client: connect failed")
	ErrAlreadyConnected     = errors.New("client: already connected")
	ErrNotConnected         = errors.New("client: not connected to terminal")
	ErrClosed               = errors.New("client: closed")
	ErrTimeout              = errors.New("client: command timed out")
	ErrSendFailed           = errors.New("client: send failed")
	ErrNilHandler           = errors.New("client: nil callback handler")
	ErrSubscriptionNotFound = errors.New("client: subscription not found")
	ErrCallbackFailed       = errors.New("client: callback handler failed")
)

// RemoteError is a non-ok result code returned by the host for a single
// command. The connection itself stays healthy; only the command failed.
type RemoteError struct {
	Command string
	Code    protocol.Code
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("client: command %s failed: %s", e.Command, e.Code)
}
