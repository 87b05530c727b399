package client

import (
	"strings"
	"time"

	"github.com/danmuck/shogunctl/internal/protocol"
)

// DefaultPort is the terminal command port Shogun Live listens on.
const DefaultPort = 52800

// Config defines connection and call behavior for one terminal client.
// Every timeout is optional: a zero value disables that bound. The config
// layer fills sensible defaults for the daemon and CLI; DefaultConfig
// carries the same values for direct library use.
type Config struct {
	Address          string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	CallTimeout      time.Duration
	WriteTimeout     time.Duration
	// SocketTimeout bounds the idle gap between frames once streaming.
	// Expiry is fatal to the connection, like any other read failure.
	SocketTimeout time.Duration
	MaxFrameBytes int

	// OnFailure fires exactly once when a connected client goes down,
	// with the reason. Deliberate Close reports ErrClosed.
	OnFailure func(error)

	// OnCall observes every command round trip, for metrics.
	OnCall func(command string, elapsed time.Duration, err error)
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		CallTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxFrameBytes:    protocol.DefaultLimits().MaxFrameBytes,
	}
}

// WithDefaults fills the frame-size limit. Timeouts are left alone: zero
// means the caller chose to run without that bound.
func (c Config) WithDefaults() Config {
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultConfig().MaxFrameBytes
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}
