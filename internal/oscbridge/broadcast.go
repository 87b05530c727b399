package oscbridge

import (
	"fmt"
	"net"
	"strconv"

	"github.com/hypebeast/go-osc/osc"

	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
)

// Outbound broadcast addresses.
const (
	AddrCaptureName        = "/ShogunLiveCaptureName"
	AddrCaptureDescription = "/ShogunLiveCaptureDescription"
	AddrCaptureFolder      = "/ShogunLiveCaptureFolder"
	AddrRecording          = "/ShogunLiveRecording"
)

// Broadcaster republishes monitor events as OSC messages, typically to the
// LAN broadcast address.
type Broadcaster struct {
	target string
	client *osc.Client
}

func NewBroadcaster(addr string) (*Broadcaster, error) {
	host, portRaw, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("oscbridge: broadcast address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		return nil, fmt.Errorf("oscbridge: broadcast port %q: %w", portRaw, err)
	}
	return &Broadcaster{target: addr, client: osc.NewClient(host, port)}, nil
}

// Publish sends the OSC rendering of the event, if it has one.
func (b *Broadcaster) Publish(ev monitor.Event) error {
	msg, ok := messageFor(ev)
	if !ok {
		return nil
	}
	if err := b.client.Send(msg); err != nil {
		return fmt.Errorf("oscbridge: broadcast %s: %w", msg.Address, err)
	}
	logs.Debugf("oscbridge.Broadcaster.Publish target=%s address=%s", b.target, msg.Address)
	return nil
}

func messageFor(ev monitor.Event) (*osc.Message, bool) {
	switch ev.Kind {
	case monitor.EventRecordingStarted:
		return osc.NewMessage(AddrRecording, int32(1)), true
	case monitor.EventRecordingStopped:
		return osc.NewMessage(AddrRecording, int32(0)), true
	case monitor.EventFieldChanged:
		switch ev.Field {
		case monitor.FieldCaptureName:
			return osc.NewMessage(AddrCaptureName, ev.Value), true
		case monitor.FieldCaptureDescription:
			return osc.NewMessage(AddrCaptureDescription, ev.Value), true
		case monitor.FieldCaptureFolder:
			return osc.NewMessage(AddrCaptureFolder, ev.Value), true
		}
	}
	return nil, false
}
