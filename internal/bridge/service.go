package bridge

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/shogunctl/internal/client"
	"github.com/danmuck/shogunctl/internal/feed"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
	"github.com/danmuck/shogunctl/internal/observability"
	"github.com/danmuck/shogunctl/internal/oscbridge"
	"github.com/danmuck/shogunctl/internal/protocol"
)

var ErrInvalidHeartbeatInterval = errors.New("bridge: invalid heartbeat interval")

// Config assembles the daemon's subsystems. Disabled surfaces are simply
// not started; the monitor always runs.
type Config struct {
	Monitor     monitor.Config
	OSC         oscbridge.Config
	OSCEnabled  bool
	Feed        feed.Config
	FeedEnabled bool
	Heartbeat   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Monitor:     monitor.DefaultConfig(),
		OSC:         oscbridge.DefaultConfig(),
		OSCEnabled:  true,
		Feed:        feed.DefaultConfig(),
		FeedEnabled: true,
		Heartbeat:   15 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig. Enabled flags are
// left alone; false is a valid choice.
func (c Config) WithDefaults() Config {
	c.Monitor = c.Monitor.WithDefaults()
	c.OSC = c.OSC.WithDefaults()
	c.Feed = c.Feed.WithDefaults()
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultConfig().Heartbeat
	}
	return c
}

// Service runs the bridge daemon lifecycle as a standalone process.
type Service struct {
	cfg Config
}

func NewService(cfg Config) (*Service, error) {
	cfg = cfg.WithDefaults()
	if cfg.Heartbeat <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	if err := cfg.Monitor.Client.WithDefaults().Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg}, nil
}

// Run blocks until a process signal shuts the daemon down.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	observability.RegisterMetrics()

	monCfg := s.cfg.Monitor
	monCfg.Client.OnCall = recordCall
	monCfg.Client.OnFailure = recordFailure
	mon, err := monitor.New(monCfg)
	if err != nil {
		return err
	}
	if err := mon.Start(); err != nil {
		return err
	}
	defer mon.Stop()

	ctl := newController(mon, 0)
	hub := feed.NewHub()
	defer hub.Close()

	var broadcaster *oscbridge.Broadcaster
	var oscServer *oscbridge.Server
	if s.cfg.OSCEnabled {
		broadcaster, err = oscbridge.NewBroadcaster(s.cfg.OSC.BroadcastAddr)
		if err != nil {
			return err
		}
		oscServer, err = oscbridge.NewServer(s.cfg.OSC, ctl)
		if err != nil {
			return err
		}
		if err := oscServer.Start(); err != nil {
			return err
		}
		defer oscServer.Stop()
	}

	if s.cfg.FeedEnabled {
		feedServer := feed.NewServer(s.cfg.Feed, mon, ctl, hub)
		if err := feedServer.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = feedServer.Shutdown(shutdownCtx)
		}()
	}

	pumpDone := make(chan struct{})
	go s.pumpEvents(mon, broadcaster, hub, pumpDone)
	// The pump drains until Stop closes the event stream, so the monitor
	// must come down before the join.
	defer func() {
		mon.Stop()
		<-pumpDone
	}()

	logs.Infof("bridge.Service.run up address=%q osc=%v feed=%v heartbeat=%s",
		s.cfg.Monitor.Client.Address, s.cfg.OSCEnabled, s.cfg.FeedEnabled, s.cfg.Heartbeat)

	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logs.Infof("bridge.Service.run shutdown")
			return nil
		case <-ticker.C:
			status := mon.Snapshot()
			logs.Infof(
				"bridge.Service.heartbeat state=%s recording=%v capture=%q attempt=%d subscribers=%d",
				status.State, status.Recording, status.CaptureName, status.Attempt,
				hub.SubscriberCount(),
			)
		}
	}
}

// pumpEvents fans the monitor stream out to metrics, the OSC broadcaster,
// and the feed hub. It drains until the monitor closes the stream.
func (s *Service) pumpEvents(mon *monitor.Monitor, broadcaster *oscbridge.Broadcaster, hub *feed.Hub, done chan<- struct{}) {
	defer close(done)
	for ev := range mon.Events() {
		observability.RecordMonitorEvent(string(ev.Kind))
		switch ev.Kind {
		case monitor.EventConnectionUp:
			observability.SetConnected(true)
		case monitor.EventConnectionDown:
			observability.SetConnected(false)
			observability.RecordReconnect()
		}
		if broadcaster != nil {
			if err := broadcaster.Publish(ev); err != nil {
				logs.Warnf("bridge.Service.pumpEvents broadcast err=%v", err)
			}
		}
		hub.Publish(ev)
	}
}

// recordCall labels a command round trip for the rpc metrics.
func recordCall(command string, elapsed time.Duration, err error) {
	code := "ok"
	switch {
	case err == nil:
	case errors.Is(err, client.ErrTimeout):
		code = "timeout"
	case errors.Is(err, client.ErrNotConnected):
		code = "not_connected"
	default:
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			code = remote.Code.String()
		} else {
			code = "error"
		}
	}
	observability.RecordCommand(command, code, elapsed)
}

// recordFailure classifies a fatal connection failure for metrics.
func recordFailure(reason error) {
	kind := "io"
	switch {
	case errors.Is(reason, client.ErrClosed):
		kind = "closed"
	case errors.Is(reason, client.ErrSendFailed):
		kind = "send"
	case errors.Is(reason, client.ErrCallbackFailed):
		kind = "callback"
	case errors.Is(reason, protocol.ErrMalformedFrame):
		kind = "protocol"
	}
	observability.RecordConnectionFailure(kind)
}
