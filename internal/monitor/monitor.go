package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/shogunctl/internal/client"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/protocol/schema"
	"github.com/danmuck/shogunctl/internal/shogun"
)

var (
	ErrAlreadyStarted = errors.New("monitor: already started")
	ErrStopped        = errors.New("monitor: stopped")
)

var errReconnectForced = errors.New("monitor: reconnect forced")

// Config tunes the monitor. Client carries the terminal address and the
// per-connection timeouts.
type Config struct {
	Client       client.Config
	PollInterval time.Duration
	Backoff      BackoffConfig
	MaxAttempts  int
	EventBuffer  int
}

func DefaultConfig() Config {
	return Config{
		Client:       client.DefaultConfig(),
		PollInterval: time.Second,
		Backoff: BackoffConfig{
			Base:     time.Second,
			Growth:   1.5,
			MaxDelay: 15 * time.Second,
		},
		MaxAttempts: 10,
		EventBuffer: 64,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Client = c.Client.WithDefaults()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Backoff.Base <= 0 {
		c.Backoff.Base = def.Backoff.Base
	}
	if c.Backoff.Growth <= 0 {
		c.Backoff.Growth = def.Backoff.Growth
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// Monitor owns the reconnect loop for one terminal address.
type Monitor struct {
	cfg     Config
	catalog *schema.Catalog
	rng     *rand.Rand

	mu      sync.Mutex
	state   State
	status  Status
	cli     *client.Client
	capture *shogun.CaptureService
	fields  watchedFields
	started bool
	stopped bool

	events      chan Event
	reconnectCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

func New(cfg Config) (*Monitor, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Client.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		cfg:         cfg,
		catalog:     shogun.NewCatalog(),
		state:       StateDisconnected,
		status:      Status{State: StateDisconnected, Address: cfg.Client.Address},
		events:      make(chan Event, cfg.EventBuffer),
		reconnectCh: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if cfg.Backoff.Jitter {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m, nil
}

// Start launches the reconnect loop. A monitor runs at most once.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	go m.run()
	return nil
}

// Stop cancels all waits, drops any live connection, and closes the event
// stream. The monitor cannot be restarted.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		started := m.started
		m.mu.Unlock()
		m.cancel()
		if started {
			<-m.done
		}
		close(m.events)
		logs.Infof("monitor.Monitor.Stop address=%q", m.cfg.Client.Address)
	})
}

// Events returns the event stream. It is closed by Stop.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the current status.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Capture returns the capture service bound to the live connection.
func (m *Monitor) Capture() (*shogun.CaptureService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return nil, client.ErrNotConnected
	}
	return m.capture, nil
}

// ForceReconnect cuts short a pending backoff wait, or drops the live
// connection, and dials again immediately.
func (m *Monitor) ForceReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *Monitor) run() {
	defer close(m.done)
	logs.Infof("monitor.Monitor.run start address=%q poll=%s", m.cfg.Client.Address, m.cfg.PollInterval)
	attempt := 0
	for {
		if m.ctx.Err() != nil {
			m.setState(StateDisconnected)
			logs.Infof("monitor.Monitor.run stopped")
			return
		}
		m.setState(StateConnecting)
		cli, capture, err := m.connect()
		if err != nil {
			attempt++
			m.noteConnectFailure(attempt, err)
			delay := m.reconnectDelay(attempt)
			logs.Warnf("monitor.Monitor.run connect failed attempt=%d delay=%s err=%v", attempt, delay, err)
			m.waitReconnect(delay)
			continue
		}
		attempt = 0
		reason := m.watch(cli, capture)
		m.teardown(cli, reason)
	}
}

// connect builds a fresh client, dials, and records host identity. A remote
// refusal of the app-info query is tolerated; transport errors are not.
func (m *Monitor) connect() (*client.Client, *shogun.CaptureService, error) {
	cli, err := client.New(m.cfg.Client, m.catalog)
	if err != nil {
		return nil, nil, err
	}
	if err := cli.Connect(m.ctx); err != nil {
		return nil, nil, err
	}

	info, err := shogun.NewTerminalService(cli).AppInfo()
	if err != nil {
		var remote *client.RemoteError
		if !errors.As(err, &remote) {
			_ = cli.Close()
			return nil, nil, fmt.Errorf("monitor: app info: %w", err)
		}
		logs.Warnf("monitor.Monitor.connect app info refused code=%s", remote.Code)
	}

	capture := shogun.NewCaptureService(cli)
	m.mu.Lock()
	m.cli = cli
	m.capture = capture
	m.state = StateConnected
	m.fields = watchedFields{}
	m.status = Status{
		State:      StateConnected,
		Address:    m.cfg.Client.Address,
		Protocol:   cli.Version().String(),
		AppName:    info.Name,
		AppVersion: info.Version,
	}
	m.mu.Unlock()

	logs.Infof("monitor.Monitor.connect up address=%q protocol=%s app=%q version=%q",
		m.cfg.Client.Address, cli.Version(), info.Name, info.Version)
	m.emit(Event{Kind: EventConnectionUp, Value: info.Version, At: time.Now()})
	return cli, capture, nil
}

// teardown closes the finished connection and reports the down edge once.
// Stop-driven teardown stays silent.
func (m *Monitor) teardown(cli *client.Client, reason error) {
	_ = cli.Close()
	m.mu.Lock()
	if m.cli == cli {
		m.cli = nil
		m.capture = nil
	}
	m.state = StateDisconnected
	m.status.State = StateDisconnected
	m.status.Recording = false
	if reason != nil {
		m.status.LastError = reason.Error()
	}
	m.mu.Unlock()

	if m.ctx.Err() != nil {
		return
	}
	logs.Warnf("monitor.Monitor.teardown connection down address=%q reason=%v", m.cfg.Client.Address, reason)
	m.emit(Event{Kind: EventConnectionDown, Reason: fmt.Sprint(reason), At: time.Now()})
}

// reconnectDelay grows the backoff until the retry budget is spent, then
// settles on a steady max-delay cooldown.
func (m *Monitor) reconnectDelay(attempt int) time.Duration {
	if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
		return m.cfg.Backoff.MaxDelay
	}
	return NextDelay(m.cfg.Backoff, attempt, m.rng)
}

// waitReconnect sleeps on a timer; Stop and ForceReconnect cut it short.
func (m *Monitor) waitReconnect(delay time.Duration) {
	m.setState(StateWaiting)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-m.ctx.Done():
	case <-m.reconnectCh:
		logs.Infof("monitor.Monitor.waitReconnect cut short")
	case <-timer.C:
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.status.State = s
	m.mu.Unlock()
}

func (m *Monitor) noteConnectFailure(attempt int, err error) {
	m.mu.Lock()
	m.status.Attempt = attempt
	m.status.LastError = err.Error()
	m.mu.Unlock()
}

// emit never blocks: when the buffer is full the oldest event is dropped.
func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
		return
	default:
	}
	select {
	case old := <-m.events:
		logs.Warnf("monitor.Monitor.emit dropped kind=%s", old.Kind)
	default:
	}
	select {
	case m.events <- ev:
	default:
	}
}
