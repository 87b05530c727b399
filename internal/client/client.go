package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/protocol"
	"github.com/danmuck/shogunctl/internal/protocol/schema"
)

const enableCallbackCommand = "Terminal.EnableCallback"

// State tracks the connection lifecycle of one client.
type State uint8

const (
	StateDisconnected State = iota
	StateHandshaking
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Handler consumes one callback payload. Handlers run on the receive
// goroutine and must not issue commands on the same client; a handler
// error or panic tears the connection down.
type Handler func(payload []byte) error

// Subscription is one live callback registration.
type Subscription struct {
	name string
	id   uint64
	c    *Client
}

func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes the registration. The host-side callback is disabled
// when the last registration for the name goes away. Unsubscribing twice
// fails with ErrSubscriptionNotFound.
func (s *Subscription) Unsubscribe() error { return s.c.unsubscribe(s) }

type pendingCall struct {
	command   string
	done      bool
	abandoned bool
	code      protocol.Code
	payload   []byte
	err       error
}

type callbackEntry struct {
	id      uint64
	handler Handler
}

// Client is a single-connection terminal RPC session.
type Client struct {
	cfg     Config
	catalog *schema.Catalog

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	conn      net.Conn
	version   protocol.Version
	nextID    uint32
	pending   map[uint32]*pendingCall
	callbacks map[string][]callbackEntry
	enabling  map[string]bool
	enabled   map[string]bool
	nextSubID uint64
	started   bool
	done      bool
	failErr   error
	doneCh    chan struct{}

	wmu sync.Mutex
}

// New builds a disconnected client. A nil catalog yields an empty one;
// CallJSON works regardless.
func New(cfg Config, catalog *schema.Catalog) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = schema.NewCatalog()
	}
	c := &Client{
		cfg:       cfg,
		catalog:   catalog,
		pending:   make(map[uint32]*pendingCall),
		callbacks: make(map[string][]callbackEntry),
		enabling:  make(map[string]bool),
		enabled:   make(map[string]bool),
		doneCh:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c, nil
}

func (c *Client) Catalog() *schema.Catalog { return c.catalog }

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version reports the host protocol version announced at handshake.
func (c *Client) Version() protocol.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Done closes when the client reaches a terminal state.
func (c *Client) Done() <-chan struct{} { return c.doneCh }

// Err reports why the client went down, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failErr
}

// Connect dials the terminal, reads the version announcement, and starts
// the receive loop. A client connects at most once.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateHandshaking
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.shutdown(err, StateDisconnected)
		return err
	}
	reader := protocol.NewFrameReader(conn, protocol.Limits{MaxFrameBytes: c.cfg.MaxFrameBytes})
	version, err := c.handshake(conn, reader)
	if err != nil {
		_ = conn.Close()
		c.shutdown(err, StateDisconnected)
		return err
	}

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.version = version
	c.state = StateStreaming
	c.started = true
	c.mu.Unlock()

	logs.Infof("client connected address=%q version=%s", c.cfg.Address, version)
	go c.readLoop(conn, reader)
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return conn, nil
}

// handshake reads the version announcement under a deadline. Anything but
// the announcement means the endpoint is not a terminal.
func (c *Client) handshake(conn net.Conn, reader *protocol.FrameReader) (protocol.Version, error) {
	if c.cfg.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	}
	f, err := reader.Next()
	if err != nil {
		return protocol.Version{}, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	version, err := protocol.ParseVersion(f)
	if err != nil {
		return protocol.Version{}, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return version, nil
}

// Close tears the connection down. Pending calls fail with ErrNotConnected
// and the failure hook fires with ErrClosed.
func (c *Client) Close() error {
	c.shutdown(ErrClosed, StateClosed)
	return nil
}

// Call issues a catalogued command and blocks until the reply, a timeout,
// or connection loss. A non-ok result code comes back as *RemoteError.
func (c *Client) Call(name string, args ...any) (*Reply, error) {
	spec, ok := c.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrNotRegistered, name)
	}
	raw, err := schema.EncodeArgs(spec, args...)
	if err != nil {
		return nil, err
	}
	payload, code, err := c.roundTrip(name, raw)
	if err != nil {
		return nil, err
	}
	if !code.OK() {
		return nil, &RemoteError{Command: name, Code: code}
	}
	return &Reply{spec: spec, payload: payload}, nil
}

// CallJSON bypasses the catalogue: args must already be a JSON list. It
// returns the raw result code and payload; err covers transport faults only.
func (c *Client) CallJSON(name string, args []byte) (protocol.Code, []byte, error) {
	payload, code, err := c.roundTrip(name, args)
	if err != nil {
		return 0, nil, err
	}
	return code, payload, nil
}

// Reply is the successful result of one command.
type Reply struct {
	spec    schema.CommandSpec
	payload []byte
}

// Scan unmarshals the reply outputs in order into the destinations. A nil
// destination skips its output; trailing outputs may be omitted.
func (r *Reply) Scan(dests ...any) error {
	return schema.DecodeReply(r.spec, r.payload, dests...)
}

// Raw returns the reply payload as received.
func (r *Reply) Raw() []byte { return r.payload }

func (c *Client) roundTrip(name string, args []byte) ([]byte, protocol.Code, error) {
	start := time.Now()
	payload, code, err := c.exchange(name, args)
	if c.cfg.OnCall != nil {
		c.cfg.OnCall(name, time.Since(start), err)
	}
	return payload, code, err
}

// exchange sends one command and blocks on the condition variable until
// the receive loop posts the reply, the timer fires, or the client dies.
func (c *Client) exchange(name string, args []byte) ([]byte, protocol.Code, error) {
	c.mu.Lock()
	if c.state != StateStreaming {
		c.mu.Unlock()
		return nil, 0, ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	p := &pendingCall{command: name}
	c.pending[id] = p
	conn := c.conn
	c.mu.Unlock()

	if err := c.write(conn, protocol.EncodeCommand(name, id, args)); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		wrapped := fmt.Errorf("%w: %s: %v", ErrSendFailed, name, err)
		c.shutdown(wrapped, StateDisconnected)
		return nil, 0, wrapped
	}
	logs.Tracef("client sent command=%s id=%d args=%d", name, id, len(args))

	// Zero call timeout blocks until the reply or connection loss.
	var deadline time.Time
	if c.cfg.CallTimeout > 0 {
		deadline = time.Now().Add(c.cfg.CallTimeout)
		timer := time.AfterFunc(c.cfg.CallTimeout, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer timer.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for !p.done && p.err == nil && (deadline.IsZero() || time.Now().Before(deadline)) {
		c.cond.Wait()
	}
	switch {
	case p.done:
		return p.payload, p.code, nil
	case p.err != nil:
		return nil, 0, p.err
	default:
		// Reply never arrived. The entry stays behind, flagged, so the
		// receive loop can drop the late reply when it shows up.
		p.abandoned = true
		logs.Warnf("client call timeout command=%s id=%d after=%s", name, id, c.cfg.CallTimeout)
		return nil, 0, fmt.Errorf("%w: %s after %s", ErrTimeout, name, c.cfg.CallTimeout)
	}
}

func (c *Client) write(conn net.Conn, buf []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	_, err := conn.Write(buf)
	return err
}

// Subscribe registers a handler for a named callback. The first
// registration for a name enables it on the host; failure to enable rolls
// the registration back. While an enable is in flight, later Subscribes
// for the same name wait for its outcome rather than registering against
// an unenabled callback.
func (c *Client) Subscribe(name string, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilHandler, name)
	}
	c.mu.Lock()
	for c.enabling[name] {
		c.cond.Wait()
	}
	if c.state != StateStreaming {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextSubID++
	sub := &Subscription{name: name, id: c.nextSubID, c: c}
	c.callbacks[name] = append(c.callbacks[name], callbackEntry{id: sub.id, handler: h})
	if c.enabled[name] {
		c.mu.Unlock()
		return sub, nil
	}
	c.enabling[name] = true
	c.mu.Unlock()

	err := c.setCallbackEnabled(name, true)

	c.mu.Lock()
	delete(c.enabling, name)
	if err != nil {
		c.removeCallbackLocked(name, sub.id)
	} else {
		c.enabled[name] = true
	}
	c.cond.Broadcast()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	logs.Debugf("client callback enabled name=%s", name)
	return sub, nil
}

func (c *Client) unsubscribe(sub *Subscription) error {
	c.mu.Lock()
	if !c.hasCallbackLocked(sub.name, sub.id) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, sub.name)
	}
	c.removeCallbackLocked(sub.name, sub.id)
	last := len(c.callbacks[sub.name]) == 0
	if last {
		delete(c.enabled, sub.name)
	}
	streaming := c.state == StateStreaming
	c.mu.Unlock()

	if last && streaming {
		if err := c.setCallbackEnabled(sub.name, false); err != nil {
			return err
		}
		logs.Debugf("client callback disabled name=%s", sub.name)
	}
	return nil
}

func (c *Client) hasCallbackLocked(name string, id uint64) bool {
	for _, e := range c.callbacks[name] {
		if e.id == id {
			return true
		}
	}
	return false
}

func (c *Client) removeCallbackLocked(name string, id uint64) {
	entries := c.callbacks[name]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		next := make([]callbackEntry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(c.callbacks, name)
		} else {
			c.callbacks[name] = next
		}
		return
	}
}

func (c *Client) setCallbackEnabled(name string, enabled bool) error {
	args, err := json.Marshal([]any{name, enabled})
	if err != nil {
		return err
	}
	code, _, err := c.CallJSON(enableCallbackCommand, args)
	if err != nil {
		return err
	}
	if !code.OK() {
		return &RemoteError{Command: enableCallbackCommand, Code: code}
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn, reader *protocol.FrameReader) {
	for {
		// The idle-read bound covers the gap between frames; expiring it
		// means a silently dead host and kills the connection.
		if c.cfg.SocketTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.SocketTimeout))
		}
		f, err := reader.Next()
		if err != nil {
			c.shutdown(fmt.Errorf("client: read: %w", err), StateDisconnected)
			return
		}
		switch f.Header.Kind {
		case protocol.KindReply:
			c.dispatchReply(f)
		case protocol.KindCallback:
			if err := c.dispatchCallback(f); err != nil {
				c.shutdown(err, StateDisconnected)
				return
			}
		default:
			// Only a host may be on the far end, and hosts never send
			// command frames.
			c.shutdown(fmt.Errorf("%w: unexpected %s frame from host", protocol.ErrMalformedFrame, "command"), StateDisconnected)
			return
		}
	}
}

func (c *Client) dispatchReply(f protocol.Frame) {
	c.mu.Lock()
	p, ok := c.pending[f.Header.ID]
	if !ok {
		c.mu.Unlock()
		logs.Debugf("client unmatched reply id=%d code=%s", f.Header.ID, f.Header.Code)
		return
	}
	delete(c.pending, f.Header.ID)
	if p.abandoned {
		c.mu.Unlock()
		logs.Debugf("client late reply dropped command=%s id=%d", p.command, f.Header.ID)
		return
	}
	p.done = true
	p.code = f.Header.Code
	p.payload = f.Payload
	c.cond.Broadcast()
	c.mu.Unlock()
	logs.Tracef("client reply command=%s id=%d code=%s", p.command, f.Header.ID, f.Header.Code)
}

func (c *Client) dispatchCallback(f protocol.Frame) error {
	c.mu.Lock()
	entries := c.callbacks[f.Header.Name]
	snapshot := make([]callbackEntry, len(entries))
	copy(snapshot, entries)
	c.mu.Unlock()

	if len(snapshot) == 0 {
		logs.Debugf("client callback without subscribers name=%s", f.Header.Name)
		return nil
	}
	for _, e := range snapshot {
		if err := c.invokeHandler(f.Header.Name, e, f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) invokeHandler(name string, e callbackEntry, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrCallbackFailed, name, r)
		}
	}()
	if herr := e.handler(payload); herr != nil {
		return fmt.Errorf("%w: %s: %v", ErrCallbackFailed, name, herr)
	}
	return nil
}

// shutdown is the single terminal transition: it closes the socket, wakes
// every pending call with ErrNotConnected, and fires the failure hook once.
func (c *Client) shutdown(reason error, final State) {
	c.mu.Lock()
	if c.done {
		if final == StateClosed {
			c.state = StateClosed
		}
		c.mu.Unlock()
		return
	}
	c.done = true
	c.state = final
	c.failErr = reason
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	for _, p := range c.pending {
		if !p.done && p.err == nil {
			p.err = ErrNotConnected
		}
	}
	c.pending = make(map[uint32]*pendingCall)
	started := c.started
	hook := c.cfg.OnFailure
	c.cond.Broadcast()
	close(c.doneCh)
	c.mu.Unlock()

	if final == StateClosed {
		logs.Infof("client closed address=%q", c.cfg.Address)
	} else {
		logs.Warnf("client connection down address=%q err=%v", c.cfg.Address, reason)
	}
	if started && hook != nil {
		hook(reason)
	}
}
