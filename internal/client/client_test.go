package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/shogunctl/internal/protocol"
	"github.com/danmuck/shogunctl/internal/protocol/schema"
	"github.com/danmuck/shogunctl/internal/testutil/testlog"
)

func testCatalog() *schema.Catalog {
	c := schema.NewCatalog()
	c.MustRegister(schema.CommandSpec{
		Name:    "CaptureServices.StartCapture",
		Inputs:  []schema.Field{{Name: "name", Kind: schema.KindString}},
		Outputs: []schema.Field{{Name: "id", Kind: schema.KindUint}},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    "CaptureServices.SetCaptureName",
		Inputs:  []schema.Field{{Name: "name", Kind: schema.KindString}},
		Outputs: []schema.Field{{Name: "name", Kind: schema.KindString}},
	})
	c.MustRegister(schema.CommandSpec{
		Name: "Terminal.AppInfo",
		Outputs: []schema.Field{
			{Name: "name", Kind: schema.KindString},
			{Name: "version", Kind: schema.KindString},
			{Name: "changeset", Kind: schema.KindString},
		},
	})
	return c
}

func testConfig(addr string) Config {
	return Config{
		Address:          addr,
		ConnectTimeout:   500 * time.Millisecond,
		HandshakeTimeout: 500 * time.Millisecond,
		CallTimeout:      250 * time.Millisecond,
		WriteTimeout:     250 * time.Millisecond,
	}
}

type hostConn struct {
	conn   net.Conn
	reader *protocol.FrameReader
}

func (h *hostConn) announce() error {
	_, err := h.conn.Write([]byte(`["ViconTerminal"][1,7]` + "\x00"))
	return err
}

func (h *hostConn) next() (protocol.Frame, error) { return h.reader.Next() }

func (h *hostConn) reply(id uint32, code protocol.Code, payload string) error {
	buf, err := protocol.EncodeFrame(protocol.Frame{
		Header:  protocol.Header{Kind: protocol.KindReply, ID: id, Code: code},
		Payload: []byte(payload),
	})
	if err != nil {
		return err
	}
	_, err = h.conn.Write(buf)
	return err
}

func (h *hostConn) push(name, payload string) error {
	buf, err := protocol.EncodeFrame(protocol.Frame{
		Header:  protocol.Header{Kind: protocol.KindCallback, Name: name},
		Payload: []byte(payload),
	})
	if err != nil {
		return err
	}
	_, err = h.conn.Write(buf)
	return err
}

type hostScript func(h *hostConn, f protocol.Frame) error

// serveTerminal accepts one connection, announces the version, and feeds
// every decoded command to the script. Client-side teardown ends the loop.
func serveTerminal(ln net.Listener, script hostScript) error {
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	defer conn.Close()

	h := &hostConn{conn: conn, reader: protocol.NewFrameReader(conn, protocol.DefaultLimits())}
	if err := h.announce(); err != nil {
		return err
	}
	for {
		f, err := h.next()
		if err != nil {
			return nil
		}
		if err := script(h, f); err != nil {
			return err
		}
	}
}

func startTerminalHost(t *testing.T, script hostScript) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- serveTerminal(ln, script) }()
	t.Cleanup(func() {
		_ = ln.Close()
		if err := <-done; err != nil {
			t.Errorf("terminal host exit err: %v", err)
		}
	})
	return ln.Addr().String()
}

func connectTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg, testCatalog())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// echoScript answers every call with code ok, echoing the first argument.
func echoScript(h *hostConn, f protocol.Frame) error {
	var args []json.RawMessage
	if err := json.Unmarshal(f.Payload, &args); err != nil {
		return fmt.Errorf("host decode args: %v", err)
	}
	payload := "[]"
	if len(args) > 0 {
		payload = "[" + string(args[0]) + "]"
	}
	return h.reply(f.Header.ID, protocol.Ok, payload)
}

func TestCallRoundTrip(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if f.Header.Name != "CaptureServices.StartCapture" {
			return fmt.Errorf("unexpected command %q", f.Header.Name)
		}
		if string(f.Payload) != `["take-01"]` {
			return fmt.Errorf("unexpected args %q", f.Payload)
		}
		return h.reply(f.Header.ID, protocol.Ok, `[42]`)
	})

	c := connectTestClient(t, testConfig(addr))
	if got := c.Version(); got.String() != "1.7" {
		t.Fatalf("version: got %s", got)
	}
	if got := c.State(); got != StateStreaming {
		t.Fatalf("state: got %s", got)
	}

	reply, err := c.Call("CaptureServices.StartCapture", "take-01")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var id uint32
	if err := reply.Scan(&id); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if id != 42 {
		t.Fatalf("id: got %d", id)
	}
}

func TestCallRemoteError(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		return h.reply(f.Header.ID, protocol.Code(5), `[]`)
	})

	c := connectTestClient(t, testConfig(addr))
	_, err := c.Call("CaptureServices.StartCapture", "take-01")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Command != "CaptureServices.StartCapture" || remote.Code != protocol.Code(5) {
		t.Fatalf("unexpected remote error: %+v", remote)
	}
	if c.State() != StateStreaming {
		t.Fatalf("remote error must not kill the connection")
	}
}

func TestCallTimeoutConnectionSurvives(t *testing.T) {
	testlog.Start(t)
	var staleID atomic.Uint32
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		// First command gets no reply until the second arrives; the late
		// reply must be dropped without disturbing the live call.
		if staleID.Load() == 0 {
			staleID.Store(f.Header.ID)
			return nil
		}
		if err := h.reply(staleID.Load(), protocol.Ok, `[1]`); err != nil {
			return err
		}
		return h.reply(f.Header.ID, protocol.Ok, `[2]`)
	})

	c := connectTestClient(t, testConfig(addr))
	_, err := c.Call("CaptureServices.StartCapture", "first")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if c.State() != StateStreaming {
		t.Fatalf("timeout must not kill the connection")
	}

	reply, err := c.Call("CaptureServices.StartCapture", "second")
	if err != nil {
		t.Fatalf("call after timeout: %v", err)
	}
	var id uint32
	if err := reply.Scan(&id); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if id != 2 {
		t.Fatalf("late reply leaked into live call: id=%d", id)
	}
}

func TestConcurrentCallsOutOfOrderReplies(t *testing.T) {
	testlog.Start(t)
	pending := make(chan protocol.Frame, 2)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		pending <- f
		if len(pending) < 2 {
			return nil
		}
		// Answer in reverse arrival order, echoing each call's own argument.
		first := <-pending
		second := <-pending
		if err := echoScript(h, second); err != nil {
			return err
		}
		return echoScript(h, first)
	})

	cfg := testConfig(addr)
	cfg.CallTimeout = 2 * time.Second
	c := connectTestClient(t, cfg)

	var wg sync.WaitGroup
	results := make([]string, 2)
	callErrs := make([]error, 2)
	for i, name := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(slot int, arg string) {
			defer wg.Done()
			reply, err := c.Call("CaptureServices.SetCaptureName", arg)
			if err != nil {
				callErrs[slot] = err
				return
			}
			callErrs[slot] = reply.Scan(&results[slot])
		}(i, name)
	}
	wg.Wait()

	for i, err := range callErrs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if results[0] != "alpha" || results[1] != "beta" {
		t.Fatalf("replies crossed: %q %q", results[0], results[1])
	}
}

func TestCallWhileDisconnected(t *testing.T) {
	testlog.Start(t)
	c, err := New(testConfig("127.0.0.1:1"), testCatalog())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Call("Terminal.AppInfo"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := c.Subscribe("CameraChanged", func([]byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestCallUnregisteredCommand(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, echoScript)
	c := connectTestClient(t, testConfig(addr))
	if _, err := c.Call("CaptureServices.NoSuchCommand"); !errors.Is(err, schema.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestConnectRejectsNonTerminal(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- serveImposterEndpoint(ln) }()
	t.Cleanup(func() {
		_ = ln.Close()
		if err := <-done; err != nil {
			t.Errorf("imposter exit err: %v", err)
		}
	})

	c, err := New(testConfig(ln.Addr().String()), testCatalog())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = c.Connect(ctx)
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func serveImposterEndpoint(ln net.Listener) error {
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(`["SomeOtherService"][]` + "\x00"))
	return err
}

func TestConnectTwiceRejected(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, echoScript)
	c := connectTestClient(t, testConfig(addr))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestSubscribeRefcountsEnableDisable(t *testing.T) {
	testlog.Start(t)
	const name = "CaptureServices.CaptureNameChanged"
	wantArgs := []string{
		fmt.Sprintf(`[%q,true]`, name),
		fmt.Sprintf(`[%q,false]`, name),
	}
	var step atomic.Int32
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if f.Header.Name != "Terminal.EnableCallback" {
			return fmt.Errorf("unexpected command %q", f.Header.Name)
		}
		i := int(step.Add(1)) - 1
		if i >= len(wantArgs) {
			return fmt.Errorf("extra enable/disable: %s", f.Payload)
		}
		if string(f.Payload) != wantArgs[i] {
			return fmt.Errorf("step %d: got args %s want %s", i, f.Payload, wantArgs[i])
		}
		return h.reply(f.Header.ID, protocol.Ok, `[]`)
	})

	c := connectTestClient(t, testConfig(addr))
	sub1, err := c.Subscribe(name, func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("subscribe 1: %v", err)
	}
	sub2, err := c.Subscribe(name, func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("subscribe 2: %v", err)
	}
	if err := sub1.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe 1: %v", err)
	}
	if err := sub2.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe 2: %v", err)
	}
	if err := sub2.Unsubscribe(); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestSubscribeEnableFailureRollsBack(t *testing.T) {
	testlog.Start(t)
	var enables atomic.Int32
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		n := enables.Add(1)
		if n == 1 {
			return h.reply(f.Header.ID, protocol.Code(3), `[]`)
		}
		return h.reply(f.Header.ID, protocol.Ok, `[]`)
	})

	c := connectTestClient(t, testConfig(addr))
	_, err := c.Subscribe("CaptureChanged", func([]byte) error { return nil })
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}

	// The failed registration must not linger: the next subscribe is a
	// 0->1 transition again and re-enables on the host.
	if _, err := c.Subscribe("CaptureChanged", func([]byte) error { return nil }); err != nil {
		t.Fatalf("subscribe after rollback: %v", err)
	}
	if got := enables.Load(); got != 2 {
		t.Fatalf("enable commands: got %d want 2", got)
	}
}

func TestConcurrentSubscribeSharesEnableOutcome(t *testing.T) {
	testlog.Start(t)
	const name = "CaptureServices.LatestCaptureChanged"
	var enables atomic.Int32
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if f.Header.Name != "Terminal.EnableCallback" {
			return fmt.Errorf("unexpected command %q", f.Header.Name)
		}
		if enables.Add(1) <= 2 {
			return h.reply(f.Header.ID, protocol.Code(9), `[]`)
		}
		return h.reply(f.Header.ID, protocol.Ok, `[]`)
	})

	c := connectTestClient(t, testConfig(addr))

	// Both racing subscribes must wait out the enable negotiation; with the
	// host refusing, neither may report success or leave an entry behind.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Subscribe(name, func([]byte) error { return nil })
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		err := <-errs
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected RemoteError from racing subscribe, got %v", err)
		}
	}

	// The registry is empty again, so this is a 0->1 transition and issues
	// a third enable.
	if _, err := c.Subscribe(name, func([]byte) error { return nil }); err != nil {
		t.Fatalf("subscribe after rollback: %v", err)
	}
	if got := enables.Load(); got != 3 {
		t.Fatalf("enable commands: got %d want 3", got)
	}
}

func TestCallbackDispatchOrder(t *testing.T) {
	testlog.Start(t)
	const name = "CaptureServices.LatestCaptureChanged"
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if err := h.reply(f.Header.ID, protocol.Ok, `[]`); err != nil {
			return err
		}
		return h.push(name, `["take-02"]`)
	})

	c := connectTestClient(t, testConfig(addr))

	var mu sync.Mutex
	var order []int
	seen := make(chan struct{}, 2)
	handler := func(n int) Handler {
		return func(payload []byte) error {
			if string(payload) != `["take-02"]` {
				t.Errorf("handler %d payload: %q", n, payload)
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			seen <- struct{}{}
			return nil
		}
	}
	waitHandlers := func(n int) {
		for i := 0; i < n; i++ {
			select {
			case <-seen:
			case <-time.After(2 * time.Second):
				t.Fatalf("handler %d/%d never ran", i+1, n)
			}
		}
	}

	if _, err := c.Subscribe(name, handler(1)); err != nil {
		t.Fatalf("subscribe 1: %v", err)
	}
	// The enable command triggered the first push; only handler 1 was
	// registered for it.
	waitHandlers(1)

	if _, err := c.Subscribe(name, handler(2)); err != nil {
		t.Fatalf("subscribe 2: %v", err)
	}
	// Any command triggers another push, now reaching both handlers in
	// registration order.
	if _, err := c.Call("Terminal.AppInfo"); err != nil {
		t.Fatalf("call: %v", err)
	}
	waitHandlers(2)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("dispatch order: %v", order)
	}
}

func TestCallbackHandlerErrorIsFatal(t *testing.T) {
	testlog.Start(t)
	const name = "CaptureServices.RecordingChanged"
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if err := h.reply(f.Header.ID, protocol.Ok, `[]`); err != nil {
			return err
		}
		return h.push(name, `[true]`)
	})

	failures := make(chan error, 1)
	cfg := testConfig(addr)
	cfg.OnFailure = func(err error) { failures <- err }
	c := connectTestClient(t, cfg)

	if _, err := c.Subscribe(name, func([]byte) error { return errors.New("boom") }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case err := <-failures:
		if !errors.Is(err, ErrCallbackFailed) {
			t.Fatalf("expected ErrCallbackFailed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure hook never fired")
	}
	<-c.Done()
	if _, err := c.Call("Terminal.AppInfo"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after handler failure, got %v", err)
	}
}

func TestCloseWakesPendingAndNotifiesOnce(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		return nil // never reply
	})

	var hookCalls atomic.Int32
	hookErr := make(chan error, 1)
	cfg := testConfig(addr)
	cfg.CallTimeout = 5 * time.Second
	cfg.OnFailure = func(err error) {
		hookCalls.Add(1)
		hookErr <- err
	}
	c := connectTestClient(t, cfg)

	callErr := make(chan error, 1)
	go func() {
		_, err := c.Call("Terminal.AppInfo")
		callErr <- err
	}()
	time.Sleep(50 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-callErr:
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pending call never woke")
	}
	select {
	case err := <-hookErr:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed reason, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure hook never fired")
	}

	_ = c.Close()
	if got := hookCalls.Load(); got != 1 {
		t.Fatalf("failure hook fired %d times", got)
	}
	if c.State() != StateClosed {
		t.Fatalf("state: got %s", c.State())
	}
}

func TestHostDisconnectFailsPending(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		return h.conn.Close()
	})

	cfg := testConfig(addr)
	cfg.CallTimeout = 5 * time.Second
	c := connectTestClient(t, cfg)

	if _, err := c.Call("Terminal.AppInfo"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	<-c.Done()
	if c.Err() == nil {
		t.Fatalf("expected a terminal error")
	}
}

func TestIdleReadTimeoutIsFatal(t *testing.T) {
	testlog.Start(t)
	// The host announces and then goes silent without closing the socket.
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		return nil
	})

	failures := make(chan error, 1)
	cfg := testConfig(addr)
	cfg.SocketTimeout = 100 * time.Millisecond
	cfg.OnFailure = func(err error) { failures <- err }
	c := connectTestClient(t, cfg)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("silently dead host never detected")
	}
	if c.Err() == nil {
		t.Fatalf("expected a terminal error after idle expiry")
	}
	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatalf("failure hook never fired")
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state: got %s", c.State())
	}
}

func TestZeroTimeoutsDisableBounds(t *testing.T) {
	testlog.Start(t)
	cfg := Config{Address: "localhost:52800"}.WithDefaults()
	if cfg.ConnectTimeout != 0 || cfg.HandshakeTimeout != 0 ||
		cfg.CallTimeout != 0 || cfg.SocketTimeout != 0 {
		t.Fatalf("omitted timeouts must stay disabled: %+v", cfg)
	}
	if cfg.MaxFrameBytes <= 0 {
		t.Fatalf("frame limit must be defaulted")
	}
}

func TestCallWithoutTimeoutWaitsForReply(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		time.Sleep(150 * time.Millisecond)
		return h.reply(f.Header.ID, protocol.Ok, `["shogun","1.2.3","f00dbeef"]`)
	})

	cfg := testConfig(addr)
	cfg.CallTimeout = 0
	c := connectTestClient(t, cfg)
	reply, err := c.Call("Terminal.AppInfo")
	if err != nil {
		t.Fatalf("call without timeout: %v", err)
	}
	var name string
	if err := reply.Scan(&name); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if name != "shogun" {
		t.Fatalf("name: got %q", name)
	}
}

func TestMalformedFrameIsFatal(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		_, err := h.conn.Write([]byte("republic of garbage\x00"))
		return err
	})

	failures := make(chan error, 1)
	cfg := testConfig(addr)
	cfg.OnFailure = func(err error) { failures <- err }
	c := connectTestClient(t, cfg)

	_, _ = c.Call("Terminal.AppInfo")
	select {
	case err := <-failures:
		if !errors.Is(err, protocol.ErrMalformedFrame) {
			t.Fatalf("expected ErrMalformedFrame, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure hook never fired")
	}
}

func TestUnmatchedReplyIgnored(t *testing.T) {
	testlog.Start(t)
	addr := startTerminalHost(t, func(h *hostConn, f protocol.Frame) error {
		if err := h.reply(f.Header.ID+1000, protocol.Ok, `["stray"]`); err != nil {
			return err
		}
		return h.reply(f.Header.ID, protocol.Ok, `[7]`)
	})

	c := connectTestClient(t, testConfig(addr))
	reply, err := c.Call("CaptureServices.StartCapture", "take-03")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var id uint32
	if err := reply.Scan(&id); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if id != 7 {
		t.Fatalf("id: got %d", id)
	}
	if c.State() != StateStreaming {
		t.Fatalf("stray reply must not kill the connection")
	}
}
