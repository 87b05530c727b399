package oscbridge

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/time/rate"

	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/observability"
)

// Inbound control addresses.
const (
	AddrRecordStart    = "/RecordStartShogunLive"
	AddrRecordStop     = "/RecordStopShogunLive"
	AddrSetCaptureName = "/SetCaptureName"
)

var (
	ErrNilController  = errors.New("oscbridge: controller required")
	ErrAlreadyStarted = errors.New("oscbridge: already started")
)

// Controller is the capture surface a control message drives.
type Controller interface {
	StartCapture(name string) error
	StopCapture() error
	SetCaptureName(name string) error
}

// Config tunes the OSC control surface. The rate limit guards the
// unauthenticated LAN surface against floods.
type Config struct {
	ListenAddr    string
	BroadcastAddr string
	MessageRate   float64
	MessageBurst  int
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:    "0.0.0.0:5555",
		BroadcastAddr: "255.255.255.255:9000",
		MessageRate:   4,
		MessageBurst:  8,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.BroadcastAddr == "" {
		c.BroadcastAddr = def.BroadcastAddr
	}
	if c.MessageRate <= 0 {
		c.MessageRate = def.MessageRate
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = def.MessageBurst
	}
	return c
}

// Server dispatches inbound OSC control messages to the Controller.
type Server struct {
	cfg     Config
	ctl     Controller
	limiter *rate.Limiter

	mu        sync.Mutex
	conn      net.PacketConn
	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg Config, ctl Controller) (*Server, error) {
	if ctl == nil {
		return nil, ErrNilController
	}
	cfg = cfg.WithDefaults()
	return &Server{
		cfg:     cfg,
		ctl:     ctl,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst),
	}, nil
}

// Start binds the UDP socket and serves until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrAlreadyStarted
	}
	dispatcher, err := s.routes()
	if err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("oscbridge: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.conn = conn
	s.done = make(chan struct{})
	srv := &osc.Server{Addr: s.cfg.ListenAddr, Dispatcher: dispatcher}
	go s.serve(srv, conn)
	logs.Infof("oscbridge.Server.Start listen=%s", conn.LocalAddr())
	return nil
}

// Stop closes the socket and waits for the serve goroutine.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn, done := s.conn, s.done
		s.mu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.Close()
		<-done
		logs.Infof("oscbridge.Server.Stop")
	})
}

// Addr reports the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) serve(srv *osc.Server, conn net.PacketConn) {
	defer close(s.done)
	if err := srv.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
		logs.Errf("oscbridge.Server.serve err=%v", err)
	}
}

func (s *Server) routes() (*osc.StandardDispatcher, error) {
	dispatcher := osc.NewStandardDispatcher()
	handlers := map[string]func(*osc.Message){
		AddrRecordStart:    s.handleRecordStart,
		AddrRecordStop:     s.handleRecordStop,
		AddrSetCaptureName: s.handleSetCaptureName,
	}
	for addr, fn := range handlers {
		if err := dispatcher.AddMsgHandler(addr, fn); err != nil {
			return nil, fmt.Errorf("oscbridge: route %s: %w", addr, err)
		}
	}
	return dispatcher, nil
}

func (s *Server) handleRecordStart(msg *osc.Message) {
	if !s.allow(msg.Address) {
		return
	}
	name, _ := firstString(msg)
	s.finish(msg.Address, s.ctl.StartCapture(name))
}

func (s *Server) handleRecordStop(msg *osc.Message) {
	if !s.allow(msg.Address) {
		return
	}
	s.finish(msg.Address, s.ctl.StopCapture())
}

func (s *Server) handleSetCaptureName(msg *osc.Message) {
	if !s.allow(msg.Address) {
		return
	}
	name, ok := firstString(msg)
	if !ok || name == "" {
		logs.Warnf("oscbridge.Server.handleSetCaptureName missing name argument")
		observability.RecordOSCMessage(msg.Address, "invalid")
		return
	}
	s.finish(msg.Address, s.ctl.SetCaptureName(name))
}

// allow enforces the control-surface rate limit.
func (s *Server) allow(address string) bool {
	if s.limiter.Allow() {
		return true
	}
	logs.Warnf("oscbridge.Server.allow rate limited address=%s", address)
	observability.RecordOSCMessage(address, "dropped")
	return false
}

func (s *Server) finish(address string, err error) {
	if err != nil {
		logs.Warnf("oscbridge.Server command failed address=%s err=%v", address, err)
		observability.RecordOSCMessage(address, "error")
		return
	}
	logs.Infof("oscbridge.Server command ok address=%s", address)
	observability.RecordOSCMessage(address, "ok")
}

func firstString(msg *osc.Message) (string, bool) {
	for _, arg := range msg.Arguments {
		if s, ok := arg.(string); ok {
			return s, true
		}
	}
	return "", false
}
