package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/shogunctl/internal/auth"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
	"github.com/danmuck/shogunctl/internal/observability"
)

var ErrAlreadyStarted = errors.New("feed: already started")

// Source supplies the status snapshot served over HTTP.
type Source interface {
	Snapshot() monitor.Status
}

// Controller is the capture surface behind the control endpoints.
type Controller interface {
	StartCapture(name string) error
	StopCapture() error
	SetCaptureName(name string) error
}

// Config tunes the HTTP surface. An empty AuthToken disables the control
// endpoints entirely (they 404).
type Config struct {
	ListenAddr  string
	AuthToken   string
	CORSOrigins []string
}

func DefaultConfig() Config {
	return Config{ListenAddr: ":8870"}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = DefaultConfig().ListenAddr
	}
	return c
}

// Server is the daemon's HTTP/websocket surface.
type Server struct {
	cfg      Config
	source   Source
	ctl      Controller
	hub      *Hub
	router   *gin.Engine
	httpSrv  *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader
	tokens   auth.Validator
	appeared time.Time
}

func NewServer(cfg Config, source Source, ctl Controller, hub *Hub) *Server {
	cfg = cfg.WithDefaults()
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:    cfg,
		source: source,
		ctl:    ctl,
		hub:    hub,
		router: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		tokens:   auth.StaticToken{Token: cfg.AuthToken},
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.ln != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.router}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errf("feed.Server.Start serve err=%v", err)
		}
	}()
	logs.Infof("feed.Server.Start listen=%s", ln.Addr())
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Addr reports the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
