package feed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/shogunctl/internal/auth"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "shogund",
			"version":   "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		status := s.source.Snapshot()
		ready := status.State == monitor.StateConnected
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":  ready,
			"state":  status.State,
			"uptime": time.Since(s.appeared).String(),
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.source.Snapshot())
	})

	s.router.GET("/events", s.handleEvents)

	control := s.router.Group("/capture", s.requireToken)
	control.POST("/start", s.handleCaptureStart)
	control.POST("/stop", s.handleCaptureStop)
	control.POST("/name", s.handleCaptureName)
}

// requireToken guards the control surface. With no token configured the
// endpoints do not exist as far as the outside is concerned.
func (s *Server) requireToken(c *gin.Context) {
	if s.cfg.AuthToken == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	token, ok := auth.Bearer(c.GetHeader("Authorization"))
	if !ok || s.tokens.Validate(token) != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

type captureRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCaptureStart(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.ctl.StartCapture(req.Name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCaptureStop(c *gin.Context) {
	if err := s.ctl.StopCapture(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCaptureName(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	if err := s.ctl.SetCaptureName(req.Name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// handleEvents upgrades to a websocket and streams monitor events as JSON
// objects. Slow or dead consumers are dropped on the first failed write.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.Warnf("feed.Server.handleEvents upgrade err=%v", err)
		return
	}
	id, events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	defer conn.Close()
	logs.Infof("feed.Server.handleEvents subscriber=%d remote=%s", id, conn.RemoteAddr())

	// Reads only serve close detection; clients send nothing meaningful.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = s.writeClose(conn)
				return
			}
			if err := s.writeEvent(conn, ev); err != nil {
				logs.Warnf("feed.Server.handleEvents write err subscriber=%d err=%v", id, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev monitor.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func (s *Server) writeClose(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}
