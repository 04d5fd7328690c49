package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/udplog/internal/model"
)

// Controller is the forwarder surface exposed over HTTP.
type Controller interface {
	Status() model.Status
	Bind(ip string, port uint16) bool
	Unbind()
	SetBroadcastEnabled(on bool)
}

// LogDumper writes the agent's recent log output to w.
type LogDumper func(w io.Writer) error

// Server provides a local admin API for a running forwarder.
type Server struct {
	addr      string
	ctl       Controller
	logs      LogDumper
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new admin API server. Default addr is "127.0.0.1:9997".
// logs may be nil, in which case /api/logs is not served.
func NewServer(addr string, ctl Controller, logs LogDumper) *Server {
	if addr == "" {
		addr = "127.0.0.1:9997"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		ctl:    ctl,
		logs:   logs,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.POST("/bind", s.handleBind)
	api.POST("/unbind", s.handleUnbind)
	api.POST("/broadcast", s.handleBroadcast)
	if s.logs != nil {
		api.GET("/logs", s.handleLogs)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.ctl.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"phase":  st.Phase,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleBind(c *gin.Context) {
	var req struct {
		IP   string `json:"ip" binding:"required"`
		Port int    `json:"port" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing ip/port field"})
		return
	}
	if req.Port < 1 || req.Port > 65535 || !s.ctl.Bind(req.IP, uint16(req.Port)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bind target must be an IPv4 address and a port in 1-65535"})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleUnbind(c *gin.Context) {
	s.ctl.Unbind()
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleBroadcast(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing enabled field"})
		return
	}
	s.ctl.SetBroadcastEnabled(*req.Enabled)
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleLogs(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.logs(c.Writer); err != nil {
		c.Error(err)
	}
}
