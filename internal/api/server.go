// Package api serves show stats and readiness over HTTP and passes load, start and
// stop requests through to the firing daemon.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/pyroshow-go/internal/daemon"
	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/session"
	"github.com/jwulff/pyroshow-go/internal/storage"
)

// Commander sends commands to the firing daemon. daemon.Client implements it.
type Commander interface {
	Send(ctx context.Context, cmd daemon.Command) error
}

// Server is the HTTP surface over one session.
type Server struct {
	session *session.Session
	daemon  Commander
	logger  *slog.Logger
}

// NewServer creates a server. A nil logger uses slog.Default().
func NewServer(s *session.Session, d Commander, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{session: s, daemon: d, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog)

	r.GET("/api/shows", s.listShows)
	r.GET("/api/shows/:id/stats", s.showStats)
	r.GET("/api/shows/:id/health", s.showHealth)
	r.POST("/api/shows/:id/stage", s.stageShow)
	r.POST("/api/shows/:id/load", s.loadShow)

	r.GET("/api/health", s.stagedHealth)
	r.GET("/api/daemon", s.daemonState)
	r.PUT("/api/protocol", s.setProtocol)

	r.POST("/api/start", s.startShow)
	r.POST("/api/stop", s.command(daemon.CreateStopShowCommand))
	r.POST("/api/unload", s.command(daemon.CreateUnloadShowCommand))
	r.POST("/api/arm", s.command(daemon.CreateArmCommand))
	r.POST("/api/disarm", s.command(daemon.CreateDisarmCommand))
	r.POST("/api/fire", s.manualFire)

	return r
}

func (s *Server) requestLog(c *gin.Context) {
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status())
}

// writeError maps domain and storage errors onto status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case storage.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsConflict(err), errors.Is(err, session.ErrNothingStaged):
		status = http.StatusConflict
	case domain.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func showID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, &domain.InvalidInputError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func (s *Server) send(c *gin.Context, cmd daemon.Command) bool {
	if err := s.daemon.Send(c.Request.Context(), cmd); err != nil {
		s.logger.Warn("daemon command failed", "command", cmd.String(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return false
	}
	s.logger.Info("daemon command sent", "command", cmd.String())
	return true
}

// command returns a handler that sends a parameterless command.
func (s *Server) command(build func() daemon.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd := build()
		if !s.send(c, cmd) {
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"command": cmd})
	}
}
