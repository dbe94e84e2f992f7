package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/pyroshow-go/internal/assembler"
	"github.com/jwulff/pyroshow-go/internal/daemon"
	"github.com/jwulff/pyroshow-go/internal/health"
)

type showSummary struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Protocol      string  `json:"protocol"`
	Version       int     `json:"version"`
	Cues          int     `json:"cues"`
	Duration      float64 `json:"duration"`
	DurationLabel string  `json:"duration_label"`
}

func (s *Server) listShows(c *gin.Context) {
	shows := s.session.Shows()
	out := make([]showSummary, 0, len(shows))
	for _, show := range shows {
		out = append(out, showSummary{
			ID:            show.ID,
			Name:          show.Name,
			Protocol:      show.Protocol,
			Version:       show.Version,
			Cues:          len(show.Items),
			Duration:      show.Duration,
			DurationLabel: assembler.FormatClock(show.Duration),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"shows": out,
		"total": len(out),
	})
}

func (s *Server) showStats(c *gin.Context) {
	id, err := showID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	show, err := s.session.Show(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	stats := assembler.ComputeStats(show.Items)
	c.JSON(http.StatusOK, gin.H{
		"show_id":         show.ID,
		"items":           stats.ItemCount,
		"zones":           stats.ZoneCount,
		"targets":         stats.TargetCount,
		"duration":        stats.DurationLabel(),
		"closest_fire":    stats.ClosestFireLabel(),
		"max_concurrency": stats.MaxConcurrency,
		"density":         stats.DensityLabel(),
	})
}

func (s *Server) showHealth(c *gin.Context) {
	id, err := showID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	h, err := s.session.HealthFor(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"health": h, "ready": h.Ready(), "warnings": warnings(h)})
}

func (s *Server) stagedHealth(c *gin.Context) {
	h, err := s.session.Health()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"health": h, "ready": h.Ready(), "warnings": warnings(h)})
}

func (s *Server) stageShow(c *gin.Context) {
	id, err := showID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.session.Stage(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": id})
}

func (s *Server) daemonState(c *gin.Context) {
	snap, at := s.session.Snapshot()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":            true,
		"received_at":          at,
		"state":                snap.ProtoHandlerStatus,
		"state_label":          snap.ProtoHandlerStatus.Label(),
		"loaded_show_id":       snap.LoadedShowID,
		"loaded_show_name":     snap.LoadedShowName,
		"show_running":         snap.ShowRunning,
		"armed":                snap.DeviceIsArmed,
		"active_protocol":      snap.ActiveProtocol,
		"fire_check_failures":  snap.FireCheckFailures,
		"proto_handler_errors": snap.ProtoHandlerErrors,
	})
}

// loadShow sends load_show. Offline receivers produce a warning in the response,
// never a refusal.
func (s *Server) loadShow(c *gin.Context) {
	id, err := showID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	cmd, warning, err := s.session.LoadCommand(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !s.send(c, cmd) {
		return
	}
	resp := gin.H{"command": cmd}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusAccepted, resp)
}

// startShow sends start_show only when the show the daemon has loaded is ready.
func (s *Server) startShow(c *gin.Context) {
	snap, _ := s.session.Snapshot()
	if snap == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no show loaded on the daemon"})
		return
	}
	loaded, ok := snap.LoadedShow()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no show loaded on the daemon"})
		return
	}
	h, err := s.session.HealthFor(loaded)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !h.Ready() {
		c.JSON(http.StatusConflict, gin.H{"error": "show is not ready", "health": h})
		return
	}

	cmd := daemon.CreateStartShowCommand()
	if !s.send(c, cmd) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"command": cmd})
}

// setProtocol overrides the configured active protocol; an empty name clears it.
func (s *Server) setProtocol(c *gin.Context) {
	var request struct {
		Protocol string `json:"protocol"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.session.SetProtocol(c.Request.Context(), request.Protocol); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"protocol": request.Protocol})
}

func (s *Server) manualFire(c *gin.Context) {
	var request struct {
		Zone   string `json:"zone"`
		Target int    `json:"target"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cmd, err := daemon.CreateManualFireCommand(request.Zone, request.Target)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !s.send(c, cmd) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"command": cmd})
}

// warnings renders the configuration problems behind a health verdict.
func warnings(h health.Health) []string {
	out := []string{}
	for _, problem := range h.Problems() {
		out = append(out, problem.Error())
	}
	return out
}
