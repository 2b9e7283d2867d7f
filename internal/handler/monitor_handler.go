package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/model"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// SessionMonitor produces live session snapshots.
type SessionMonitor interface {
	Snapshot(ctx context.Context, sessionID uuid.UUID) (*model.MonitorSnapshot, error)
}

// MonitorHandler streams live session progress to proctors over SSE.
type MonitorHandler struct {
	monitor   SessionMonitor
	log       zerolog.Logger
	refresh   time.Duration
	keepAlive time.Duration
}

func NewMonitorHandler(monitor SessionMonitor, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor:   monitor,
		log:       log.With().Str("component", "monitor_handler").Logger(),
		refresh:   refreshInterval,
		keepAlive: keepAliveInterval,
	}
}

// MonitorSession godoc
// GET /api/v1/admin/sessions/:id/monitor
// Streams a snapshot event on connect and a fresh one every refresh interval.
func (h *MonitorHandler) MonitorSession(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	reqCtx := c.Request.Context()

	// Errors before the stream opens still get a normal JSON envelope.
	snap, err := h.snapshot(reqCtx, sessionID)
	if err != nil {
		fail(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("snapshot", snap)
	c.Writer.Flush()

	log := h.log.With().Str("session_id", sessionID.String()).Logger()
	log.Info().Msg("Proctor attached to session monitor")

	refresh := time.NewTicker(h.refresh)
	defer refresh.Stop()
	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Proctor detached from session monitor")
			return

		case <-refresh.C:
			snap, err := h.snapshot(reqCtx, sessionID)
			if err != nil {
				if reqCtx.Err() == nil {
					log.Warn().Err(err).Msg("Failed to refresh session monitor")
				}
				continue
			}
			c.SSEvent("snapshot", snap)
			c.Writer.Flush()

		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) snapshot(ctx context.Context, sessionID uuid.UUID) (*model.MonitorSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	return h.monitor.Snapshot(ctx, sessionID)
}
