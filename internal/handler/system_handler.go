package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// Dependency is a backing service the API cannot work without.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// QueueInspector reports the backlog of the persist queues.
type QueueInspector interface {
	QueueDepths(ctx context.Context) (map[string]int64, error)
}

// SystemHandler serves liveness and runtime status.
type SystemHandler struct {
	deps      []Dependency
	queues    QueueInspector
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(deps []Dependency, queues QueueInspector, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		deps:      deps,
		queues:    queues,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings every dependency. Any failure turns the response into a 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true
	for _, d := range h.deps {
		if err := d.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", d.Name).Msg("Health check failed")
			checks[d.Name] = "down"
			healthy = false
			continue
		}
		checks[d.Name] = "ok"
	}

	if !healthy {
		response.FailWithFields(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable, checks)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

type systemStatus struct {
	Uptime      string           `json:"uptime"`
	GoVersion   string           `json:"go_version"`
	NumCPU      int              `json:"num_cpu"`
	Goroutines  int              `json:"goroutines"`
	HeapAlloc   uint64           `json:"heap_alloc"`
	HeapSys     uint64           `json:"heap_sys"`
	NumGC       uint32           `json:"num_gc"`
	QueueDepths map[string]int64 `json:"queue_depths"`
}

// Status godoc
// GET /api/v1/admin/system/status
// Go runtime figures and the backlog of each persist queue.
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := systemStatus{
		Uptime:     formatDuration(time.Since(h.startTime)),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.Sys,
		NumGC:      ms.NumGC,
	}

	depths, err := h.queues.QueueDepths(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	st.QueueDepths = depths

	response.Success(c, http.StatusOK, st)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
