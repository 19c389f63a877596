package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/services/hub"
	"sentinel-worker-go/internal/services/postprocessing"
)

// SubscriberStats reports subscriber hub counters
type SubscriberStats interface {
	Stats() hub.Stats
}

// ModelReporter reports the active model path
type ModelReporter interface {
	CurrentPath() string
}

// AlertStats reports alert dispatch counters
type AlertStats interface {
	Stats() postprocessing.Stats
}

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID  string
	startedAt time.Time
	hub       SubscriberStats
	models    ModelReporter
	alerts    AlertStats
}

// NewSystemHandler creates a new system handler. alerts may be nil when
// alert publishing is disabled.
func NewSystemHandler(workerID string, hub SubscriberStats, models ModelReporter, alerts AlertStats) *SystemHandler {
	return &SystemHandler{
		WorkerID:  workerID,
		startedAt: time.Now(),
		hub:       hub,
		models:    models,
		alerts:    alerts,
	}
}

// @Summary Get system stats
// @Description Get runtime, subscriber, model and alert statistics
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := gin.H{
		"worker_id":      h.WorkerID,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"memory_mb":      m.Alloc / 1024 / 1024,
		"cpu_cores":      runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
		"subscribers":    h.hub.Stats(),
		"current_model":  h.models.CurrentPath(),
	}
	if h.alerts != nil {
		stats["alerts"] = h.alerts.Stats()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"stats":     stats,
		"timestamp": time.Now().Unix(),
	})
}
