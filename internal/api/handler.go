package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/digest"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

// Suggester is the on-demand suggestion entry point.
type Suggester interface {
	SmartSuggestions(ctx context.Context) []events.Suggestion
}

// SchedulePeek exposes the scheduler's pending fire times.
type SchedulePeek interface {
	NextFires() map[string]time.Time
}

// TaskEvents relays task-created notifications to the queue.
type TaskEvents interface {
	PublishTaskCreated(sourceID, taskID string) error
}

type HandlerConfig struct {
	Suggester Suggester
	Runner    digest.CycleRunner
	Scheduler SchedulePeek
	State     digest.StateStore
	Events    TaskEvents
	Clock     func() time.Time
	Logger    logging.Logger
}

// Handler serves the desktop app's HTTP surface: on-demand suggestions,
// the task-created callback, and digest introspection/trigger routes.
type Handler struct {
	suggester Suggester
	runner    digest.CycleRunner
	scheduler SchedulePeek
	state     digest.StateStore
	events    TaskEvents
	clock     func() time.Time
	logger    logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		suggester: cfg.Suggester,
		runner:    cfg.Runner,
		scheduler: cfg.Scheduler,
		state:     cfg.State,
		events:    cfg.Events,
		clock:     clock,
		logger:    cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/pulse")
	api.GET("/suggestions", h.getSuggestions)
	api.POST("/tasks", h.createTask)
	api.POST("/digest/run", h.runDigest)
	api.GET("/digest/state", h.digestState)
}

func (h *Handler) getSuggestions(c *gin.Context) {
	if h.suggester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "suggestions not configured"})
		return
	}
	suggestions := h.suggester.SmartSuggestions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type createTaskRequest struct {
	SourceID string `json:"sourceId" binding:"required"`
	TaskID   string `json:"taskId" binding:"required"`
}

// createTask is the host callback after a user converts a suggestion
// into a task. Recording is permanent: the item never resurfaces.
func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceId and taskId are required"})
		return
	}

	if err := h.state.RecordTaskCreated(c.Request.Context(), req.SourceID, req.TaskID, h.clock()); err != nil {
		h.logger.WithError(err).WithField("source_id", req.SourceID).Error("Failed to record created task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record task"})
		return
	}

	if h.events != nil {
		if err := h.events.PublishTaskCreated(req.SourceID, req.TaskID); err != nil {
			h.logger.WithError(err).Warn("Failed to publish task event")
		}
	}
	c.JSON(http.StatusOK, gin.H{"sourceId": req.SourceID, "taskId": req.TaskID})
}

type runDigestRequest struct {
	Slot string `json:"slot"`
}

// runDigest triggers one digest cycle outside the schedule, labeled
// "manual" unless a slot is given. The 1-hour resend guard still
// applies per label.
func (h *Handler) runDigest(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "digest not configured"})
		return
	}
	var req runDigestRequest
	_ = c.ShouldBindJSON(&req)
	slot := req.Slot
	if slot == "" {
		slot = "manual"
	}

	if err := h.runner.RunCycle(c.Request.Context(), slot); err != nil {
		h.logger.WithError(err).WithField("slot", slot).Error("Manual digest cycle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest cycle failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": slot, "status": "completed"})
}

func (h *Handler) digestState(c *gin.Context) {
	resp := gin.H{"enabled": h.runner != nil && h.scheduler != nil}
	if h.scheduler != nil {
		next := make(map[string]string)
		for slot, at := range h.scheduler.NextFires() {
			next[slot] = at.Format(time.RFC3339)
		}
		resp["nextFires"] = next
	}
	c.JSON(http.StatusOK, resp)
}
