// Package api exposes job submission and status polling over HTTP.
package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/middleware"
	"github.com/saru2020/ClipsExtractor/internal/realtime"
	"github.com/saru2020/ClipsExtractor/pkg/response"
)

// ExtractRequest is the body for POST /api/extract.
type ExtractRequest struct {
	URL    string `json:"url" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// Handler handles the job HTTP endpoints.
type Handler struct {
	svc    *Service
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewHandler creates a job handler. hub may be nil to disable the watch endpoint.
func NewHandler(svc *Service, hub *realtime.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, hub: hub, logger: logger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	g := r.Group("/api")
	g.POST("/extract", h.Extract)
	g.GET("/jobs/:id", tagJob, h.Status)
	if h.hub != nil {
		g.GET("/jobs/:id/watch", tagJob, realtime.ServeWatch(h.hub, h.svc.Status, h.logger))
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "jobs": h.svc.Count()})
}

// Extract handles POST /api/extract.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.Submit(req.URL, req.Prompt)
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, ErrUnavailable):
		response.ServiceUnavailable(c, "server is shutting down")
		return
	case err != nil:
		response.Internal(c, "failed to submit job")
		return
	}
	c.Set(middleware.JobIDKey, view.ID)
	response.Created(c, view)
}

// Status handles GET /api/jobs/:id.
func (h *Handler) Status(c *gin.Context) {
	view, err := h.svc.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			response.NotFound(c, "Job not found")
			return
		}
		response.Internal(c, "failed to load job")
		return
	}
	response.OK(c, view)
}

func tagJob(c *gin.Context) {
	c.Set(middleware.JobIDKey, c.Param("id"))
	c.Next()
}
