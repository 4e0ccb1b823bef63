package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kestrelworks/skimmer/pkg/errors"
	"github.com/kestrelworks/skimmer/pkg/response"
)

// IngestRunner walks every due source once, outside the regular schedule.
type IngestRunner interface {
	RunOnce(ctx context.Context) error
}

// IngestHandler exposes the manual fetch trigger.
type IngestHandler struct {
	runner IngestRunner
}

// NewIngestHandler constructs an ingest handler. runner may be nil when no
// fetchers are registered, which disables the endpoint.
func NewIngestHandler(runner IngestRunner) *IngestHandler {
	return &IngestHandler{runner: runner}
}

// Run handles POST /api/ingest/run, fetching all enabled sources synchronously.
func (h *IngestHandler) Run(c *gin.Context) {
	if h.runner == nil {
		response.Error(c, apperrors.New("NOT_AVAILABLE", "ingestion is not enabled", http.StatusServiceUnavailable))
		return
	}

	if err := h.runner.RunOnce(requestContext(c)); err != nil {
		response.Error(c, apperrors.Wrap(err, "ingest run failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"completed": true})
}
