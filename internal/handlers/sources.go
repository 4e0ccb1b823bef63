package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/internal/services"
	apperrors "github.com/kestrelworks/skimmer/pkg/errors"
	"github.com/kestrelworks/skimmer/pkg/response"
)

// SourceRefresher triggers an on-demand fetch of a single source, outside the
// regular schedule.
type SourceRefresher interface {
	RunSource(ctx context.Context, source models.Source) error
}

// SourceHandler exposes feed source management over HTTP.
type SourceHandler struct {
	svc       *services.SourceService
	refresher SourceRefresher
}

// NewSourceHandler constructs a source handler. refresher may be nil, which
// disables the manual refresh endpoint.
func NewSourceHandler(svc *services.SourceService, refresher SourceRefresher) *SourceHandler {
	return &SourceHandler{svc: svc, refresher: refresher}
}

type sourceDTO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	FeedURL     string         `json:"feed_url"`
	Kind        string         `json:"kind"`
	Schedule    string         `json:"schedule,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
	Enabled     bool           `json:"enabled"`
	LastFetched string         `json:"last_fetched,omitempty"`
}

func mapSource(source models.Source) sourceDTO {
	dto := sourceDTO{
		ID:       source.ID,
		Name:     source.Name,
		FeedURL:  source.FeedURL,
		Kind:     source.Kind,
		Schedule: source.Schedule,
		Settings: source.Settings,
		Enabled:  source.Enabled,
	}
	if source.LastFetched != nil {
		dto.LastFetched = source.LastFetched.UTC().Format(time.RFC3339)
	}
	return dto
}

// List handles GET /api/sources.
func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]sourceDTO, 0, len(sources))
	for _, source := range sources {
		items = append(items, mapSource(source))
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

// Get handles GET /api/sources/:id.
func (h *SourceHandler) Get(c *gin.Context) {
	source, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapSourceError(err))
		return
	}

	response.Success(c, http.StatusOK, mapSource(*source))
}

type createSourceRequest struct {
	Name     string         `json:"name" validate:"required,max=256"`
	FeedURL  string         `json:"feed_url" validate:"required,url,max=2048"`
	Kind     string         `json:"kind,omitempty" validate:"omitempty,oneof=rss api"`
	Schedule string         `json:"schedule,omitempty" validate:"max=64"`
	Settings map[string]any `json:"settings,omitempty"`
	Enabled  *bool          `json:"enabled,omitempty"`
}

// Create handles POST /api/sources.
func (h *SourceHandler) Create(c *gin.Context) {
	var req createSourceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	source, err := h.svc.Create(requestContext(c), services.CreateSourceInput{
		Name:     req.Name,
		FeedURL:  req.FeedURL,
		Kind:     req.Kind,
		Schedule: req.Schedule,
		Settings: req.Settings,
		Enabled:  req.Enabled,
	})
	if err != nil {
		response.Error(c, mapSourceError(err))
		return
	}

	response.Success(c, http.StatusCreated, mapSource(*source))
}

type updateSourceRequest struct {
	Name     *string         `json:"name,omitempty" validate:"omitempty,max=256"`
	FeedURL  *string         `json:"feed_url,omitempty" validate:"omitempty,url,max=2048"`
	Kind     *string         `json:"kind,omitempty" validate:"omitempty,oneof=rss api"`
	Schedule *string         `json:"schedule,omitempty" validate:"omitempty,max=64"`
	Settings *map[string]any `json:"settings,omitempty"`
	Enabled  *bool           `json:"enabled,omitempty"`
}

// Update handles PATCH /api/sources/:id.
func (h *SourceHandler) Update(c *gin.Context) {
	var req updateSourceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	source, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateSourceInput{
		Name:     req.Name,
		FeedURL:  req.FeedURL,
		Kind:     req.Kind,
		Schedule: req.Schedule,
		Settings: req.Settings,
		Enabled:  req.Enabled,
	})
	if err != nil {
		response.Error(c, mapSourceError(err))
		return
	}

	response.Success(c, http.StatusOK, mapSource(*source))
}

// Delete handles DELETE /api/sources/:id.
func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, mapSourceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Refresh handles POST /api/sources/:id/refresh, fetching the source outside
// its regular schedule.
func (h *SourceHandler) Refresh(c *gin.Context) {
	if h.refresher == nil {
		response.Error(c, apperrors.New("NOT_AVAILABLE", "manual refresh is not enabled", http.StatusServiceUnavailable))
		return
	}

	ctx := requestContext(c)
	source, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, mapSourceError(err))
		return
	}

	if err := h.refresher.RunSource(ctx, *source); err != nil {
		response.Error(c, apperrors.Wrap(err, "source fetch failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"refreshed": true})
}

func mapSourceError(err error) error {
	switch {
	case errors.Is(err, services.ErrSourceNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, services.ErrDuplicateSource):
		return apperrors.ErrConflict
	case errors.Is(err, services.ErrInvalidSourceKind):
		return apperrors.NewBadRequest("kind must be rss or api")
	default:
		return err
	}
}
