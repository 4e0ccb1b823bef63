package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/internal/services"
	apperrors "github.com/kestrelworks/skimmer/pkg/errors"
	"github.com/kestrelworks/skimmer/pkg/response"
)

// ArticleHandler exposes article listings and CRUD over HTTP.
type ArticleHandler struct {
	svc *services.ArticleService
}

// NewArticleHandler constructs an article handler.
func NewArticleHandler(svc *services.ArticleService) *ArticleHandler {
	return &ArticleHandler{svc: svc}
}

type articleDTO struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Author      string   `json:"author,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Score       float64  `json:"score"`
	Status      string   `json:"status"`
	PublishedAt string   `json:"published_at"`
}

func mapArticle(article models.Article) articleDTO {
	return articleDTO{
		ID:          article.ID,
		SourceID:    article.SourceID,
		Title:       article.Title,
		URL:         article.URL,
		Author:      article.Author,
		Summary:     article.Summary,
		Tags:        article.Tags,
		Score:       article.Score,
		Status:      article.Status,
		PublishedAt: article.PublishedAt.UTC().Format(time.RFC3339),
	}
}

func mapArticles(articles []models.Article) []articleDTO {
	out := make([]articleDTO, 0, len(articles))
	for _, article := range articles {
		out = append(out, mapArticle(article))
	}
	return out
}

// List handles GET /api/articles.
func (h *ArticleHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, err := h.svc.List(requestContext(c), services.ListArticlesOptions{
		Cursor:    c.Query("cursor"),
		Limit:     limit,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		SourceID:  c.Query("source_id"),
		Status:    c.Query("status"),
	})
	if err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"items":    mapArticles(page.Items),
		"pageInfo": page.PageInfo,
	})
}

// Popular handles GET /api/articles/popular.
func (h *ArticleHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	articles, err := h.svc.Popular(requestContext(c), c.Query("period"), limit)
	if err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"items": mapArticles(articles)})
}

// Get handles GET /api/articles/:id.
func (h *ArticleHandler) Get(c *gin.Context) {
	article, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusOK, mapArticle(*article))
}

type createArticleRequest struct {
	SourceID    string   `json:"source_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=512"`
	URL         string   `json:"url" validate:"required,url,max=2048"`
	Author      string   `json:"author,omitempty" validate:"max=256"`
	Summary     string   `json:"summary,omitempty"`
	Content     string   `json:"content,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Status      string   `json:"status,omitempty" validate:"omitempty,oneof=pending summarized archived"`
	PublishedAt string   `json:"published_at,omitempty"`
}

// Create handles POST /api/articles.
func (h *ArticleHandler) Create(c *gin.Context) {
	var req createArticleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	publishedAt, ok := parseTimestamp(c, req.PublishedAt)
	if !ok {
		return
	}

	article, err := h.svc.Create(requestContext(c), services.CreateArticleInput{
		SourceID:    req.SourceID,
		Title:       req.Title,
		URL:         req.URL,
		Author:      req.Author,
		Summary:     req.Summary,
		Content:     req.Content,
		Tags:        req.Tags,
		Score:       req.Score,
		Status:      req.Status,
		PublishedAt: publishedAt,
	})
	if err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusCreated, mapArticle(*article))
}

type updateArticleRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=512"`
	Author      *string   `json:"author,omitempty" validate:"omitempty,max=256"`
	Summary     *string   `json:"summary,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Score       *float64  `json:"score,omitempty"`
	Status      *string   `json:"status,omitempty" validate:"omitempty,oneof=pending summarized archived"`
	PublishedAt *string   `json:"published_at,omitempty"`
}

// Update handles PATCH /api/articles/:id.
func (h *ArticleHandler) Update(c *gin.Context) {
	var req updateArticleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateArticleInput{
		Title:   req.Title,
		Author:  req.Author,
		Summary: req.Summary,
		Content: req.Content,
		Tags:    req.Tags,
		Score:   req.Score,
		Status:  req.Status,
	}
	if req.PublishedAt != nil {
		publishedAt, ok := parseTimestamp(c, *req.PublishedAt)
		if !ok {
			return
		}
		input.PublishedAt = &publishedAt
	}

	article, err := h.svc.Update(requestContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusOK, mapArticle(*article))
}

// Delete handles DELETE /api/articles/:id.
func (h *ArticleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, mapArticleError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// parseTimestamp reads an optional RFC3339 timestamp, writing the error
// response itself when the value is malformed.
func parseTimestamp(c *gin.Context, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("published_at must be an RFC3339 timestamp"))
		return time.Time{}, false
	}
	return parsed, true
}

func mapArticleError(err error) error {
	switch {
	case errors.Is(err, services.ErrArticleNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, services.ErrDuplicateArticle):
		return apperrors.ErrConflict
	case errors.Is(err, services.ErrInvalidSortField):
		return apperrors.NewBadRequest("sort_by must be one of: published_at, created_at, score")
	case errors.Is(err, services.ErrInvalidPeriod):
		return apperrors.NewBadRequest("period must be one of: day, week, month")
	default:
		return err
	}
}
