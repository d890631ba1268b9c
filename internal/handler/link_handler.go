package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"github.com/SergeiKhy/smart-shortener/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const siteTitle = "Smart Shortener"

// Сообщения для HTML-формы
const (
	msgCreated           = "Short URL created successfully!"
	msgURLMissing        = "Please provide a valid URL."
	msgInvalidURL        = "Invalid URL format. Please check and try again."
	msgInvalidAlias      = "Invalid custom alias. Use letters, digits, '-' or '_' (up to 100 characters)."
	msgAliasTaken        = "Custom alias already taken. Try another one."
	msgGenerationFailure = "Could not generate a unique short ID. Try again later."
)

type LinkHandler struct {
	links    service.LinkService
	resolver service.Resolver
	baseURL  string
	logger   *zap.Logger
}

func NewLinkHandler(links service.LinkService, resolver service.Resolver, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:    links,
		resolver: resolver,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// CreateFormRequest поля формы на главной странице (принимается и JSON)
type CreateFormRequest struct {
	URL         string `form:"url" json:"url"`
	OriginalURL string `form:"original_url" json:"original_url"`
	CustomAlias string `form:"custom_alias" json:"custom_alias"`
}

type CreateLinkRequest struct {
	URL    string `json:"url"`
	Custom string `json:"custom"`
}

type CreateLinkResponse struct {
	ShortURL string `json:"short_url"`
	ID       string `json:"id"`
}

type ClickResponse struct {
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

type StatsResponse struct {
	ID           string          `json:"id"`
	ShortURL     string          `json:"short_url"`
	OriginalURL  string          `json:"original_url"`
	CreatedAt    time.Time       `json:"created_at"`
	ClickCount   int64           `json:"click_count"`
	TotalClicks  int64           `json:"total_clicks"`
	RecentClicks []ClickResponse `json:"recent_clicks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Home главная страница с формой
func (h *LinkHandler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title": siteTitle,
		"Flash": popFlash(c),
	})
}

// CreateLinkForm godoc
// @Summary Create a short link from the home page form
// @Accept x-www-form-urlencoded,json
// @Produce html
// @Success 200 {string} string "created page"
// @Success 303 {string} string "redirect to / with a flash message"
// @Router /create [post]
func (h *LinkHandler) CreateLinkForm(c *gin.Context) {
	var req CreateFormRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Debug("Ignoring malformed form body", zap.Error(err))
		req = CreateFormRequest{}
	}

	original := req.URL
	if original == "" {
		original = req.OriginalURL
	}

	link, created, err := h.links.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		OriginalURL: original,
		CustomAlias: optional(req.CustomAlias),
	})
	if err != nil {
		message := formErrorMessage(err)
		if message == "" {
			h.logger.Error("Failed to create link", zap.Error(err))
			h.renderError(c, http.StatusInternalServerError)
			return
		}
		setFlash(c, flashError, message)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	data := gin.H{
		"Title":    siteTitle,
		"Link":     link,
		"ShortURL": h.shortURL(c, link),
	}
	// для уже существующей ссылки сообщение об успехе не показывается
	if created {
		data["Flash"] = &Flash{Category: flashSuccess, Message: msgCreated}
	}

	c.HTML(http.StatusOK, "created.html", data)
}

// CreateLinkAPI godoc
// @Summary Create a short link
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "url and optional custom alias"
// @Success 200 {object} CreateLinkResponse "existing link reused"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/create [post]
func (h *LinkHandler) CreateLinkAPI(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// некорректный JSON считается пустым запросом
		req = CreateLinkRequest{}
	}

	link, created, err := h.links.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		OriginalURL: req.URL,
		CustomAlias: optional(req.Custom),
	})
	if err != nil {
		status, message := apiError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to create link", zap.Error(err))
		}
		c.JSON(status, ErrorResponse{Error: message})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	c.JSON(status, CreateLinkResponse{
		ShortURL: h.shortURL(c, link),
		ID:       link.DisplayID(),
	})
}

// Redirect godoc
// @Summary Redirect to the original URL
// @Description The click is recorded before the redirect is sent
// @Param id path string true "Short code or custom alias"
// @Success 302
// @Failure 404 {string} string "not found page"
// @Router /{id} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	id := c.Param("id")

	link, err := h.resolver.Resolve(c.Request.Context(), id, &models.Visit{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			h.renderError(c, http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to resolve link", zap.String("id", id), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError)
		return
	}

	c.Redirect(http.StatusFound, link.OriginalURL)
}

// Stats страница статистики ссылки
func (h *LinkHandler) Stats(c *gin.Context) {
	id := c.Param("id")

	stats, err := h.links.GetStats(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			h.renderError(c, http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get stats", zap.String("id", id), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError)
		return
	}

	c.HTML(http.StatusOK, "stats.html", gin.H{
		"Title":    "URL Stats",
		"Stats":    stats,
		"ShortURL": h.shortURL(c, stats.Link),
	})
}

// StatsAPI godoc
// @Summary Get link statistics
// @Produce json
// @Param id path string true "Short code or custom alias"
// @Success 200 {object} StatsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/stats/{id} [get]
func (h *LinkHandler) StatsAPI(c *gin.Context) {
	id := c.Param("id")

	stats, err := h.links.GetStats(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			return
		}
		h.logger.Error("Failed to get stats", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	clicks := make([]ClickResponse, 0, len(stats.RecentClicks))
	for _, click := range stats.RecentClicks {
		clicks = append(clicks, ClickResponse{
			ClickedAt: click.ClickedAt,
			IPAddress: click.IPAddress,
			UserAgent: click.UserAgent,
			Referer:   click.Referer,
		})
	}

	c.JSON(http.StatusOK, StatsResponse{
		ID:           stats.Link.DisplayID(),
		ShortURL:     h.shortURL(c, stats.Link),
		OriginalURL:  stats.Link.OriginalURL,
		CreatedAt:    stats.Link.CreatedAt,
		ClickCount:   stats.Link.ClickCount,
		TotalClicks:  stats.TotalClicks,
		RecentClicks: clicks,
	})
}

// DeleteLink godoc
// @Summary Delete a link and its clicks
// @Security ApiKeyAuth
// @Param id path string true "Short code or custom alias"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/links/{id} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	id := c.Param("id")

	if err := h.links.DeleteLink(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			return
		}
		h.logger.Error("Failed to delete link", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	h.logger.Info("Link deleted", zap.String("id", id))
	c.Status(http.StatusNoContent)
}

// HealthCheck godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound страница для неизвестных маршрутов
func (h *LinkHandler) NotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound)
}

func (h *LinkHandler) renderError(c *gin.Context, status int) {
	if status == http.StatusNotFound {
		c.HTML(status, "404.html", gin.H{"Title": "Not Found"})
		return
	}
	c.HTML(status, "error.html", gin.H{"Title": "Something went wrong"})
}

// shortURL BASE_URL из конфигурации или адрес, по которому пришёл запрос
func (h *LinkHandler) shortURL(c *gin.Context, link *models.Link) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host + "/"
	}
	return base + link.DisplayID()
}

func formErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrURLMissing):
		return msgURLMissing
	case errors.Is(err, service.ErrInvalidURL):
		return msgInvalidURL
	case errors.Is(err, service.ErrInvalidAlias):
		return msgInvalidAlias
	case errors.Is(err, service.ErrAliasTaken):
		return msgAliasTaken
	case errors.Is(err, service.ErrGenerationExhausted):
		return msgGenerationFailure
	default:
		return ""
	}
}

func apiError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrURLMissing):
		return http.StatusBadRequest, "url missing"
	case errors.Is(err, service.ErrInvalidURL):
		return http.StatusBadRequest, "invalid url"
	case errors.Is(err, service.ErrInvalidAlias):
		return http.StatusBadRequest, "invalid alias"
	case errors.Is(err, service.ErrAliasTaken):
		return http.StatusConflict, "custom alias taken"
	case errors.Is(err, service.ErrGenerationExhausted):
		return http.StatusInternalServerError, "failed to generate short id"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
