package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/dto"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/service"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/response"
)

// CacheHandler exposes the notification cache of the caller's session.
type CacheHandler struct {
	registry *service.FeedRegistry
}

// NewCacheHandler constructs the handler.
func NewCacheHandler(registry *service.FeedRegistry) *CacheHandler {
	return &CacheHandler{registry: registry}
}

func (h *CacheHandler) notifications(c *gin.Context) *service.NotificationService {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	return h.registry.Session(c.Request.Context(), userID).Notifications()
}

// Stats godoc
// @Summary Notification cache occupancy and settings
// @Tags Cache
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cache/stats [get]
func (h *CacheHandler) Stats(c *gin.Context) {
	notifications := h.notifications(c)
	size, keys := notifications.CacheStats()
	opts := notifications.Options()
	response.JSON(c, http.StatusOK, dto.CacheStatsResponse{
		Size:    size,
		MaxSize: opts.MaxSize,
		TTLMs:   opts.TTL.Milliseconds(),
		Enabled: opts.Enabled,
		Keys:    keys,
	}, nil)
}

// Configure godoc
// @Summary Update cache settings at runtime
// @Tags Cache
// @Accept json
// @Param payload body dto.CacheConfigRequest true "Partial cache settings"
// @Success 200 {object} response.Envelope
// @Router /cache/config [patch]
func (h *CacheHandler) Configure(c *gin.Context) {
	var req dto.CacheConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cache config payload"))
		return
	}

	notifications := h.notifications(c)
	opts := notifications.Options()
	if req.Enabled != nil {
		opts.Enabled = *req.Enabled
	}
	if req.TTLMs != nil {
		opts.TTL = time.Duration(*req.TTLMs) * time.Millisecond
	}
	if req.MaxSize != nil {
		opts.MaxSize = *req.MaxSize
	}
	notifications.Configure(opts)

	opts = notifications.Options()
	size, keys := notifications.CacheStats()
	response.JSON(c, http.StatusOK, dto.CacheStatsResponse{
		Size:    size,
		MaxSize: opts.MaxSize,
		TTLMs:   opts.TTL.Milliseconds(),
		Enabled: opts.Enabled,
		Keys:    keys,
	}, nil)
}

// Invalidate godoc
// @Summary Drop cached notifications
// @Tags Cache
// @Param prefix query string false "Only drop keys with this prefix"
// @Success 204
// @Router /cache [delete]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	h.notifications(c).Invalidate(c.Query("prefix"))
	response.NoContent(c)
}
