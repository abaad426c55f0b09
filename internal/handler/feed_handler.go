package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/dto"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/service"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/response"
)

// FeedHandler wires per-user notification feed sessions to HTTP endpoints.
type FeedHandler struct {
	registry *service.FeedRegistry
	pageSize int
}

// NewFeedHandler constructs the handler.
func NewFeedHandler(registry *service.FeedRegistry, defaultPageSize int) *FeedHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	return &FeedHandler{registry: registry, pageSize: defaultPageSize}
}

func (h *FeedHandler) session(c *gin.Context) *service.FeedService {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	return h.registry.Session(c.Request.Context(), userID)
}

// ensureFresh fetches the list on first use of a session.
func (h *FeedHandler) ensureFresh(c *gin.Context, feed *service.FeedService, force bool) error {
	if !force && !feed.LastSync().IsZero() {
		return nil
	}
	return feed.Refresh(c.Request.Context(), defaultListParams(), !force)
}

func defaultListParams() repository.ListParams {
	return repository.ListParams{PageNo: 1, PageSize: 100}
}

// List godoc
// @Summary Filtered, sorted, paginated notification list
// @Tags Notifications
// @Produce json
// @Param page query int false "Page (1-indexed)"
// @Param pageSize query int false "Page size"
// @Param level query int false "Level filter (1-4)"
// @Param scope query string false "Scope filter"
// @Param readStatus query string false "all|read|unread"
// @Param keyword query string false "Title/content search"
// @Param sort query string false "time_desc|time_asc|level_then_time|publisher"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *FeedHandler) List(c *gin.Context) {
	var query dto.FeedListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query"))
		return
	}

	feed := h.session(c)
	if err := h.ensureFresh(c, feed, query.Refresh); err != nil {
		response.Error(c, err)
		return
	}

	filter, err := filterFromQuery(query)
	if err != nil {
		response.Error(c, err)
		return
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = h.pageSize
	}
	presenter := service.NewFeedPresenter(feed, pageSize)
	presenter.SetFilter(filter)
	presenter.SetSort(query.Sort)
	if query.Page > 1 {
		presenter.GoTo(query.Page)
	}

	page := presenter.Page()
	response.JSON(c, http.StatusOK, page.Records, &page.Pagination)
}

func filterFromQuery(query dto.FeedListQuery) (service.FeedFilter, error) {
	filter := service.FeedFilter{
		Level:      query.Level,
		Scope:      models.NotificationScope(query.Scope),
		ReadStatus: query.ReadStatus,
		Keyword:    query.Keyword,
	}
	if query.From != "" {
		from, err := time.Parse("2006-01-02", query.From)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		filter.From = from
	}
	if query.To != "" {
		to, err := time.Parse("2006-01-02", query.To)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		// Inclusive end of day.
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	return filter, nil
}

// Views godoc
// @Summary Categorized notification buckets with unread counters
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/views [get]
func (h *FeedHandler) Views(c *gin.Context) {
	feed := h.session(c)
	if err := h.ensureFresh(c, feed, false); err != nil {
		response.Error(c, err)
		return
	}

	payload := dto.FeedViewsResponse{
		Views:      feed.Views(),
		Stats:      feed.UnreadStats(),
		LastSyncMs: feed.LastSync().UnixMilli(),
	}
	response.JSONWithNotices(c, http.StatusOK, payload, feed.DrainNotices())
}

// Detail godoc
// @Summary Single notification detail
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Param markRead query bool false "Mark read on open (default true)"
// @Success 200 {object} response.Envelope
// @Router /notifications/{id} [get]
func (h *FeedHandler) Detail(c *gin.Context) {
	id, err := notificationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	markRead := true
	if raw := c.Query("markRead"); raw != "" {
		markRead = raw != "false" && raw != "0"
	}

	feed := h.session(c)
	record, err := feed.Detail(c.Request.Context(), id, markRead)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Param id path int true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *FeedHandler) MarkRead(c *gin.Context) {
	id, err := notificationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.session(c).MarkRead(id)
	response.NoContent(c)
}

// MarkUnread godoc
// @Summary Move a notification back to unread
// @Tags Notifications
// @Param id path int true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [delete]
func (h *FeedHandler) MarkUnread(c *gin.Context) {
	id, err := notificationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.session(c).MarkUnread(id)
	response.NoContent(c)
}

// Hide godoc
// @Summary Permanently hide a notification
// @Tags Notifications
// @Param id path int true "Notification ID"
// @Success 204
// @Router /notifications/{id}/hide [post]
func (h *FeedHandler) Hide(c *gin.Context) {
	id, err := notificationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.session(c).Hide(id)
	response.NoContent(c)
}

// BulkRead godoc
// @Summary Mark several notifications read
// @Tags Notifications
// @Accept json
// @Param payload body dto.BulkReadRequest true "Notification IDs"
// @Success 204
// @Router /notifications/bulk-read [post]
func (h *FeedHandler) BulkRead(c *gin.Context) {
	var req dto.BulkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk read payload"))
		return
	}
	h.session(c).MarkBulkRead(req.IDs)
	response.NoContent(c)
}

// ClearArchive godoc
// @Summary Clear the read archive
// @Tags Notifications
// @Success 204
// @Router /notifications/archive [delete]
func (h *FeedHandler) ClearArchive(c *gin.Context) {
	h.session(c).ClearArchive()
	response.NoContent(c)
}

// Stats godoc
// @Summary Unread counters
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/stats [get]
func (h *FeedHandler) Stats(c *gin.Context) {
	feed := h.session(c)
	if err := h.ensureFresh(c, feed, false); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed.UnreadStats(), nil)
}

// Refresh godoc
// @Summary Force a fresh fetch from the school server
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/refresh [post]
func (h *FeedHandler) Refresh(c *gin.Context) {
	feed := h.session(c)
	if err := h.ensureFresh(c, feed, true); err != nil {
		response.Error(c, err)
		return
	}
	payload := dto.FeedViewsResponse{
		Views:      feed.Views(),
		Stats:      feed.UnreadStats(),
		LastSyncMs: feed.LastSync().UnixMilli(),
	}
	response.JSONWithNotices(c, http.StatusOK, payload, feed.DrainNotices())
}

// ReadState godoc
// @Summary Persisted read-state snapshot for the current user
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read-state [get]
func (h *FeedHandler) ReadState(c *gin.Context) {
	feed := h.session(c)
	state := feed.ReadState()
	response.JSON(c, http.StatusOK, dto.ReadStateResponse{
		UserID: state.UserID(),
		State:  state.Snapshot(),
	}, nil)
}

func notificationID(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "id must be a positive integer")
	}
	return id, nil
}
