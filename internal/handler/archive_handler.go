package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/service"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/response"
)

// ArchiveHandler exports the read archive to downloadable files.
type ArchiveHandler struct {
	registry *service.FeedRegistry
	exports  *service.ExportService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(registry *service.FeedRegistry, exports *service.ExportService) *ArchiveHandler {
	return &ArchiveHandler{registry: registry, exports: exports}
}

// Export godoc
// @Summary Export the read archive as CSV or PDF
// @Tags Archive
// @Produce json
// @Param format query string false "csv (default) or pdf"
// @Success 200 {object} response.Envelope
// @Router /archive/export [post]
func (h *ArchiveHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}

	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	feed := h.registry.Session(c.Request.Context(), userID)
	if feed.LastSync().IsZero() {
		if err := feed.Refresh(c.Request.Context(), defaultListParams(), true); err != nil {
			response.Error(c, err)
			return
		}
	}

	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", service.ExportFormatCSV)))
	result, err := h.exports.Generate(userID, format, feed.Views().ReadArchive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a generated archive export via signed token
// @Tags Archive
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /archive/export/{token} [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}

	_, relPath, err := h.exports.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	mimeType := "text/csv"
	if filepath.Ext(relPath) == ".pdf" {
		mimeType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, file, nil)
}
