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

// AuthHandler mints development tokens. Production clients authenticate
// against the school auth server; this route is only registered outside
// production.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// DevLogin godoc
// @Summary Mint a development access token
// @Tags Auth
// @Accept json
// @Param payload body dto.DevLoginRequest true "Token subject"
// @Success 200 {object} response.Envelope
// @Router /auth/dev-login [post]
func (h *AuthHandler) DevLogin(c *gin.Context) {
	var req dto.DevLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload"))
		return
	}

	token, err := h.auth.IssueToken(req.UserID, req.Username, req.Role, 24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DevLoginResponse{Token: token}, nil)
}
