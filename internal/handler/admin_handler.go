package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
	"github.com/Gopika0263/donation-api/pkg/response"
)

type adminDonationService interface {
	ListAll(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error)
	AdminSetStatus(ctx context.Context, claims *models.JWTClaims, donationID string, target models.DonationStatus) (*models.Donation, error)
}

type statsProvider interface {
	Overview(ctx context.Context, days int) (*dto.StatsOverview, bool, error)
	InvalidateOverview(ctx context.Context) error
}

// AdminHandler exposes the admin oversight endpoints.
type AdminHandler struct {
	donations adminDonationService
	stats     statsProvider
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(donations adminDonationService, stats statsProvider) *AdminHandler {
	return &AdminHandler{donations: donations, stats: stats}
}

// ListDonations godoc
// @Summary List every donation regardless of status
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/donations [get]
func (h *AdminHandler) ListDonations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donations, err := h.donations.ListAll(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donations, nil)
}

// SetStatus godoc
// @Summary Force a donation into delivered or completed
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Donation ID"
// @Param payload body dto.AdminStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/donations/{id} [put]
func (h *AdminHandler) SetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	donation, err := h.donations.AdminSetStatus(c.Request.Context(), claims, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.stats != nil {
		// the override changed the numbers; drop cached overviews
		_ = h.stats.InvalidateOverview(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Stats godoc
// @Summary Aggregate donation statistics
// @Tags Admin
// @Produce json
// @Param days query int false "Trailing window in days"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "stats service not configured"))
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a positive integer"))
			return
		}
		days = parsed
	}
	overview, cached, err := h.stats.Overview(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, map[string]interface{}{"cached": cached})
}
