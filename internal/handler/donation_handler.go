package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/lifecycle"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
	"github.com/Gopika0263/donation-api/pkg/response"
)

type donationService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateDonationRequest) (*models.Donation, error)
	Transition(ctx context.Context, claims *models.JWTClaims, donationID string, action lifecycle.Action) (*models.Donation, error)
	ListAvailable(ctx context.Context) ([]models.Donation, error)
	ListByDonor(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error)
	ListByReceiver(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error)
	AttachImage(ctx context.Context, claims *models.JWTClaims, donationID, originalName string, file io.Reader) (*models.Donation, error)
}

// DonationHandler exposes REST endpoints for the donation lifecycle.
type DonationHandler struct {
	service     donationService
	maxImageLen int64
}

// NewDonationHandler constructs the handler.
func NewDonationHandler(service donationService, maxImageLen int64) *DonationHandler {
	if maxImageLen <= 0 {
		maxImageLen = 5 << 20
	}
	return &DonationHandler{service: service, maxImageLen: maxImageLen}
}

// Create godoc
// @Summary Post a new donation
// @Tags Donations
// @Accept json
// @Produce json
// @Param payload body dto.CreateDonationRequest true "Donation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /donations [post]
func (h *DonationHandler) Create(c *gin.Context) {
	var req dto.CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid donation payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donation, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, donation, nil)
}

// ListAvailable godoc
// @Summary List donations open for claiming
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /donations [get]
func (h *DonationHandler) ListAvailable(c *gin.Context) {
	donations, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donations, nil)
}

// MyDonations godoc
// @Summary List donations posted by the current donor
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /donations/my/donations [get]
func (h *DonationHandler) MyDonations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donations, err := h.service.ListByDonor(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donations, nil)
}

// MyClaims godoc
// @Summary List donations claimed by the current receiver
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /donations/my/claims [get]
func (h *DonationHandler) MyClaims(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donations, err := h.service.ListByReceiver(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donations, nil)
}

// Claim godoc
// @Summary Claim an available donation
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/{id}/claim [put]
func (h *DonationHandler) Claim(c *gin.Context) {
	h.transition(c, lifecycle.ActionClaim)
}

// Pickup godoc
// @Summary Mark a claimed donation as picked up
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/{id}/pickup [put]
func (h *DonationHandler) Pickup(c *gin.Context) {
	h.transition(c, lifecycle.ActionPickup)
}

// Deliver godoc
// @Summary Mark a picked up donation as delivered
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/{id}/deliver [put]
func (h *DonationHandler) Deliver(c *gin.Context) {
	h.transition(c, lifecycle.ActionDeliver)
}

// Complete godoc
// @Summary Confirm receipt of a delivered donation
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/{id}/complete [put]
func (h *DonationHandler) Complete(c *gin.Context) {
	h.transition(c, lifecycle.ActionComplete)
}

func (h *DonationHandler) transition(c *gin.Context, action lifecycle.Action) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donation, err := h.service.Transition(c.Request.Context(), claims, c.Param("id"), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// UploadImage godoc
// @Summary Attach an image to a donation
// @Tags Donations
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Donation ID"
// @Param image formData file true "Donation photo"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /donations/{id}/image [post]
func (h *DonationHandler) UploadImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	if fileHeader.Size > h.maxImageLen {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image exceeds the maximum allowed size"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	donation, err := h.service.AttachImage(c.Request.Context(), claims, c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}
