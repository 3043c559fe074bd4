package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/lifecycle"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

type donationStore interface {
	Create(ctx context.Context, donation *models.Donation) error
	GetByID(ctx context.Context, id string) (*models.Donation, error)
	List(ctx context.Context, filter models.DonationFilter) ([]models.Donation, error)
	Claim(ctx context.Context, id, receiverID string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, expected, next models.DonationStatus, at time.Time) error
	ForceStatus(ctx context.Context, id string, status models.DonationStatus, at time.Time) error
	SetImageURL(ctx context.Context, id, imageURL string, at time.Time) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type imageStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
}

// DonationService is the lifecycle engine: it owns creation, the transition
// entry point, the admin override, and the list queries the dashboards need.
type DonationService struct {
	repo      donationStore
	audit     auditLogger
	images    imageStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewDonationService constructs the service.
func NewDonationService(repo donationStore, audit auditLogger, images imageStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *DonationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationService{
		repo:      repo,
		audit:     audit,
		images:    images,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create posts a new donation with status available and no receiver.
func (s *DonationService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateDonationRequest) (*models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleDonor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only donors may create donations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid donation payload")
	}
	for field, value := range map[string]string{
		"foodType":      req.FoodType,
		"quantity":      req.Quantity,
		"pickupAddress": req.PickupAddress,
		"phone":         req.Phone,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, field+" is required")
		}
	}

	expiry, err := parseOptionalTime(req.Expiry)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiry must be a valid timestamp")
	}
	cookedTime, err := parseOptionalTime(req.CookedTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cookedTime must be a valid timestamp")
	}

	donation := &models.Donation{
		DonorID:       claims.UserID,
		DonorName:     claims.Name,
		FoodType:      strings.TrimSpace(req.FoodType),
		Quantity:      strings.TrimSpace(req.Quantity),
		PickupAddress: strings.TrimSpace(req.PickupAddress),
		Phone:         strings.TrimSpace(req.Phone),
		Expiry:        expiry,
		CookedTime:    cookedTime,
		Location:      strings.TrimSpace(req.Location),
		Organization:  strings.TrimSpace(req.Organization),
		Status:        models.StatusAvailable,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, donation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create donation")
	}

	s.emitAudit(ctx, claims, models.AuditActionDonationCreate, donation.ID, nil, donation)
	return donation, nil
}

// Transition is the single entry point for claim/pickup/deliver/complete.
// It loads the donation, authorizes the action against the lifecycle table,
// then applies the new status with a compare-and-set write.
func (s *DonationService) Transition(ctx context.Context, claims *models.JWTClaims, donationID string, action lifecycle.Action) (*models.Donation, error) {
	donation, err := s.load(ctx, donationID)
	if err != nil {
		return nil, err
	}

	rule, err := lifecycle.Authorize(action, claims, donation)
	if err != nil {
		s.metrics.RecordTransition(string(action), false)
		return nil, err
	}

	previous := donation.Status
	at := s.now().UTC()
	if action == lifecycle.ActionClaim {
		err = s.repo.Claim(ctx, donation.ID, claims.UserID, at)
	} else {
		err = s.repo.UpdateStatus(ctx, donation.ID, rule.From, rule.To, at)
	}
	if err != nil {
		s.metrics.RecordTransition(string(action), false)
		if errors.Is(err, sql.ErrNoRows) {
			// the status moved between our read and the write; a racing
			// caller won the compare-and-set
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "donation was updated by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update donation")
	}
	s.metrics.RecordTransition(string(action), true)

	donation.Status = rule.To
	donation.UpdatedAt = at
	if action == lifecycle.ActionClaim {
		receiverID := claims.UserID
		receiverName := claims.Name
		donation.ReceiverID = &receiverID
		donation.ReceiverName = &receiverName
	}

	s.emitAudit(ctx, claims, models.AuditActionTransition, donation.ID,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": donation.Status, "action": action})
	return donation, nil
}

// AdminSetStatus forces a donation to delivered or completed, bypassing
// ordering and ownership. Donor and receiver references are never modified.
func (s *DonationService) AdminSetStatus(ctx context.Context, claims *models.JWTClaims, donationID string, target models.DonationStatus) (*models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if !lifecycle.AdminOverrideAllowed(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be delivered or completed")
	}

	donation, err := s.load(ctx, donationID)
	if err != nil {
		return nil, err
	}

	previous := donation.Status
	at := s.now().UTC()
	if err := s.repo.ForceStatus(ctx, donation.ID, target, at); err != nil {
		s.metrics.RecordTransition("override", false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override donation status")
	}
	s.metrics.RecordTransition("override", true)

	donation.Status = target
	donation.UpdatedAt = at

	s.emitAudit(ctx, claims, models.AuditActionAdminOverride, donation.ID,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": target})
	return donation, nil
}

// ListAvailable returns claimable donations, newest first.
func (s *DonationService) ListAvailable(ctx context.Context) ([]models.Donation, error) {
	donations, err := s.repo.List(ctx, models.DonationFilter{Status: []models.DonationStatus{models.StatusAvailable}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	return donations, nil
}

// ListByDonor returns the caller's own donations, any status.
func (s *DonationService) ListByDonor(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleDonor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "donor role required")
	}
	donations, err := s.repo.List(ctx, models.DonationFilter{DonorID: claims.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	return donations, nil
}

// ListByReceiver returns the donations the caller has claimed, any status.
func (s *DonationService) ListByReceiver(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleReceiver {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "receiver role required")
	}
	donations, err := s.repo.List(ctx, models.DonationFilter{ReceiverID: claims.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	return donations, nil
}

// ListAll returns every donation. Admin only.
func (s *DonationService) ListAll(ctx context.Context, claims *models.JWTClaims) ([]models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	donations, err := s.repo.List(ctx, models.DonationFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	return donations, nil
}

// AttachImage stores an uploaded image for a donation owned by the caller and
// records its reference.
func (s *DonationService) AttachImage(ctx context.Context, claims *models.JWTClaims, donationID, originalName string, file io.Reader) (*models.Donation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.images == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "image storage not configured")
	}

	donation, err := s.load(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if claims.Role != models.RoleDonor || donation.DonorID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning donor may attach an image")
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported image type")
	}

	filename := fmt.Sprintf("donations/%s%s", donation.ID, ext)
	if _, err := s.images.SaveStream(filename, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	at := s.now().UTC()
	imageURL := "/uploads/" + filename
	if err := s.repo.SetImageURL(ctx, donation.ID, imageURL, at); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record image")
	}

	donation.ImageURL = &imageURL
	donation.UpdatedAt = at
	s.emitAudit(ctx, claims, models.AuditActionImageUpload, donation.ID, nil, map[string]interface{}{"image_url": imageURL})
	return donation, nil
}

func (s *DonationService) load(ctx context.Context, id string) (*models.Donation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "donation id is required")
	}
	donation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "donation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donation")
	}
	return donation, nil
}

func (s *DonationService) emitAudit(ctx context.Context, claims *models.JWTClaims, action, donationID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "donation",
		ResourceID: &donationID,
	}
	if claims != nil {
		userID := claims.UserID
		log.UserID = &userID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// parseOptionalTime accepts RFC3339 or the shorter html datetime-local form.
func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", raw)
}
