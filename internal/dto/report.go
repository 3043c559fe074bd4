package dto

import "github.com/Gopika0263/donation-api/internal/models"

// CreateReportRequest queues an asynchronous donation export.
type CreateReportRequest struct {
	Format models.ReportFormat     `json:"format" validate:"required,oneof=csv pdf"`
	Status []models.DonationStatus `json:"status,omitempty"`
	Days   int                     `json:"days,omitempty" validate:"omitempty,min=1,max=365"`
}
