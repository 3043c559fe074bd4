package dto

import "github.com/Gopika0263/donation-api/internal/models"

// CreateDonationRequest is the payload for posting surplus food.
// Timestamps arrive as RFC3339 strings from the client's datetime inputs.
type CreateDonationRequest struct {
	FoodType      string `json:"foodType" validate:"required"`
	Quantity      string `json:"quantity" validate:"required"`
	PickupAddress string `json:"pickupAddress" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	Expiry        string `json:"expiry,omitempty"`
	CookedTime    string `json:"cookedTime,omitempty"`
	Location      string `json:"location,omitempty"`
	Organization  string `json:"organization,omitempty"`
}

// AdminStatusRequest is the admin override payload.
type AdminStatusRequest struct {
	Status models.DonationStatus `json:"status" validate:"required"`
}
