package models

import "time"

// DonationStatus is the lifecycle stage of a donation. The wire strings match
// what the web client renders, including the camelCase pickedUp.
type DonationStatus string

const (
	StatusAvailable DonationStatus = "available"
	StatusClaimed   DonationStatus = "claimed"
	StatusPickedUp  DonationStatus = "pickedUp"
	StatusDelivered DonationStatus = "delivered"
	StatusCompleted DonationStatus = "completed"
)

// Valid reports whether the status is one of the known lifecycle stages.
func (s DonationStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusPickedUp, StatusDelivered, StatusCompleted:
		return true
	}
	return false
}

// Donation is the central entity: surplus food posted by a donor, claimed and
// confirmed by a receiver. DonorID is immutable after creation; ReceiverID is
// set exactly once, when the donation is claimed.
type Donation struct {
	ID            string         `db:"id" json:"id"`
	DonorID       string         `db:"donor_id" json:"donor_id"`
	DonorName     string         `db:"donor_name" json:"donor_name,omitempty"`
	ReceiverID    *string        `db:"receiver_id" json:"receiver_id,omitempty"`
	ReceiverName  *string        `db:"receiver_name" json:"receiver_name,omitempty"`
	FoodType      string         `db:"food_type" json:"food_type"`
	Quantity      string         `db:"quantity" json:"quantity"`
	PickupAddress string         `db:"pickup_address" json:"pickup_address"`
	Phone         string         `db:"phone" json:"phone"`
	Expiry        *time.Time     `db:"expiry" json:"expiry,omitempty"`
	CookedTime    *time.Time     `db:"cooked_time" json:"cooked_time,omitempty"`
	Location      string         `db:"location" json:"location,omitempty"`
	Organization  string         `db:"organization" json:"organization,omitempty"`
	ImageURL      *string        `db:"image_url" json:"image_url,omitempty"`
	Status        DonationStatus `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// DonationFilter constrains listing queries.
type DonationFilter struct {
	Status       []DonationStatus
	DonorID      string
	ReceiverID   string
	CreatedAfter time.Time
	Limit        int
	Offset       int
}
