package dto

import "github.com/Gopika0263/donation-api/internal/models"

// DailyActivity is one calendar-day bucket of donation activity.
type DailyActivity struct {
	Label     string `json:"label"`
	Donations int    `json:"donations"`
	Donors    int    `json:"donors"`
	Receivers int    `json:"receivers"`
}

// StatsOverview is the admin dashboard aggregation payload.
type StatsOverview struct {
	TotalDonations int                           `json:"total_donations"`
	TotalDonors    int                           `json:"total_donors"`
	TotalReceivers int                           `json:"total_receivers"`
	ByStatus       map[models.DonationStatus]int `json:"by_status"`
	Daily          []DailyActivity               `json:"daily"`
	Days           int                           `json:"days"`
}
