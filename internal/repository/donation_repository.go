package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Gopika0263/donation-api/internal/models"
)

const donationColumns = `d.id, d.donor_id, du.name AS donor_name, d.receiver_id, ru.name AS receiver_name,
       d.food_type, d.quantity, d.pickup_address, d.phone, d.expiry, d.cooked_time,
       d.location, d.organization, d.image_url, d.status, d.created_at, d.updated_at`

const donationFrom = ` FROM donations d
	JOIN users du ON du.id = d.donor_id
	LEFT JOIN users ru ON ru.id = d.receiver_id`

// DonationRepository persists donations and applies status transitions with a
// compare-and-set discipline so concurrent writers cannot race past each other.
type DonationRepository struct {
	db *sqlx.DB
}

// NewDonationRepository constructs the repository.
func NewDonationRepository(db *sqlx.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Create inserts a new donation row.
func (r *DonationRepository) Create(ctx context.Context, donation *models.Donation) error {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	if donation.Status == "" {
		donation.Status = models.StatusAvailable
	}
	now := time.Now().UTC()
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = now
	}
	donation.UpdatedAt = now
	const query = `INSERT INTO donations
	(id, donor_id, receiver_id, food_type, quantity, pickup_address, phone, expiry, cooked_time, location, organization, image_url, status, created_at, updated_at)
	VALUES (:id, :donor_id, :receiver_id, :food_type, :quantity, :pickup_address, :phone, :expiry, :cooked_time, :location, :organization, :image_url, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, donation); err != nil {
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

// GetByID fetches a donation by identifier, including donor/receiver names.
func (r *DonationRepository) GetByID(ctx context.Context, id string) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + donationFrom + ` WHERE d.id = $1`
	var donation models.Donation
	if err := r.db.GetContext(ctx, &donation, query, id); err != nil {
		return nil, err
	}
	return &donation, nil
}

// List returns donations matching the filter, newest first.
func (r *DonationRepository) List(ctx context.Context, filter models.DonationFilter) ([]models.Donation, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + donationColumns + donationFrom)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("d.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DonorID != "" {
		args = append(args, filter.DonorID)
		conditions = append(conditions, fmt.Sprintf("d.donor_id = $%d", len(args)))
	}
	if filter.ReceiverID != "" {
		args = append(args, filter.ReceiverID)
		conditions = append(conditions, fmt.Sprintf("d.receiver_id = $%d", len(args)))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		conditions = append(conditions, fmt.Sprintf("d.created_at >= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY d.created_at DESC")

	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	var donations []models.Donation
	if err := r.db.SelectContext(ctx, &donations, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return donations, nil
}

// Claim atomically moves an available, unclaimed donation to claimed and
// records the receiver. Returns sql.ErrNoRows when the donation was already
// claimed (or does not exist), so exactly one of two concurrent claimers wins.
func (r *DonationRepository) Claim(ctx context.Context, id, receiverID string, at time.Time) error {
	const query = `UPDATE donations SET status = $3, receiver_id = $2, updated_at = $4
	WHERE id = $1 AND status = $5 AND receiver_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, receiverID, models.StatusClaimed, at, models.StatusAvailable)
	if err != nil {
		return fmt.Errorf("claim donation: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateStatus transitions status from expected to next in one statement.
// Zero rows affected means the donation moved out from under the caller.
func (r *DonationRepository) UpdateStatus(ctx context.Context, id string, expected, next models.DonationStatus, at time.Time) error {
	const query = `UPDATE donations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, expected, next, at)
	if err != nil {
		return fmt.Errorf("update donation status: %w", err)
	}
	return requireRowAffected(result)
}

// ForceStatus sets the status unconditionally. Reserved for the admin
// override; donor and receiver references are left untouched.
func (r *DonationRepository) ForceStatus(ctx context.Context, id string, status models.DonationStatus, at time.Time) error {
	const query = `UPDATE donations SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("force donation status: %w", err)
	}
	return requireRowAffected(result)
}

// SetImageURL records the stored image reference for a donation.
func (r *DonationRepository) SetImageURL(ctx context.Context, id, imageURL string, at time.Time) error {
	const query = `UPDATE donations SET image_url = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, imageURL, at)
	if err != nil {
		return fmt.Errorf("set donation image: %w", err)
	}
	return requireRowAffected(result)
}

func requireRowAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
