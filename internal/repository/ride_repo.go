package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkAccepted(ctx context.Context, rideID, driverID string, snapshot models.DriverSnapshot) (bool, error)
	MarkNoDrivers(ctx context.Context, rideID, refundReason string, refundID, refundErr *string) error
	MarkError(ctx context.Context, rideID, detail string) error
	Cancel(ctx context.Context, id, canceledBy, reason string, refundID, refundErr *string) error
	UpdateDriverLocation(ctx context.Context, rideID string, lat, lng float64) error
	GetActiveRideByRiderID(ctx context.Context, riderID string) (*models.Ride, error)
	GetActiveRideByDriverID(ctx context.Context, driverID string) (*models.Ride, error)
	GetCompletedPendingPayout(ctx context.Context, driverID string) ([]models.Ride, error)
	ListDriversWithPendingPayout(ctx context.Context) ([]string, error)
	MarkPaidOut(ctx context.Context, rideIDs []string) error
}

type rideRepository struct {
	db *sqlx.DB
}

func NewRideRepository(db *sqlx.DB) RideRepository {
	return &rideRepository{db: db}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = time.Now()
	ride.Status = models.RideStatusPending
	ride.PayoutStatus = models.PayoutStatusPending

	query := `
		INSERT INTO rides (id, rider_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			status, fare_cents, payment_intent_id, payout_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		ride.ID, ride.RiderID, ride.PickupLat, ride.PickupLng, ride.DropoffLat, ride.DropoffLng,
		ride.Status, ride.FareCents, ride.PaymentIntentID, ride.PayoutStatus, ride.CreatedAt, ride.UpdatedAt)
	return err
}

func (r *rideRepository) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE id = $1`
	err := r.db.GetContext(ctx, &ride, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE rides SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

// MarkAccepted assigns the driver and copies their public profile onto
// the ride in one statement, so the rider always sees a consistent pair.
// The write is guarded on the ride still being pending so an acceptance
// cannot overwrite a concurrent cancellation; the bool reports whether
// the assignment landed.
func (r *rideRepository) MarkAccepted(ctx context.Context, rideID, driverID string, snapshot models.DriverSnapshot) (bool, error) {
	now := time.Now()
	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, driver_name = $3, driver_photo_url = $4,
			driver_rating = $5, driver_vehicle = $6, driver_license_plate = $7,
			accepted_at = $8, updated_at = $8
		WHERE id = $9 AND status = $10
	`
	res, err := r.db.ExecContext(ctx, query,
		models.RideStatusAccepted, driverID, snapshot.Name, snapshot.PhotoURL,
		snapshot.Rating, snapshot.Vehicle, snapshot.LicensePlate, now, rideID,
		models.RideStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *rideRepository) MarkNoDrivers(ctx context.Context, rideID, refundReason string, refundID, refundErr *string) error {
	query := `
		UPDATE rides
		SET status = $1, refund_reason = $2, refund_id = $3, refund_error = $4, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		models.RideStatusNoDriversAvailable, refundReason, refundID, refundErr, time.Now(), rideID)
	return err
}

func (r *rideRepository) MarkError(ctx context.Context, rideID, detail string) error {
	query := `UPDATE rides SET status = $1, refund_error = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, models.RideStatusError, detail, time.Now(), rideID)
	return err
}

func (r *rideRepository) Cancel(ctx context.Context, id, canceledBy, reason string, refundID, refundErr *string) error {
	now := time.Now()
	query := `
		UPDATE rides
		SET status = $1, canceled_by = $2, cancel_reason = $3, canceled_at = $4,
			refund_id = $5, refund_error = $6, refund_reason = $7, updated_at = $4
		WHERE id = $8
	`
	_, err := r.db.ExecContext(ctx, query,
		models.RideStatusCanceled, canceledBy, reason, now,
		refundID, refundErr, models.RefundReasonRideCanceled, id)
	return err
}

// UpdateDriverLocation mirrors a driver's position onto their active ride
// only when the coordinates actually changed, skipping no-op writes.
func (r *rideRepository) UpdateDriverLocation(ctx context.Context, rideID string, lat, lng float64) error {
	query := `
		UPDATE rides
		SET driver_current_lat = $1, driver_current_lng = $2, updated_at = $3
		WHERE id = $4
			AND (driver_current_lat IS DISTINCT FROM $1 OR driver_current_lng IS DISTINCT FROM $2)
	`
	_, err := r.db.ExecContext(ctx, query, lat, lng, time.Now(), rideID)
	return err
}

func (r *rideRepository) GetActiveRideByRiderID(ctx context.Context, riderID string) (*models.Ride, error) {
	var ride models.Ride
	query := `
		SELECT * FROM rides
		WHERE rider_id = $1 AND status IN ($2, $3, $4, $5)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &ride, query, riderID,
		models.RideStatusPending, models.RideStatusAccepted,
		models.RideStatusDriverArrived, models.RideStatusInProgress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) GetActiveRideByDriverID(ctx context.Context, driverID string) (*models.Ride, error) {
	var ride models.Ride
	query := `
		SELECT * FROM rides
		WHERE driver_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &ride, query, driverID,
		models.RideStatusAccepted, models.RideStatusDriverArrived, models.RideStatusInProgress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

// GetCompletedPendingPayout returns a driver's unpaid completed rides in
// chronological order, which the payout run depends on for the cap math.
func (r *rideRepository) GetCompletedPendingPayout(ctx context.Context, driverID string) ([]models.Ride, error) {
	var rides []models.Ride
	query := `
		SELECT * FROM rides
		WHERE driver_id = $1 AND status = $2 AND payout_status = $3
		ORDER BY created_at ASC
	`
	err := r.db.SelectContext(ctx, &rides, query, driverID,
		models.RideStatusCompleted, models.PayoutStatusPending)
	return rides, err
}

func (r *rideRepository) ListDriversWithPendingPayout(ctx context.Context) ([]string, error) {
	var driverIDs []string
	query := `
		SELECT DISTINCT driver_id FROM rides
		WHERE driver_id IS NOT NULL AND status = $1 AND payout_status = $2
	`
	err := r.db.SelectContext(ctx, &driverIDs, query,
		models.RideStatusCompleted, models.PayoutStatusPending)
	return driverIDs, err
}

func (r *rideRepository) MarkPaidOut(ctx context.Context, rideIDs []string) error {
	if len(rideIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE rides SET payout_status = ?, updated_at = ? WHERE id IN (?)`,
		models.PayoutStatusPaid, time.Now(), rideIDs)
	if err != nil {
		return err
	}
	query = r.db.Rebind(query)
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
