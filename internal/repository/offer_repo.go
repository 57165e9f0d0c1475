package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/jmoiron/sqlx"
)

type OfferRepository interface {
	Put(ctx context.Context, offer *models.DriverOffer) error
	GetByRideID(ctx context.Context, rideID string) (*models.DriverOffer, error)
	Respond(ctx context.Context, rideID, driverID, response string) (bool, error)
	Delete(ctx context.Context, rideID string) error
}

type offerRepository struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) OfferRepository {
	return &offerRepository{db: db}
}

// Put overwrites the ride's offer slot. One row per ride, so starting a
// new candidate iteration implicitly invalidates the previous offer.
func (r *offerRepository) Put(ctx context.Context, offer *models.DriverOffer) error {
	offer.OfferedAt = time.Now()
	query := `
		INSERT INTO driver_offers (ride_id, driver_id, attempt, offered_at, response, responded_at)
		VALUES ($1, $2, $3, $4, NULL, NULL)
		ON CONFLICT (ride_id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id, attempt = EXCLUDED.attempt,
			offered_at = EXCLUDED.offered_at, response = NULL, responded_at = NULL
	`
	_, err := r.db.ExecContext(ctx, query, offer.RideID, offer.DriverID, offer.Attempt, offer.OfferedAt)
	return err
}

func (r *offerRepository) GetByRideID(ctx context.Context, rideID string) (*models.DriverOffer, error) {
	var offer models.DriverOffer
	query := `SELECT * FROM driver_offers WHERE ride_id = $1`
	err := r.db.GetContext(ctx, &offer, query, rideID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offer, err
}

// Respond records the driver's answer only if the slot still holds a
// pending offer for that driver. Returns false when the offer was already
// resolved or was re-issued to someone else, making late answers inert.
func (r *offerRepository) Respond(ctx context.Context, rideID, driverID, response string) (bool, error) {
	query := `
		UPDATE driver_offers
		SET response = $1, responded_at = $2
		WHERE ride_id = $3 AND driver_id = $4 AND response IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, response, time.Now(), rideID, driverID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *offerRepository) Delete(ctx context.Context, rideID string) error {
	query := `DELETE FROM driver_offers WHERE ride_id = $1`
	_, err := r.db.ExecContext(ctx, query, rideID)
	return err
}
