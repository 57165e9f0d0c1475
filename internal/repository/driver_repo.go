package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	SetOnline(ctx context.Context, id string, online bool) error
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	SetActiveRide(ctx context.Context, id string, rideID *string) error
	SetPushToken(ctx context.Context, id, token string) error
	MarkStaleOffline(ctx context.Context, olderThan time.Time) ([]string, error)
	AddCommissionPaid(ctx context.Context, id string, amountCents int64) error
	ResetMonthlyCommission(ctx context.Context) error
	ListSubscriptionDrivers(ctx context.Context) ([]models.Driver, error)
	SetLastSubscriptionPayment(ctx context.Context, id string, at time.Time) error
}

type driverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.New().String()
	}
	driver.CreatedAt = time.Now()
	driver.UpdatedAt = time.Now()
	driver.Status = models.DriverStatusOffline
	if driver.Rating == 0 {
		driver.Rating = 5.0
	}

	query := `
		INSERT INTO drivers (id, name, phone, email, rating, vehicle, license_plate, photo_url,
			online, status, payment_style, stripe_account_id, stripe_customer_id,
			default_payment_method_id, commission_paid_month_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		driver.ID, driver.Name, driver.Phone, driver.Email, driver.Rating, driver.Vehicle,
		driver.LicensePlate, driver.PhotoURL, driver.Online, driver.Status, driver.PaymentStyle,
		driver.StripeAccountID, driver.StripeCustomerID, driver.DefaultPaymentMethodID,
		driver.CommissionPaidMonthCents, driver.CreatedAt, driver.UpdatedAt)
	return err
}

func (r *driverRepository) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	var driver models.Driver
	query := `SELECT * FROM drivers WHERE id = $1`
	err := r.db.GetContext(ctx, &driver, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &driver, err
}

func (r *driverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	status := models.DriverStatusOffline
	if online {
		status = models.DriverStatusAvailable
	}
	query := `UPDATE drivers SET online = $1, status = $2, last_heartbeat = $3, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, online, status, time.Now(), id)
	return err
}

func (r *driverRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE drivers SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

// UpdateLocation doubles as the heartbeat: every position report proves
// the driver app is alive.
func (r *driverRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `
		UPDATE drivers
		SET current_lat = $1, current_lng = $2, last_heartbeat = $3, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, lat, lng, time.Now(), id)
	return err
}

func (r *driverRepository) SetActiveRide(ctx context.Context, id string, rideID *string) error {
	query := `UPDATE drivers SET active_ride_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, rideID, time.Now(), id)
	return err
}

func (r *driverRepository) SetPushToken(ctx context.Context, id, token string) error {
	query := `UPDATE drivers SET expo_push_token = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, token, time.Now(), id)
	return err
}

// MarkStaleOffline flips drivers whose last heartbeat predates the cutoff
// to offline and returns their IDs so the caller can clear the geo index.
// Drivers already offline are untouched, which keeps the sweep idempotent.
func (r *driverRepository) MarkStaleOffline(ctx context.Context, olderThan time.Time) ([]string, error) {
	var ids []string
	query := `
		UPDATE drivers
		SET online = false, status = $1, updated_at = $2
		WHERE online = true AND (last_heartbeat IS NULL OR last_heartbeat < $3)
		RETURNING id
	`
	err := r.db.SelectContext(ctx, &ids, query, models.DriverStatusOffline, time.Now(), olderThan)
	return ids, err
}

func (r *driverRepository) AddCommissionPaid(ctx context.Context, id string, amountCents int64) error {
	query := `
		UPDATE drivers
		SET commission_paid_month_cents = commission_paid_month_cents + $1, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, amountCents, time.Now(), id)
	return err
}

func (r *driverRepository) ResetMonthlyCommission(ctx context.Context) error {
	query := `UPDATE drivers SET commission_paid_month_cents = 0, updated_at = $1 WHERE commission_paid_month_cents > 0`
	_, err := r.db.ExecContext(ctx, query, time.Now())
	return err
}

func (r *driverRepository) ListSubscriptionDrivers(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	query := `
		SELECT * FROM drivers
		WHERE payment_style IN ($1, $2)
		ORDER BY created_at ASC
	`
	err := r.db.SelectContext(ctx, &drivers, query, models.PaymentStyleMonthly, models.PaymentStyleYearly)
	return drivers, err
}

func (r *driverRepository) SetLastSubscriptionPayment(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE drivers SET last_subscription_payment_at = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, at, time.Now(), id)
	return err
}
