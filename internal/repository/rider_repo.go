package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RiderRepository interface {
	Create(ctx context.Context, rider *models.Rider) error
	GetByID(ctx context.Context, id string) (*models.Rider, error)
	SetPushToken(ctx context.Context, id, token string) error
}

type riderRepository struct {
	db *sqlx.DB
}

func NewRiderRepository(db *sqlx.DB) RiderRepository {
	return &riderRepository{db: db}
}

func (r *riderRepository) Create(ctx context.Context, rider *models.Rider) error {
	if rider.ID == "" {
		rider.ID = uuid.New().String()
	}
	rider.CreatedAt = time.Now()
	rider.UpdatedAt = time.Now()

	query := `
		INSERT INTO riders (id, name, phone, email, expo_push_token,
			stripe_customer_id, default_payment_method_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		rider.ID, rider.Name, rider.Phone, rider.Email, rider.ExpoPushToken,
		rider.StripeCustomerID, rider.DefaultPaymentMethodID, rider.CreatedAt, rider.UpdatedAt)
	return err
}

func (r *riderRepository) GetByID(ctx context.Context, id string) (*models.Rider, error) {
	var rider models.Rider
	query := `SELECT * FROM riders WHERE id = $1`
	err := r.db.GetContext(ctx, &rider, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &rider, err
}

func (r *riderRepository) SetPushToken(ctx context.Context, id, token string) error {
	query := `UPDATE riders SET expo_push_token = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, token, time.Now(), id)
	return err
}
