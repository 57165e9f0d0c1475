package repository

import (
	"context"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReconciliationRepository records payment operations that failed after the
// ride decision was already final. Operators work through unresolved rows
// out of band; nothing in the dispatch path ever reads them back.
type ReconciliationRepository interface {
	Insert(ctx context.Context, entry *models.ReconciliationEntry) error
	ListUnresolved(ctx context.Context, limit int) ([]models.ReconciliationEntry, error)
	MarkResolved(ctx context.Context, id string) error
}

type reconciliationRepository struct {
	db *sqlx.DB
}

func NewReconciliationRepository(db *sqlx.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Insert(ctx context.Context, entry *models.ReconciliationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO payment_reconciliation (id, kind, ride_id, driver_id, payment_intent_id,
			amount_cents, detail, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Kind, entry.RideID, entry.DriverID, entry.PaymentIntentID,
		entry.AmountCents, entry.Detail, entry.CreatedAt)
	return err
}

func (r *reconciliationRepository) ListUnresolved(ctx context.Context, limit int) ([]models.ReconciliationEntry, error) {
	var entries []models.ReconciliationEntry
	query := `
		SELECT * FROM payment_reconciliation
		WHERE resolved = false
		ORDER BY created_at ASC
		LIMIT $1
	`
	err := r.db.SelectContext(ctx, &entries, query, limit)
	return entries, err
}

func (r *reconciliationRepository) MarkResolved(ctx context.Context, id string) error {
	query := `UPDATE payment_reconciliation SET resolved = true WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
