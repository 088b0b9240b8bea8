package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hookrelay/internal/domain/delivery"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
)

type deliveryRepository struct {
	db DBTX
}

func NewDeliveryRepository(db DBTX) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Insert(ctx context.Context, rec *delivery.Record) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO webhook_deliveries (id, subscription_id, organization_id, event_kind, business_key, payload, status, attempts, last_attempt_at, response_status, response_snippet, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `,
		rec.ID,
		rec.SubscriptionID,
		rec.OrganizationID,
		rec.EventKind,
		rec.BusinessKey,
		rec.Payload,
		rec.Status,
		rec.Attempts,
		rec.LastAttemptAt,
		rec.ResponseStatus,
		rec.ResponseSnippet,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return hookrelay_errors.ErrAlreadyExists
	}
	return err
}

func (r *deliveryRepository) Update(ctx context.Context, id uuid.UUID, upd delivery.AttemptUpdate) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE webhook_deliveries
        SET status = $1, attempts = $2, last_attempt_at = $3, response_status = $4, response_snippet = $5, updated_at = $6
        WHERE id = $7
    `,
		upd.Status,
		upd.Attempts,
		upd.LastAttemptAt,
		upd.ResponseStatus,
		upd.ResponseSnippet,
		time.Now(),
		id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return hookrelay_errors.ErrNotFound
	}
	return nil
}

func (r *deliveryRepository) GetByID(ctx context.Context, id uuid.UUID) (delivery.Record, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, subscription_id, organization_id, event_kind, business_key, payload, status, attempts, last_attempt_at, response_status, response_snippet, created_at, updated_at
        FROM webhook_deliveries
        WHERE id = $1
    `, id)
	return scanDelivery(row)
}

func (r *deliveryRepository) ListBySubscription(ctx context.Context, orgID, subscriptionID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	return r.list(ctx, "organization_id = $1 AND subscription_id = $2", []interface{}{orgID, subscriptionID}, page, limit)
}

func (r *deliveryRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	return r.list(ctx, "organization_id = $1", []interface{}{orgID}, page, limit)
}

func (r *deliveryRepository) list(ctx context.Context, where string, args []interface{}, page, limit int) ([]delivery.Record, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, subscription_id, organization_id, event_kind, business_key, payload, status, attempts, last_attempt_at, response_status, response_snippet, created_at, updated_at
        FROM webhook_deliveries
        WHERE %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []delivery.Record
	for rows.Next() {
		rec, err := scanDeliveryRows(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanDelivery(row *sql.Row) (delivery.Record, error) {
	var rec delivery.Record
	var lastAttemptAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.SubscriptionID,
		&rec.OrganizationID,
		&rec.EventKind,
		&rec.BusinessKey,
		&rec.Payload,
		&rec.Status,
		&rec.Attempts,
		&lastAttemptAt,
		&rec.ResponseStatus,
		&rec.ResponseSnippet,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return rec, hookrelay_errors.ErrNotFound
	}
	if lastAttemptAt.Valid {
		rec.LastAttemptAt = &lastAttemptAt.Time
	}
	return rec, err
}

func scanDeliveryRows(rows *sql.Rows) (delivery.Record, error) {
	var rec delivery.Record
	var lastAttemptAt sql.NullTime
	err := rows.Scan(
		&rec.ID,
		&rec.SubscriptionID,
		&rec.OrganizationID,
		&rec.EventKind,
		&rec.BusinessKey,
		&rec.Payload,
		&rec.Status,
		&rec.Attempts,
		&lastAttemptAt,
		&rec.ResponseStatus,
		&rec.ResponseSnippet,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if lastAttemptAt.Valid {
		rec.LastAttemptAt = &lastAttemptAt.Time
	}
	return rec, err
}
