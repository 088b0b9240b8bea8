package repository

import (
	"context"
	"encoding/json"
	"errors"

	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresSubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return hookrelay_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (subscription.Subscription, error) {
	var s subscription.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s, hookrelay_errors.ErrNotFound
	}
	return s, err
}

func (r *PostgresSubscriptionRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]subscription.Subscription, int64, error) {
	var subs []subscription.Subscription
	var total int64

	q := r.db.WithContext(ctx).
		Model(&subscription.Subscription{}).
		Where("organization_id = ?", orgID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	if err := q.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}

func (r *PostgresSubscriptionRepository) Update(ctx context.Context, s subscription.Subscription) error {
	res := r.db.WithContext(ctx).
		Model(&subscription.Subscription{}).
		Where("id = ?", s.ID).
		Select("Name", "URL", "Events", "Secret", "Mode", "Active", "UpdatedAt").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hookrelay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&subscription.Subscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hookrelay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSubscriptionRepository) ListActive(ctx context.Context, orgID uuid.UUID, kind event.Kind) ([]subscription.Subscription, error) {
	filter, err := json.Marshal([]event.Kind{kind})
	if err != nil {
		return nil, err
	}

	var subs []subscription.Subscription
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND active = ? AND events @> ?::jsonb", orgID, true, string(filter)).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
