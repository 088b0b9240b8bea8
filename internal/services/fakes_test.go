package services

import (
	"context"
	"sync"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"
	hookrelay_errors "hookrelay/pkg/errors"
	"hookrelay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]subscription.Subscription
}

func newFakeSubscriptionRepo(subs ...subscription.Subscription) *fakeSubscriptionRepo {
	r := &fakeSubscriptionRepo{subs: make(map[uuid.UUID]subscription.Subscription)}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeSubscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.subs[s.ID] = *s
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return subscription.Subscription{}, hookrelay_errors.ErrNotFound
	}
	return s, nil
}

func (r *fakeSubscriptionRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]subscription.Subscription, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []subscription.Subscription
	for _, s := range r.subs {
		if s.OrganizationID == orgID {
			out = append(out, s)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, s subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s.ID]; !ok {
		return hookrelay_errors.ErrNotFound
	}
	r.subs[s.ID] = s
	return nil
}

func (r *fakeSubscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

func (r *fakeSubscriptionRepo) ListActive(ctx context.Context, orgID uuid.UUID, kind event.Kind) ([]subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []subscription.Subscription
	for _, s := range r.subs {
		if s.OrganizationID == orgID && s.Active && s.Events.Contains(kind) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeDeliveryRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*delivery.Record
	failUpdates int
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{records: make(map[uuid.UUID]*delivery.Record)}
}

func (r *fakeDeliveryRepo) Insert(ctx context.Context, rec *delivery.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	clone := *rec
	r.records[rec.ID] = &clone
	return nil
}

func (r *fakeDeliveryRepo) Update(ctx context.Context, id uuid.UUID, upd delivery.AttemptUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates > 0 {
		r.failUpdates--
		return hookrelay_errors.ErrServiceUnavailable
	}
	rec, ok := r.records[id]
	if !ok {
		return hookrelay_errors.ErrNotFound
	}
	rec.Status = upd.Status
	rec.Attempts = upd.Attempts
	at := upd.LastAttemptAt
	rec.LastAttemptAt = &at
	rec.ResponseStatus = upd.ResponseStatus
	rec.ResponseSnippet = upd.ResponseSnippet
	return nil
}

func (r *fakeDeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (delivery.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return delivery.Record{}, hookrelay_errors.ErrNotFound
	}
	return *rec, nil
}

func (r *fakeDeliveryRepo) ListBySubscription(ctx context.Context, orgID, subscriptionID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Record
	for _, rec := range r.records {
		if rec.OrganizationID == orgID && rec.SubscriptionID == subscriptionID {
			out = append(out, *rec)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeDeliveryRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Record
	for _, rec := range r.records {
		if rec.OrganizationID == orgID {
			out = append(out, *rec)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeDeliveryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeDedup struct {
	suppress bool
	err      error
	calls    int
}

func (d *fakeDedup) ShouldSuppress(ctx context.Context, orgID uuid.UUID, kind event.Kind, businessKey string) (bool, error) {
	d.calls++
	return d.suppress, d.err
}
