package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"
	"hookrelay/internal/repository"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
)

// SubscriptionService owns the admin surface for webhook subscriptions.
// Validation happens here, synchronously, so malformed subscriptions
// never reach the delivery pipeline.
type SubscriptionService struct {
	repo     repository.SubscriptionRepository
	encoder  *Encoder
	executor *Executor
}

func NewSubscriptionService(repo repository.SubscriptionRepository, encoder *Encoder, executor *Executor) *SubscriptionService {
	return &SubscriptionService{repo: repo, encoder: encoder, executor: executor}
}

type CreateSubscriptionInput struct {
	Name   string
	URL    string
	Events event.Kinds
	Mode   subscription.DeliveryMode
	Signed bool
}

func (s *SubscriptionService) Create(ctx context.Context, orgID uuid.UUID, in CreateSubscriptionInput) (subscription.Subscription, error) {
	sub := subscription.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           in.Name,
		URL:            in.URL,
		Events:         in.Events,
		Mode:           in.Mode,
		Active:         true,
	}
	if in.Signed {
		secret, err := newSecret()
		if err != nil {
			return subscription.Subscription{}, err
		}
		sub.Secret = secret
	}
	if err := sub.Validate(); err != nil {
		return subscription.Subscription{}, err
	}
	if err := s.repo.Create(ctx, &sub); err != nil {
		return subscription.Subscription{}, err
	}
	return sub, nil
}

type UpdateSubscriptionInput struct {
	Name   *string
	URL    *string
	Events event.Kinds
	Mode   *subscription.DeliveryMode
	Active *bool
}

func (s *SubscriptionService) Update(ctx context.Context, orgID, id uuid.UUID, in UpdateSubscriptionInput) (subscription.Subscription, error) {
	sub, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return subscription.Subscription{}, err
	}

	if in.Name != nil {
		sub.Name = *in.Name
	}
	if in.URL != nil {
		sub.URL = *in.URL
	}
	if len(in.Events) > 0 {
		sub.Events = in.Events
	}
	if in.Mode != nil {
		sub.Mode = *in.Mode
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}
	sub.UpdatedAt = time.Now()

	if err := sub.Validate(); err != nil {
		return subscription.Subscription{}, err
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return subscription.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, orgID, id uuid.UUID) (subscription.Subscription, error) {
	return s.getOwned(ctx, orgID, id)
}

func (s *SubscriptionService) List(ctx context.Context, orgID uuid.UUID, page, limit int) ([]subscription.Subscription, int64, error) {
	return s.repo.ListByOrganization(ctx, orgID, page, limit)
}

func (s *SubscriptionService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, orgID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// TestResult is the raw outcome of a synchronous test delivery.
type TestResult struct {
	URL             string `json:"url"`
	ResponseStatus  int    `json:"response_status"`
	ResponseSnippet string `json:"response_snippet"`
	Success         bool   `json:"success"`
}

// SendTest delivers one sample payload synchronously, bypassing the
// queue, dedup and circuit breaker. Used for subscriber onboarding.
func (s *SubscriptionService) SendTest(ctx context.Context, orgID, id uuid.UUID) (TestResult, error) {
	sub, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return TestResult{}, err
	}

	kind := sub.Events[0]
	ev := event.Event{
		Kind:           kind,
		OrganizationID: orgID,
		BusinessKey:    "test-" + uuid.NewString(),
		Data: map[string]interface{}{
			"test":       true,
			"messageId":  uuid.NewString(),
			"from":       "0000000000@s.whatsapp.net",
			"content":    map[string]interface{}{"text": "test delivery"},
			"occurredAt": time.Now().UTC().Format(time.RFC3339),
		},
		OccurredAt: time.Now().UTC(),
	}

	req, err := s.encoder.Encode(&sub, ev, uuid.New())
	if err != nil {
		return TestResult{}, err
	}
	outcome := s.executor.Do(ctx, req)
	return TestResult{
		URL:             req.URL,
		ResponseStatus:  outcome.ResponseStatus,
		ResponseSnippet: outcome.ResponseSnippet,
		Success:         outcome.Success,
	}, nil
}

func (s *SubscriptionService) getOwned(ctx context.Context, orgID, id uuid.UUID) (subscription.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if sub.OrganizationID != orgID {
		return subscription.Subscription{}, hookrelay_errors.ErrForbidden
	}
	return sub, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
