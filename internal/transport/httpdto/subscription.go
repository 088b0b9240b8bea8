package httpdto

import (
	"time"

	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"
)

type CreateSubscriptionRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url" binding:"required"`
	Events []string `json:"events" binding:"required"`
	Mode   string   `json:"mode"`
	Signed bool     `json:"signed"`
}

type UpdateSubscriptionRequest struct {
	Name   *string  `json:"name,omitempty"`
	URL    *string  `json:"url,omitempty"`
	Events []string `json:"events,omitempty"`
	Mode   *string  `json:"mode,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

type SubscriptionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Mode      string    `json:"mode"`
	Active    bool      `json:"active"`
	Signed    bool      `json:"signed"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSubscriptionResponse is the only place the secret is ever
// returned; it cannot be read back later.
type CreateSubscriptionResponse struct {
	SubscriptionResponse
	Secret string `json:"secret,omitempty"`
}

type ListSubscriptionsResponse struct {
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
	Total         int64                  `json:"total"`
}

func FromSubscription(s subscription.Subscription) SubscriptionResponse {
	events := make([]string, len(s.Events))
	for i, k := range s.Events {
		events[i] = string(k)
	}
	return SubscriptionResponse{
		ID:        s.ID.String(),
		Name:      s.Name,
		URL:       s.URL,
		Events:    events,
		Mode:      string(s.Mode),
		Active:    s.Active,
		Signed:    s.Signed(),
		CreatedAt: s.CreatedAt,
	}
}

func FromSubscriptionSlice(subs []subscription.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, len(subs))
	for i, s := range subs {
		out[i] = FromSubscription(s)
	}
	return out
}

func ToKinds(events []string) event.Kinds {
	kinds := make(event.Kinds, len(events))
	for i, e := range events {
		kinds[i] = event.Kind(e)
	}
	return kinds
}
