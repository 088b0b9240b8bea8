package httpdto

import (
	"encoding/json"
	"time"

	"hookrelay/internal/domain/delivery"
)

type DeliveryResponse struct {
	ID              string          `json:"id"`
	SubscriptionID  string          `json:"subscription_id"`
	EventKind       string          `json:"event_kind"`
	BusinessKey     string          `json:"business_key"`
	Payload         json.RawMessage `json:"payload"`
	Status          string          `json:"status"`
	Attempts        int             `json:"attempts"`
	LastAttemptAt   *time.Time      `json:"last_attempt_at,omitempty"`
	ResponseStatus  int             `json:"response_status,omitempty"`
	ResponseSnippet string          `json:"response_snippet,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ListDeliveriesResponse struct {
	Deliveries []DeliveryResponse `json:"deliveries"`
	Total      int64              `json:"total"`
}

func FromDelivery(rec delivery.Record) DeliveryResponse {
	return DeliveryResponse{
		ID:              rec.ID.String(),
		SubscriptionID:  rec.SubscriptionID.String(),
		EventKind:       rec.EventKind,
		BusinessKey:     rec.BusinessKey,
		Payload:         json.RawMessage(rec.Payload),
		Status:          string(rec.Status),
		Attempts:        rec.Attempts,
		LastAttemptAt:   rec.LastAttemptAt,
		ResponseStatus:  rec.ResponseStatus,
		ResponseSnippet: rec.ResponseSnippet,
		CreatedAt:       rec.CreatedAt,
	}
}

func FromDeliverySlice(recs []delivery.Record) []DeliveryResponse {
	out := make([]DeliveryResponse, len(recs))
	for i, rec := range recs {
		out[i] = FromDelivery(rec)
	}
	return out
}
