package httpdto

import (
	"time"
)

type PublishEventRequest struct {
	Kind        string                 `json:"kind" binding:"required"`
	BusinessKey string                 `json:"business_key" binding:"required"`
	Data        map[string]interface{} `json:"data"`
	OccurredAt  *time.Time             `json:"occurred_at,omitempty"`
}

type PublishEventResponse struct {
	Suppressed bool `json:"suppressed"`
	Enqueued   int  `json:"enqueued"`
	Skipped    int  `json:"skipped"`
}
