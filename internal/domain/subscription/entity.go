package subscription

import (
	"net/url"
	"time"

	"hookrelay/internal/domain/event"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
)

// DeliveryMode selects how the outbound request is encoded.
type DeliveryMode string

const (
	// ModeBody posts a signed JSON body (default).
	ModeBody DeliveryMode = "BODY"
	// ModeQueryParam flattens scalar payload fields into the query string
	// for receivers that cannot parse JSON bodies.
	ModeQueryParam DeliveryMode = "QUERY_PARAM"
)

// Subscription is a tenant-registered webhook endpoint.
type Subscription struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID uuid.UUID    `gorm:"type:uuid;not null;index:idx_subscriptions_org"`
	Name           string       `gorm:"type:varchar(120)"`
	URL            string       `gorm:"type:text;not null"`
	Events         event.Kinds  `gorm:"type:jsonb;not null"`
	Secret         string       `gorm:"type:text"`
	Mode           DeliveryMode `gorm:"type:varchar(20);not null;default:'BODY'"`
	Active         bool         `gorm:"not null;default:true"`
	CreatedAt      time.Time    `gorm:"not null;default:now()"`
	UpdatedAt      time.Time    `gorm:"not null;default:now()"`
}

func (Subscription) TableName() string {
	return "webhook_subscriptions"
}

// Validate rejects malformed subscriptions before they ever reach the
// delivery pipeline.
func (s *Subscription) Validate() error {
	if s.OrganizationID == uuid.Nil {
		return hookrelay_errors.ErrInvalidInput
	}
	u, err := url.Parse(s.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return hookrelay_errors.ErrInvalidURL
	}
	if len(s.Events) == 0 {
		return hookrelay_errors.ErrNoEvents
	}
	for _, k := range s.Events {
		if !k.Valid() {
			return hookrelay_errors.ErrUnknownEventKind
		}
	}
	switch s.Mode {
	case ModeBody, ModeQueryParam:
	case "":
		s.Mode = ModeBody
	default:
		return hookrelay_errors.ErrInvalidInput
	}
	return nil
}

// Signed reports whether outbound requests for this subscription carry
// an HMAC signature. Unsigned subscriptions are permitted.
func (s *Subscription) Signed() bool {
	return s.Secret != ""
}
