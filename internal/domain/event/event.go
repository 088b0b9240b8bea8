package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
)

// Kind identifies a domain event type subscribers can listen to.
type Kind string

const (
	KindMessageReceived     Kind = "message.received"
	KindMessageSent         Kind = "message.sent"
	KindContactCreated      Kind = "contact.created"
	KindContactUpdated      Kind = "contact.updated"
	KindCampaignStarted     Kind = "campaign.started"
	KindCampaignFinished    Kind = "campaign.finished"
	KindSessionConnected    Kind = "session.connected"
	KindSessionDisconnected Kind = "session.disconnected"
)

var allKinds = map[Kind]bool{
	KindMessageReceived:     true,
	KindMessageSent:         true,
	KindContactCreated:      true,
	KindContactUpdated:      true,
	KindCampaignStarted:     true,
	KindCampaignFinished:    true,
	KindSessionConnected:    true,
	KindSessionDisconnected: true,
}

func (k Kind) Valid() bool {
	return allKinds[k]
}

// Direction classifies the event for simple query-parameter receivers:
// "outgoing" for events about traffic leaving the platform, "incoming"
// for everything else.
func (k Kind) Direction() string {
	s := string(k)
	if strings.Contains(s, "sent") || strings.Contains(s, "outbound") {
		return "outgoing"
	}
	return "incoming"
}

// Kinds is a set of event kinds stored as a jsonb array.
type Kinds []Kind

func (k Kinds) Contains(kind Kind) bool {
	for _, v := range k {
		if v == kind {
			return true
		}
	}
	return false
}

func (k Kinds) Value() (driver.Value, error) {
	b, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (k *Kinds) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, k)
	case string:
		return json.Unmarshal([]byte(v), k)
	case nil:
		*k = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for Kinds: %T", src)
	}
}

// Event is a transient domain occurrence handed to the publisher. It is
// never persisted as-is; only its delivery attempts are.
type Event struct {
	Kind           Kind                   `json:"kind"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	BusinessKey    string                 `json:"business_key"`
	Data           map[string]interface{} `json:"data"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return hookrelay_errors.ErrUnknownEventKind
	}
	if e.OrganizationID == uuid.Nil {
		return hookrelay_errors.ErrInvalidInput
	}
	if e.BusinessKey == "" {
		return hookrelay_errors.ErrInvalidInput
	}
	return nil
}
