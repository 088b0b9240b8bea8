package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a delivery.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Record is the durable audit trail for one (subscription, event) delivery.
// It is created when the job is enqueued, mutated on every attempt, and
// terminal once status reaches SUCCESS or the retry budget is exhausted.
type Record struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriptionID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_deliveries_subscription"`
	OrganizationID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_deliveries_org"`
	EventKind       string     `gorm:"type:varchar(50);not null"`
	BusinessKey     string     `gorm:"type:varchar(255);not null"`
	Payload         []byte     `gorm:"type:jsonb;not null"`
	Status          Status     `gorm:"type:varchar(20);not null;default:'PENDING'"`
	Attempts        int        `gorm:"not null;default:0"`
	LastAttemptAt   *time.Time
	ResponseStatus  int        `gorm:"not null;default:0"`
	ResponseSnippet string     `gorm:"type:text"`
	CreatedAt       time.Time  `gorm:"not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()"`
}

func (Record) TableName() string {
	return "webhook_deliveries"
}

// AttemptUpdate carries the per-attempt mutation applied to a Record.
type AttemptUpdate struct {
	Status          Status
	Attempts        int
	LastAttemptAt   time.Time
	ResponseStatus  int
	ResponseSnippet string
}
