package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const orgIDKey contextKey = "organization_id"

// WithOrgContext attaches the authenticated organization to the request context.
func WithOrgContext(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext returns the authenticated organization, if any.
func OrgIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(orgIDKey).(uuid.UUID)
	return orgID, ok
}
