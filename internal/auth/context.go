package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// OperatorContext persists the tenant membership and attributes of an
// operator account. The attributes blob carries tenant-specific metadata
// (company registration numbers, notification preferences) that outer
// collaborators read.
type OperatorContext struct {
	UserID     string          `gorm:"type:varchar(100);column:user_id;primaryKey;not null" json:"userId"`
	TenantID   string          `gorm:"type:varchar(100);column:tenant_id;not null;index" json:"tenantId"`
	Attributes json.RawMessage `gorm:"type:jsonb;column:attributes;serializer:json" json:"attributes,omitempty"`
}

func (o *OperatorContext) TableName() string {
	return "operator_contexts"
}

// Actor is the request-scoped identity every mutating engine call records
// as CreatedBy/UpdatedBy. It is injected by the auth middleware and carried
// through context.Context.
type Actor struct {
	UserID   string
	TenantID string
}

// Valid reports whether the actor carries both identifiers.
func (a Actor) Valid() bool {
	return a.UserID != "" && a.TenantID != ""
}

type contextKey string

const actorContextKey contextKey = "actor"

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext extracts the actor injected by the middleware. The second
// return value is false when the request carried no usable credentials.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok && actor.Valid()
}

// AttributesMap returns the operator attributes as a map for convenient
// access. If no attributes exist, it returns an empty map.
func (o *OperatorContext) AttributesMap() (map[string]any, error) {
	attrs := make(map[string]any)
	if o == nil || len(o.Attributes) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(o.Attributes, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operator attributes: %w", err)
	}
	return attrs, nil
}

// Migrate creates the auth tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&OperatorContext{})
}
