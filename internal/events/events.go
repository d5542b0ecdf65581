// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ContractSubmitted = "contract.submitted"
	ContractApproved  = "contract.approved"
	ContractRejected  = "contract.rejected"
	TemplateSubmitted = "template.submitted"
	TemplateApproved  = "template.approved"
	TemplateRejected  = "template.rejected"
	ApprovalRedeemed  = "approval_token.redeemed"
	UserRoleChanged   = "user.role_changed"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    string         `json:"actor_id,omitempty"`
	Data       map[string]any `json:"data"`
}

func NewEnvelope(eventType, actorID string, data map[string]any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// Emit encodes env and publishes it keyed by key.
func Emit(ctx context.Context, p Publisher, env Envelope, key string) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env.EventType, payload, key)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte, string) error { return nil }

func (NoopPublisher) Close() error { return nil }
