package audit

import (
	"context"
	"time"
)

const (
	TargetVerification = "verification"

	ActorBorrowerPrefix = "borrower:"
)

// Event is one entry of the audit trail.
type Event struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recorder accepts audit events. Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

// Record drops the event.
func (Nop) Record(context.Context, Event) {}

// BorrowerActor names the borrower acting on a verification.
func BorrowerActor(verificationID string) string {
	return ActorBorrowerPrefix + verificationID
}
