// Package events publishes domain events after successful mutations.
package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Event types.
const (
	ApplicationSubmitted          = "application.submitted"
	ApplicationTransitioned       = "application.transitioned"
	ApplicationInterviewScheduled = "application.interview_scheduled"
	ApplicationOfferMade          = "application.offer_made"
	CertificateIssued             = "certificate.issued"
	CertificateRevoked            = "certificate.revoked"
)

// Event is the JSON envelope written to the bus. Key groups events of one
// aggregate onto one partition.
type Event struct {
	Type       string            `json:"type"`
	Key        string            `json:"key"`
	ActorID    uuid.UUID         `json:"actorId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       map[string]string `json:"data,omitempty"`
}

// Publisher delivers events. Delivery is best effort: callers log failures
// and never fail the originating operation.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
