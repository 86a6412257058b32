package events

import "time"

// Event types published by the custody engines.
const (
	TransferRequested         = "transfer.requested"
	TransferAccepted          = "transfer.accepted"
	TransferRejected          = "transfer.rejected"
	TransferCancelled         = "transfer.cancelled"
	TransferApproved          = "transfer.approved"
	TransferExpired           = "transfer.expired"
	TransferOfferCreated      = "transfer.offer_created"
	TransferOfferAccepted     = "transfer.offer_accepted"
	TransferHandoverConfirmed = "transfer.handover_confirmed"
	TransferReceiptConfirmed  = "transfer.receipt_confirmed"
	TransferCompleted         = "transfer.completed"

	CheckoutCreated  = "checkout.created"
	CheckoutReturned = "checkout.returned"
	CheckoutExtended = "checkout.extended"
)

// Topics group events for subscribers.
const (
	TopicTransfers = "transfers"
	TopicCheckouts = "checkouts"
)

type Event struct {
	Type      string      `json:"type"`
	EntityID  int         `json:"entity_id"`
	Data      interface{} `json:"data,omitempty"`
	ActorID   *int        `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is the boundary the custody engines talk to. Publishing is
// fire and forget: delivery failure must never fail or roll back the
// operation that produced the event.
type Publisher interface {
	Publish(topic string, eventType string, entityID int, payload interface{})
}

// NopPublisher discards everything. Used in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, int, interface{}) {}
