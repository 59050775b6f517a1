package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "loyalty.account_registered"
	EventVisitRecorded     EventType = "loyalty.visit_recorded"
	EventTierCompleted     EventType = "loyalty.tier_completed"
	EventTierRedeemed      EventType = "loyalty.tier_redeemed"
	EventWriteFailed       EventType = "loyalty.write_failed"
)

// Event represents a domain event emitted by the loyalty service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, accountID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	DisplayName string `json:"display_name"`
}

// VisitRecordedPayload payload.
type VisitRecordedPayload struct {
	VisitCount int `json:"visit_count"`
}

// TierPayload is shared by completion and redemption events.
type TierPayload struct {
	TierID   int    `json:"tier_id"`
	TierName string `json:"tier_name"`
	Reward   string `json:"reward"`
}

// WriteFailedPayload describes a durable write that was rolled back.
type WriteFailedPayload struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}
