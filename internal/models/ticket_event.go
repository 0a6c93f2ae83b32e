package models

import (
	"time"

	"gorm.io/datatypes"
)

// TicketEventType tags entries in a ticket's append-only audit trail.
type TicketEventType string

const (
	TicketEventCreated        TicketEventType = "ticket_created"
	TicketEventStatusChange   TicketEventType = "status_change"
	TicketEventComment        TicketEventType = "comment"
	TicketEventVisitRequested TicketEventType = "visit_requested"
	TicketEventVisitApproved  TicketEventType = "visit_approved"
	TicketEventVisitRejected  TicketEventType = "visit_rejected"
	TicketEventConfirmation   TicketEventType = "confirmation"
	TicketEventClosed         TicketEventType = "ticket_closed"
)

// TicketEvent is an immutable audit trail entry. Payload is a free-form JSON
// document keyed by the event type.
type TicketEvent struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TicketID      uint            `gorm:"not null;index" json:"ticket_id"`
	ActorUserID   uint            `gorm:"not null" json:"actor_user_id"`
	ActorUser     *User           `gorm:"foreignKey:ActorUserID" json:"actor_user,omitempty"`
	Type          TicketEventType `gorm:"type:varchar(32);not null;index" json:"type"`
	Payload       datatypes.JSON  `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
