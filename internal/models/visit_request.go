package models

import "time"

// VisitOutcome is the tri-state approval outcome of a visit request.
type VisitOutcome string

const (
	// VisitOutcomePending indicates the request awaits a factory decision.
	VisitOutcomePending VisitOutcome = "pending"
	// VisitOutcomeApproved indicates an approver green-lit the visit.
	VisitOutcomeApproved VisitOutcome = "approved"
	// VisitOutcomeRejected indicates an approver declined the visit.
	VisitOutcomeRejected VisitOutcome = "rejected"
)

// VisitRequest tracks bilateral requests for a factory technician to visit a
// gym. There is at most one per ticket; each side's request is recorded
// independently.
type VisitRequest struct {
	ID                   uint         `gorm:"primaryKey" json:"id"`
	TicketID             uint         `gorm:"not null;uniqueIndex" json:"ticket_id"`
	Ticket               *Ticket      `gorm:"foreignKey:TicketID" json:"ticket,omitempty"`
	GymRequestedByUserID *uint        `json:"gym_requested_by_user_id,omitempty"`
	GymRequestedAt       *time.Time   `json:"gym_requested_at,omitempty"`
	FactoryRequestedByUserID *uint    `json:"factory_requested_by_user_id,omitempty"`
	FactoryRequestedAt   *time.Time   `json:"factory_requested_at,omitempty"`
	Outcome              VisitOutcome `gorm:"type:varchar(20);not null;default:'pending';index" json:"outcome"`
	DecidedByUserID      *uint        `json:"decided_by_user_id,omitempty"`
	DecidedAt            *time.Time   `json:"decided_at,omitempty"`
	RejectionReason      string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}
