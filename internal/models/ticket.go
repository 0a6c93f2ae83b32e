package models

import "time"

// TicketStatus defines lifecycle states for a maintenance ticket.
type TicketStatus string

const (
	// TicketStatusOpen is the initial state of a freshly reported fault.
	TicketStatusOpen TicketStatus = "open"
	// TicketStatusInReview indicates the factory is triaging the fault.
	TicketStatusInReview TicketStatus = "in_review"
	// TicketStatusGymFixInProgress indicates gym staff attempt an internal repair.
	TicketStatusGymFixInProgress TicketStatus = "gym_fix_in_progress"
	// TicketStatusAwaitingFactoryReview indicates the gym escalated to the factory.
	TicketStatusAwaitingFactoryReview TicketStatus = "awaiting_factory_review"
	// TicketStatusFactoryVisitRequested indicates a visit request exists.
	TicketStatusFactoryVisitRequested TicketStatus = "factory_visit_requested"
	// TicketStatusFactoryVisitApproved indicates the visit was approved.
	TicketStatusFactoryVisitApproved TicketStatus = "factory_visit_approved"
	// TicketStatusResolved indicates the fault is fixed but not yet confirmed closed.
	TicketStatusResolved TicketStatus = "resolved"
	// TicketStatusRejected is the terminal state of a rejected visit request.
	TicketStatusRejected TicketStatus = "rejected"
	// TicketStatusClosed is the terminal state reached via dual confirmation.
	TicketStatusClosed TicketStatus = "closed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusRejected
}

// TicketPriority defines the urgency of a ticket.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket represents one reported equipment fault. Tickets are never
// hard-deleted; closure is recorded via ClosedAt/ClosedByUserID.
type Ticket struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	EquipmentID      uint           `gorm:"not null;index" json:"equipment_id"`
	Equipment        *Equipment     `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
	GymID            uint           `gorm:"not null;index" json:"gym_id"`
	Gym              *Gym           `gorm:"foreignKey:GymID" json:"gym,omitempty"`
	FactoryID        uint           `gorm:"not null;index" json:"factory_id"`
	Status           TicketStatus   `gorm:"type:varchar(32);not null;default:'open';index" json:"status"`
	Priority         TicketPriority `gorm:"type:varchar(10);not null;default:'low'" json:"priority"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	PhotoURL         string         `gorm:"size:512" json:"photo_url,omitempty"`
	ReportedByUserID uint           `gorm:"not null;index" json:"reported_by_user_id"`
	ReportedByUser   *User          `gorm:"foreignKey:ReportedByUserID" json:"reported_by_user,omitempty"`
	ResolvedByUserID *uint          `json:"resolved_by_user_id,omitempty"`
	ResolutionNotes  string         `gorm:"type:text" json:"resolution_notes,omitempty"`
	ClosedByUserID   *uint          `json:"closed_by_user_id,omitempty"`
	ClosedAt         *time.Time     `json:"closed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
