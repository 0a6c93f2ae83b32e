package models

import "time"

// ConfirmationSide identifies which party submitted a resolution confirmation.
type ConfirmationSide string

const (
	// ConfirmationSideGym is a confirmation from gym staff.
	ConfirmationSideGym ConfirmationSide = "gym"
	// ConfirmationSideFactory is a confirmation from factory staff.
	ConfirmationSideFactory ConfirmationSide = "factory"
)

// TicketConfirmation records one party's attestation that a ticket is
// resolved. The unique index on (ticket_id, side) guarantees at most one
// confirmation per side; closure is decided inside the same transaction that
// inserts the second confirmation.
type TicketConfirmation struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	TicketID        uint             `gorm:"not null;uniqueIndex:idx_ticket_confirmation_side" json:"ticket_id"`
	Side            ConfirmationSide `gorm:"type:varchar(10);not null;uniqueIndex:idx_ticket_confirmation_side" json:"side"`
	ConfirmerUserID uint             `gorm:"not null" json:"confirmer_user_id"`
	ConfirmerUser   *User            `gorm:"foreignKey:ConfirmerUserID" json:"confirmer_user,omitempty"`
	Notes           string           `gorm:"type:text;not null" json:"notes"`
	PhotoURL        string           `gorm:"size:512;not null" json:"photo_url"`
	CreatedAt       time.Time        `json:"created_at"`
}
