package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType tags notification rows for client-side rendering.
type NotificationType string

const (
	NotificationTicketCreated   NotificationType = "ticket_created"
	NotificationStatusChanged   NotificationType = "ticket_status_changed"
	NotificationVisitRequested  NotificationType = "visit_requested"
	NotificationVisitDecided    NotificationType = "visit_decided"
	NotificationTicketClosed    NotificationType = "ticket_closed"
	NotificationMemberAdded     NotificationType = "member_added"
	NotificationTicketComment   NotificationType = "ticket_comment"
	NotificationConfirmationIn  NotificationType = "confirmation_submitted"
)

// Notification is a per-user delivery record created as a side effect of
// ticket and visit mutations. Connected clients receive it live over the
// WebSocket hub; offline users fetch unread rows on next load.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	Data      datatypes.JSON   `json:"data,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
