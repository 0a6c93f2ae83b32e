package repository

import (
	"context"
	"errors"
	"time"

	"gymfix/internal/lifecycle"
	"gymfix/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfirmationRepository defines persistence operations for resolution
// confirmations.
type ConfirmationRepository interface {
	// Submit inserts the confirmation and, when both sides have now
	// confirmed, closes the ticket in the same transaction. Returns the
	// ticket as of the end of the transaction and whether it was closed.
	Submit(ctx context.Context, conf *models.TicketConfirmation) (*models.Ticket, bool, error)
	ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketConfirmation, error)
}

type confirmationRepository struct {
	db *gorm.DB
}

// NewConfirmationRepository returns a new ConfirmationRepository implementation.
func NewConfirmationRepository(db *gorm.DB) ConfirmationRepository {
	return &confirmationRepository{db: db}
}

func (r *confirmationRepository) Submit(ctx context.Context, conf *models.TicketConfirmation) (*models.Ticket, bool, error) {
	var ticket models.Ticket
	closed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// Serialize concurrent confirmations on the ticket row. SQLite has
		// no FOR UPDATE and serializes writers itself.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&ticket, conf.TicketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Ticket", conf.TicketID)
			}
			return models.NewInternalError(err)
		}

		if ticket.Status != models.TicketStatusResolved {
			return models.NewConflictError("ticket must be resolved before it can be confirmed")
		}

		if err := tx.Create(conf).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("this side has already confirmed the resolution")
			}
			return models.NewInternalError(err)
		}

		if err := tx.Create(&models.TicketEvent{
			TicketID:    ticket.ID,
			ActorUserID: conf.ConfirmerUserID,
			Type:        models.TicketEventConfirmation,
		}).Error; err != nil {
			return models.NewInternalError(err)
		}

		var sides int64
		if err := tx.Model(&models.TicketConfirmation{}).
			Where("ticket_id = ?", ticket.ID).
			Count(&sides).Error; err != nil {
			return models.NewInternalError(err)
		}
		if sides < 2 {
			return nil
		}

		// Second side just confirmed; the closure edge is reserved for this
		// transaction and validated like every other transition.
		res, err := lifecycle.Transition(ticket.Status, models.TicketStatusClosed, lifecycle.RoleSystem)
		if err != nil {
			return err
		}

		now := time.Now()
		ticket.Status = res.Next
		ticket.ClosedByUserID = &conf.ConfirmerUserID
		ticket.ClosedAt = &now
		if err := tx.Save(&ticket).Error; err != nil {
			return models.NewInternalError(err)
		}

		if err := tx.Create(&models.TicketEvent{
			TicketID:    ticket.ID,
			ActorUserID: conf.ConfirmerUserID,
			Type:        res.Event,
		}).Error; err != nil {
			return models.NewInternalError(err)
		}

		closed = true
		return nil
	})

	if err != nil {
		return nil, false, err
	}
	return &ticket, closed, nil
}

func (r *confirmationRepository) ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketConfirmation, error) {
	var confs []models.TicketConfirmation
	if err := r.db.WithContext(ctx).
		Preload("ConfirmerUser").
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&confs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return confs, nil
}
