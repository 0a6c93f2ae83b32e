package repository

import (
	"context"
	"errors"

	"gymfix/internal/cache"
	"gymfix/internal/models"

	"gorm.io/gorm"
)

// TicketFilter narrows ticket listings. Zero-valued fields are ignored.
type TicketFilter struct {
	GymID     uint
	FactoryID uint
	Status    models.TicketStatus
	Priority  models.TicketPriority
	Limit     int
	Offset    int
}

// TicketRepository defines persistence operations for tickets and their
// audit trail.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id uint) (*models.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]models.Ticket, int64, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	AppendEvent(ctx context.Context, event *models.TicketEvent) error
	ListEvents(ctx context.Context, ticketID uint) ([]models.TicketEvent, error)
}

type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository returns a new TicketRepository implementation.
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).
		Preload("Equipment").
		Preload("Gym").
		Preload("ReportedByUser").
		First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Ticket", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]models.Ticket, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Ticket{})
	if filter.GymID != 0 {
		q = q.Where("gym_id = ?", filter.GymID)
	}
	if filter.FactoryID != 0 {
		q = q.Where("factory_id = ?", filter.FactoryID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	limit := clampLimit(filter.Limit, 20, 100)
	var tickets []models.Ticket
	if err := q.
		Preload("Equipment").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&tickets).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return tickets, total, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	if err := r.db.WithContext(ctx).Save(ticket).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateTicket(ctx, ticket.ID)
	return nil
}

func (r *ticketRepository) AppendEvent(ctx context.Context, event *models.TicketEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *ticketRepository) ListEvents(ctx context.Context, ticketID uint) ([]models.TicketEvent, error) {
	var events []models.TicketEvent
	if err := r.db.WithContext(ctx).
		Preload("ActorUser").
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}
