package repository

import (
	"context"
	"errors"

	"gymfix/internal/models"

	"gorm.io/gorm"
)

// VisitRepository defines persistence operations for visit requests.
type VisitRepository interface {
	Create(ctx context.Context, vr *models.VisitRequest) error
	GetByTicketID(ctx context.Context, ticketID uint) (*models.VisitRequest, error)
	Update(ctx context.Context, vr *models.VisitRequest) error
}

type visitRepository struct {
	db *gorm.DB
}

// NewVisitRepository returns a new VisitRepository implementation.
func NewVisitRepository(db *gorm.DB) VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) Create(ctx context.Context, vr *models.VisitRequest) error {
	if err := r.db.WithContext(ctx).Create(vr).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A visit request already exists for this ticket")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *visitRepository) GetByTicketID(ctx context.Context, ticketID uint) (*models.VisitRequest, error) {
	var vr models.VisitRequest
	if err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&vr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &vr, nil
}

func (r *visitRepository) Update(ctx context.Context, vr *models.VisitRequest) error {
	if err := r.db.WithContext(ctx).Save(vr).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
