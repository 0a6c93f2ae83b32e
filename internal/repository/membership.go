package repository

import (
	"context"
	"errors"

	"gymfix/internal/models"

	"gorm.io/gorm"
)

// MembershipRepository defines persistence operations for gym and factory
// memberships.
type MembershipRepository interface {
	AddGymMember(ctx context.Context, m *models.GymMembership) error
	GetGymMembership(ctx context.Context, gymID, userID uint) (*models.GymMembership, error)
	UpdateGymMembership(ctx context.Context, m *models.GymMembership) error
	RemoveGymMember(ctx context.Context, gymID, userID uint) error
	ListGymMembers(ctx context.Context, gymID uint) ([]models.GymMembership, error)
	ListGymMemberIDs(ctx context.Context, gymID uint) ([]uint, error)

	AddFactoryMember(ctx context.Context, m *models.FactoryMembership) error
	GetFactoryMembership(ctx context.Context, factoryID, userID uint) (*models.FactoryMembership, error)
	ListFactoryMembers(ctx context.Context, factoryID uint) ([]models.FactoryMembership, error)
	ListFactoryMemberIDsByRole(ctx context.Context, factoryID uint, roles ...models.FactoryRole) ([]uint, error)
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository returns a new MembershipRepository implementation.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) AddGymMember(ctx context.Context, m *models.GymMembership) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User is already a member of this gym")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) GetGymMembership(ctx context.Context, gymID, userID uint) (*models.GymMembership, error) {
	var m models.GymMembership
	if err := r.db.WithContext(ctx).
		Where("gym_id = ? AND user_id = ?", gymID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *membershipRepository) UpdateGymMembership(ctx context.Context, m *models.GymMembership) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) RemoveGymMember(ctx context.Context, gymID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("gym_id = ? AND user_id = ?", gymID, userID).
		Delete(&models.GymMembership{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("GymMembership", userID)
	}
	return nil
}

func (r *membershipRepository) ListGymMembers(ctx context.Context, gymID uint) ([]models.GymMembership, error) {
	var members []models.GymMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("gym_id = ?", gymID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *membershipRepository) ListGymMemberIDs(ctx context.Context, gymID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GymMembership{}).
		Where("gym_id = ? AND approved_at IS NOT NULL", gymID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *membershipRepository) AddFactoryMember(ctx context.Context, m *models.FactoryMembership) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User is already a member of this factory")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) GetFactoryMembership(ctx context.Context, factoryID, userID uint) (*models.FactoryMembership, error) {
	var m models.FactoryMembership
	if err := r.db.WithContext(ctx).
		Where("factory_id = ? AND user_id = ?", factoryID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *membershipRepository) ListFactoryMembers(ctx context.Context, factoryID uint) ([]models.FactoryMembership, error) {
	var members []models.FactoryMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("factory_id = ?", factoryID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *membershipRepository) ListFactoryMemberIDsByRole(ctx context.Context, factoryID uint, roles ...models.FactoryRole) ([]uint, error) {
	var ids []uint
	q := r.db.WithContext(ctx).
		Model(&models.FactoryMembership{}).
		Where("factory_id = ?", factoryID)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
