package repository

import (
	"context"
	"errors"

	"gymfix/internal/cache"
	"gymfix/internal/models"

	"gorm.io/gorm"
)

// TenantRepository defines persistence operations for factories and gyms.
type TenantRepository interface {
	CreateFactory(ctx context.Context, factory *models.Factory) error
	GetFactory(ctx context.Context, id uint) (*models.Factory, error)
	CreateGym(ctx context.Context, gym *models.Gym) error
	GetGym(ctx context.Context, id uint) (*models.Gym, error)
	ListGymsByFactory(ctx context.Context, factoryID uint) ([]models.Gym, error)
	ListGymsForUser(ctx context.Context, userID uint) ([]models.Gym, error)
	UpdateGym(ctx context.Context, gym *models.Gym) error
}

type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository returns a new TenantRepository implementation.
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) CreateFactory(ctx context.Context, factory *models.Factory) error {
	if err := r.db.WithContext(ctx).Create(factory).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tenantRepository) GetFactory(ctx context.Context, id uint) (*models.Factory, error) {
	var factory models.Factory
	key := cache.FactoryKey(id)

	err := cache.Aside(ctx, key, &factory, cache.FactoryTTL, func() error {
		if err := r.db.WithContext(ctx).First(&factory, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Factory", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &factory, nil
}

func (r *tenantRepository) CreateGym(ctx context.Context, gym *models.Gym) error {
	if err := r.db.WithContext(ctx).Create(gym).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tenantRepository) GetGym(ctx context.Context, id uint) (*models.Gym, error) {
	var gym models.Gym
	key := cache.GymKey(id)

	err := cache.Aside(ctx, key, &gym, cache.GymTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("Factory").First(&gym, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Gym", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &gym, nil
}

func (r *tenantRepository) ListGymsByFactory(ctx context.Context, factoryID uint) ([]models.Gym, error) {
	var gyms []models.Gym
	if err := r.db.WithContext(ctx).Where("factory_id = ?", factoryID).Order("id ASC").Find(&gyms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return gyms, nil
}

// ListGymsForUser returns gyms the user can see: gyms where they hold a
// membership plus every gym of factories they belong to.
func (r *tenantRepository) ListGymsForUser(ctx context.Context, userID uint) ([]models.Gym, error) {
	gymIDs := r.db.Model(&models.GymMembership{}).Select("gym_id").Where("user_id = ?", userID)
	factoryIDs := r.db.Model(&models.FactoryMembership{}).Select("factory_id").Where("user_id = ?", userID)

	var gyms []models.Gym
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", gymIDs).
		Or("factory_id IN (?)", factoryIDs).
		Order("id ASC").
		Find(&gyms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return gyms, nil
}

func (r *tenantRepository) UpdateGym(ctx context.Context, gym *models.Gym) error {
	if err := r.db.WithContext(ctx).Save(gym).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateGym(ctx, gym.ID)
	return nil
}
