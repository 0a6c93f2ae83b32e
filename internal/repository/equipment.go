package repository

import (
	"context"
	"errors"

	"gymfix/internal/cache"
	"gymfix/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EquipmentRepository defines persistence operations for equipment.
type EquipmentRepository interface {
	Create(ctx context.Context, eq *models.Equipment) error
	GetByID(ctx context.Context, id uint) (*models.Equipment, error)
	GetByQRCode(ctx context.Context, code string) (*models.Equipment, error)
	ListByGym(ctx context.Context, gymID uint) ([]models.Equipment, error)
	ListByFactory(ctx context.Context, factoryID uint) ([]models.Equipment, error)
	Update(ctx context.Context, eq *models.Equipment) error
}

type equipmentRepository struct {
	db *gorm.DB
}

// NewEquipmentRepository returns a new EquipmentRepository implementation.
func NewEquipmentRepository(db *gorm.DB) EquipmentRepository {
	return &equipmentRepository{db: db}
}

func (r *equipmentRepository) Create(ctx context.Context, eq *models.Equipment) error {
	if err := r.db.WithContext(ctx).Create(eq).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Equipment with this QR code already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *equipmentRepository) GetByID(ctx context.Context, id uint) (*models.Equipment, error) {
	var eq models.Equipment
	if err := r.db.WithContext(ctx).Preload("Gym").First(&eq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Equipment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &eq, nil
}

// GetByQRCode resolves a scanned QR code to equipment, cache-aside since
// scans are the hottest read path.
func (r *equipmentRepository) GetByQRCode(ctx context.Context, code string) (*models.Equipment, error) {
	var eq models.Equipment
	key := cache.EquipmentQRKey(code)

	err := cache.Aside(ctx, key, &eq, cache.EquipmentTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("Gym").Where("qr_code = ?", code).First(&eq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Equipment", 0)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &eq, nil
}

func (r *equipmentRepository) ListByGym(ctx context.Context, gymID uint) ([]models.Equipment, error) {
	var items []models.Equipment
	if err := r.db.WithContext(ctx).Where("gym_id = ?", gymID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *equipmentRepository) ListByFactory(ctx context.Context, factoryID uint) ([]models.Equipment, error) {
	var items []models.Equipment
	if err := r.db.WithContext(ctx).Where("factory_id = ?", factoryID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *equipmentRepository) Update(ctx context.Context, eq *models.Equipment) error {
	// Save would write preloaded Gym/Factory back and reset the foreign keys
	// from the stale structs.
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(eq).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateEquipmentQR(ctx, eq.QRCode)
	return nil
}
