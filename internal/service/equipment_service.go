package service

import (
	"context"

	"gymfix/internal/authz"
	"gymfix/internal/models"
	"gymfix/internal/repository"
	"gymfix/internal/validation"
)

// EquipmentService manages the factory's machines and the QR scan entry point.
type EquipmentService struct {
	equipmentRepo repository.EquipmentRepository
	tenantRepo    repository.TenantRepository
	resolver      *authz.Resolver
}

func NewEquipmentService(
	equipmentRepo repository.EquipmentRepository,
	tenantRepo repository.TenantRepository,
	resolver *authz.Resolver,
) *EquipmentService {
	return &EquipmentService{
		equipmentRepo: equipmentRepo,
		tenantRepo:    tenantRepo,
		resolver:      resolver,
	}
}

// CreateEquipmentInput registers a machine and assigns it to a gym.
type CreateEquipmentInput struct {
	ActorID   uint
	FactoryID uint
	GymID     uint
	Name      string
	Model     string
	QRCode    string
}

func (s *EquipmentService) CreateEquipment(ctx context.Context, in CreateEquipmentInput) (*models.Equipment, error) {
	admin, err := s.resolver.IsAdmin(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		role, ok, err := s.resolver.FactoryRole(ctx, in.ActorID, in.FactoryID)
		if err != nil {
			return nil, err
		}
		if !ok || role != models.FactoryRoleOwner {
			return nil, models.NewForbiddenError("factory owner role required to register equipment")
		}
	}

	if in.Name == "" {
		return nil, models.NewValidationError("Equipment name is required")
	}
	if err := validation.ValidateQRCode(in.QRCode); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	gym, err := s.tenantRepo.GetGym(ctx, in.GymID)
	if err != nil {
		return nil, err
	}
	if gym.FactoryID != in.FactoryID {
		return nil, models.NewValidationError("Gym does not belong to this factory")
	}

	eq := &models.Equipment{
		Name:      in.Name,
		Model:     in.Model,
		QRCode:    in.QRCode,
		FactoryID: in.FactoryID,
		GymID:     in.GymID,
	}
	if err := s.equipmentRepo.Create(ctx, eq); err != nil {
		return nil, err
	}
	return eq, nil
}

// Scan resolves a QR code for a gym staffer standing at the machine.
func (s *EquipmentService) Scan(ctx context.Context, actorID uint, qrCode string) (*models.Equipment, error) {
	if err := validation.ValidateQRCode(qrCode); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	eq, err := s.equipmentRepo.GetByQRCode(ctx, qrCode)
	if err != nil {
		return nil, err
	}

	decision, err := s.resolver.CanViewGym(ctx, actorID, eq.GymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return eq, nil
}

func (s *EquipmentService) ListGymEquipment(ctx context.Context, actorID, gymID uint) ([]models.Equipment, error) {
	decision, err := s.resolver.CanViewGym(ctx, actorID, gymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return s.equipmentRepo.ListByGym(ctx, gymID)
}

// ReassignGym moves a machine to another of the factory's gyms.
func (s *EquipmentService) ReassignGym(ctx context.Context, actorID, equipmentID, gymID uint) (*models.Equipment, error) {
	eq, err := s.equipmentRepo.GetByID(ctx, equipmentID)
	if err != nil {
		return nil, err
	}

	admin, err := s.resolver.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		role, ok, err := s.resolver.FactoryRole(ctx, actorID, eq.FactoryID)
		if err != nil {
			return nil, err
		}
		if !ok || role != models.FactoryRoleOwner {
			return nil, models.NewForbiddenError("factory owner role required to reassign equipment")
		}
	}

	gym, err := s.tenantRepo.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}
	if gym.FactoryID != eq.FactoryID {
		return nil, models.NewValidationError("Gym does not belong to this factory")
	}

	eq.GymID = gymID
	eq.Gym = nil
	if err := s.equipmentRepo.Update(ctx, eq); err != nil {
		return nil, err
	}
	return eq, nil
}
