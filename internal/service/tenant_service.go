package service

import (
	"context"
	"time"

	"gymfix/internal/authz"
	"gymfix/internal/models"
	"gymfix/internal/repository"
)

// TenantService manages factories and their gyms.
type TenantService struct {
	tenantRepo     repository.TenantRepository
	membershipRepo repository.MembershipRepository
	resolver       *authz.Resolver
}

func NewTenantService(
	tenantRepo repository.TenantRepository,
	membershipRepo repository.MembershipRepository,
	resolver *authz.Resolver,
) *TenantService {
	return &TenantService{
		tenantRepo:     tenantRepo,
		membershipRepo: membershipRepo,
		resolver:       resolver,
	}
}

// CreateFactory provisions a factory tenant with the creator as its owner.
// Master admin only.
func (s *TenantService) CreateFactory(ctx context.Context, actorID uint, name string, ownerID uint) (*models.Factory, error) {
	admin, err := s.resolver.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError("admin role required to create factories")
	}
	if name == "" {
		return nil, models.NewValidationError("Factory name is required")
	}
	if ownerID == 0 {
		ownerID = actorID
	}

	factory := &models.Factory{Name: name}
	if err := s.tenantRepo.CreateFactory(ctx, factory); err != nil {
		return nil, err
	}
	if err := s.membershipRepo.AddFactoryMember(ctx, &models.FactoryMembership{
		FactoryID: factory.ID,
		UserID:    ownerID,
		Role:      models.FactoryRoleOwner,
	}); err != nil {
		return nil, err
	}
	return factory, nil
}

// CreateGym provisions a gym under the factory and installs its first owner
// with an approved membership. Factory owner or master admin only.
func (s *TenantService) CreateGym(ctx context.Context, actorID, factoryID uint, name, address string, gymOwnerID uint) (*models.Gym, error) {
	admin, err := s.resolver.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		role, ok, err := s.resolver.FactoryRole(ctx, actorID, factoryID)
		if err != nil {
			return nil, err
		}
		if !ok || role != models.FactoryRoleOwner {
			return nil, models.NewForbiddenError("factory owner role required to create gyms")
		}
	}
	if name == "" {
		return nil, models.NewValidationError("Gym name is required")
	}
	if gymOwnerID == 0 {
		return nil, models.NewValidationError("A gym owner is required")
	}
	if _, err := s.tenantRepo.GetFactory(ctx, factoryID); err != nil {
		return nil, err
	}

	gym := &models.Gym{Name: name, Address: address, FactoryID: factoryID}
	if err := s.tenantRepo.CreateGym(ctx, gym); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.membershipRepo.AddGymMember(ctx, &models.GymMembership{
		GymID:      gym.ID,
		UserID:     gymOwnerID,
		Role:       models.GymRoleOwner,
		ApprovedAt: &now,
	}); err != nil {
		return nil, err
	}
	return gym, nil
}

func (s *TenantService) GetGym(ctx context.Context, actorID, gymID uint) (*models.Gym, error) {
	decision, err := s.resolver.CanViewGym(ctx, actorID, gymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return s.tenantRepo.GetGym(ctx, gymID)
}

// ListMyGyms returns every gym visible to the user through gym or factory
// membership.
func (s *TenantService) ListMyGyms(ctx context.Context, userID uint) ([]models.Gym, error) {
	return s.tenantRepo.ListGymsForUser(ctx, userID)
}

func (s *TenantService) ListFactoryGyms(ctx context.Context, actorID, factoryID uint) ([]models.Gym, error) {
	if _, ok, err := s.resolver.FactoryRole(ctx, actorID, factoryID); err != nil {
		return nil, err
	} else if !ok {
		admin, err := s.resolver.IsAdmin(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewForbiddenError("factory membership required")
		}
	}
	return s.tenantRepo.ListGymsByFactory(ctx, factoryID)
}
