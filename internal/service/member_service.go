package service

import (
	"context"
	"fmt"
	"time"

	"gymfix/internal/authz"
	"gymfix/internal/models"
	"gymfix/internal/repository"
)

// MemberService manages gym and factory staff rosters.
type MemberService struct {
	membershipRepo repository.MembershipRepository
	tenantRepo     repository.TenantRepository
	userRepo       repository.UserRepository
	resolver       *authz.Resolver
	notifications  *NotificationService
}

func NewMemberService(
	membershipRepo repository.MembershipRepository,
	tenantRepo repository.TenantRepository,
	userRepo repository.UserRepository,
	resolver *authz.Resolver,
	notifications *NotificationService,
) *MemberService {
	return &MemberService{
		membershipRepo: membershipRepo,
		tenantRepo:     tenantRepo,
		userRepo:       userRepo,
		resolver:       resolver,
		notifications:  notifications,
	}
}

// AddGymMember adds a user to a gym's roster. Memberships created by a
// manager are approved immediately. Duplicates are a conflict.
func (s *MemberService) AddGymMember(ctx context.Context, actorID, gymID, userID uint, role models.GymRole) (*models.GymMembership, error) {
	decision, err := s.resolver.CanManageGymMembers(ctx, actorID, gymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	if role == "" {
		role = models.GymRoleEmployee
	}
	if role != models.GymRoleOwner && role != models.GymRoleEmployee {
		return nil, models.NewValidationError("Role must be owner or employee")
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	gym, err := s.tenantRepo.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m := &models.GymMembership{
		GymID:      gymID,
		UserID:     userID,
		Role:       role,
		ApprovedAt: &now,
	}
	if err := s.membershipRepo.AddGymMember(ctx, m); err != nil {
		return nil, err
	}

	_ = s.notifications.Notify(ctx, userID, models.NotificationMemberAdded,
		fmt.Sprintf("You were added to %s", gym.Name), "",
		map[string]interface{}{"gym_id": gymID, "role": role})

	return m, nil
}

// UpdateGymMemberRole changes a member's role. Demoting the last owner would
// orphan the gym and is refused.
func (s *MemberService) UpdateGymMemberRole(ctx context.Context, actorID, gymID, userID uint, role models.GymRole) (*models.GymMembership, error) {
	decision, err := s.resolver.CanManageGymMembers(ctx, actorID, gymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	if role != models.GymRoleOwner && role != models.GymRoleEmployee {
		return nil, models.NewValidationError("Role must be owner or employee")
	}

	m, err := s.membershipRepo.GetGymMembership(ctx, gymID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, models.NewNotFoundError("GymMembership", userID)
	}

	if m.Role == models.GymRoleOwner && role != models.GymRoleOwner {
		if err := s.ensureAnotherOwner(ctx, gymID, userID); err != nil {
			return nil, err
		}
	}

	m.Role = role
	if err := s.membershipRepo.UpdateGymMembership(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveGymMember revokes a membership by deleting the row. Owner-role
// members are never removable; demote them to employee first.
func (s *MemberService) RemoveGymMember(ctx context.Context, actorID, gymID, userID uint) error {
	decision, err := s.resolver.CanManageGymMembers(ctx, actorID, gymID)
	if err != nil {
		return err
	}
	if err := decision.Err(); err != nil {
		return err
	}

	m, err := s.membershipRepo.GetGymMembership(ctx, gymID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return models.NewNotFoundError("GymMembership", userID)
	}
	if m.Role == models.GymRoleOwner {
		return models.NewConflictError("gym owners cannot be removed; change their role first")
	}

	return s.membershipRepo.RemoveGymMember(ctx, gymID, userID)
}

func (s *MemberService) ListGymMembers(ctx context.Context, actorID, gymID uint) ([]models.GymMembership, error) {
	decision, err := s.resolver.CanViewGym(ctx, actorID, gymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return s.membershipRepo.ListGymMembers(ctx, gymID)
}

// AddFactoryMember adds a user to the factory roster. Only the factory owner
// or a master admin may manage the factory's staff.
func (s *MemberService) AddFactoryMember(ctx context.Context, actorID, factoryID, userID uint, role models.FactoryRole) (*models.FactoryMembership, error) {
	if err := s.requireFactoryOwner(ctx, actorID, factoryID); err != nil {
		return nil, err
	}

	if role == "" {
		role = models.FactoryRoleEmployee
	}
	switch role {
	case models.FactoryRoleOwner, models.FactoryRoleApprover, models.FactoryRoleEmployee:
	default:
		return nil, models.NewValidationError("Role must be owner, approver, or employee")
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	m := &models.FactoryMembership{
		FactoryID: factoryID,
		UserID:    userID,
		Role:      role,
	}
	if err := s.membershipRepo.AddFactoryMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MemberService) ListFactoryMembers(ctx context.Context, actorID, factoryID uint) ([]models.FactoryMembership, error) {
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
	return s.membershipRepo.ListFactoryMembers(ctx, factoryID)
}

func (s *MemberService) requireFactoryOwner(ctx context.Context, actorID, factoryID uint) error {
	admin, err := s.resolver.IsAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	role, ok, err := s.resolver.FactoryRole(ctx, actorID, factoryID)
	if err != nil {
		return err
	}
	if !ok || role != models.FactoryRoleOwner {
		return models.NewForbiddenError("factory owner role required")
	}
	return nil
}

func (s *MemberService) ensureAnotherOwner(ctx context.Context, gymID, excludeUserID uint) error {
	members, err := s.membershipRepo.ListGymMembers(ctx, gymID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != excludeUserID && m.Role == models.GymRoleOwner && m.Active() {
			return nil
		}
	}
	return models.NewConflictError("a gym must retain at least one owner")
}
