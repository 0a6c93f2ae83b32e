// Package authz is the single capability-check module consumed by every
// entry point. It resolves an actor's tenant roles and answers capability
// questions with typed decisions instead of scattered inline booleans.
package authz

import (
	"context"
	"errors"

	"gymfix/internal/lifecycle"
	"gymfix/internal/models"

	"gorm.io/gorm"
)

// Decision is the typed result of a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Deny returns a denied decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Allow is the granted decision.
var Allow = Decision{Allowed: true}

// Err converts a denied decision into a forbidden application error.
// It returns nil for granted decisions.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return models.NewForbiddenError(d.Reason)
}

// Resolver answers role and capability questions against the relational
// store. Master admins pass every check, mirroring tenant-owner overrides.
type Resolver struct {
	db *gorm.DB
}

// NewResolver returns a Resolver backed by the given DB handle.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// GymRole returns the actor's role in a gym. Only approved memberships count;
// a pending membership grants nothing.
func (r *Resolver) GymRole(ctx context.Context, userID, gymID uint) (models.GymRole, bool, error) {
	var membership models.GymMembership
	err := r.db.WithContext(ctx).
		Where("gym_id = ? AND user_id = ? AND approved_at IS NOT NULL", gymID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, models.NewInternalError(err)
	}
	return membership.Role, true, nil
}

// FactoryRole returns the actor's role in a factory.
func (r *Resolver) FactoryRole(ctx context.Context, userID, factoryID uint) (models.FactoryRole, bool, error) {
	var membership models.FactoryMembership
	err := r.db.WithContext(ctx).
		Where("factory_id = ? AND user_id = ?", factoryID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, models.NewInternalError(err)
	}
	return membership.Role, true, nil
}

// IsAdmin reports whether the user holds the global admin flag.
func (r *Resolver) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("is_admin").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, models.NewInternalError(err)
	}
	return user.IsAdmin, nil
}

// TicketRole resolves the actor into a lifecycle role relative to the
// ticket's gym and factory. Gym membership wins when the actor belongs to
// both tenants.
func (r *Resolver) TicketRole(ctx context.Context, userID uint, ticket *models.Ticket) (lifecycle.Role, error) {
	if gymRole, ok, err := r.GymRole(ctx, userID, ticket.GymID); err != nil {
		return "", err
	} else if ok {
		if gymRole == models.GymRoleOwner {
			return lifecycle.RoleGymOwner, nil
		}
		return lifecycle.RoleGymEmployee, nil
	}

	factoryRole, ok, err := r.FactoryRole(ctx, userID, ticket.FactoryID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", models.NewForbiddenError("not a member of this ticket's gym or factory")
	}
	switch factoryRole {
	case models.FactoryRoleOwner:
		return lifecycle.RoleFactoryOwner, nil
	case models.FactoryRoleApprover:
		return lifecycle.RoleFactoryApprover, nil
	default:
		return lifecycle.RoleFactoryEmployee, nil
	}
}

// CanManageGymMembers decides whether the actor may add, re-role or remove
// members of the gym. Gym owners qualify, as does an owner of the factory
// the gym belongs to, and master admins.
func (r *Resolver) CanManageGymMembers(ctx context.Context, userID, gymID uint) (Decision, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if admin {
		return Allow, nil
	}

	role, ok, err := r.GymRole(ctx, userID, gymID)
	if err != nil {
		return Decision{}, err
	}
	if ok && role == models.GymRoleOwner {
		return Allow, nil
	}

	var gym models.Gym
	if err := r.db.WithContext(ctx).Select("id", "factory_id").First(&gym, gymID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, models.NewNotFoundError("Gym", gymID)
		}
		return Decision{}, models.NewInternalError(err)
	}
	factoryRole, ok, err := r.FactoryRole(ctx, userID, gym.FactoryID)
	if err != nil {
		return Decision{}, err
	}
	if ok && factoryRole == models.FactoryRoleOwner {
		return Allow, nil
	}

	return Deny("gym owner role required"), nil
}

// CanViewGym decides whether the actor may read gym-scoped data (tickets,
// equipment, members): any approved gym member, any member of the owning
// factory, or a master admin.
func (r *Resolver) CanViewGym(ctx context.Context, userID, gymID uint) (Decision, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if admin {
		return Allow, nil
	}

	if _, ok, err := r.GymRole(ctx, userID, gymID); err != nil {
		return Decision{}, err
	} else if ok {
		return Allow, nil
	}

	var gym models.Gym
	if err := r.db.WithContext(ctx).Select("id", "factory_id").First(&gym, gymID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, models.NewNotFoundError("Gym", gymID)
		}
		return Decision{}, models.NewInternalError(err)
	}
	if _, ok, err := r.FactoryRole(ctx, userID, gym.FactoryID); err != nil {
		return Decision{}, err
	} else if ok {
		return Allow, nil
	}

	return Deny("gym or factory membership required"), nil
}

// CanSearchUsers decides whether the actor may use the privileged user
// search: any gym owner, any factory owner, or a master admin.
func (r *Resolver) CanSearchUsers(ctx context.Context, userID uint) (Decision, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if admin {
		return Allow, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GymMembership{}).
		Where("user_id = ? AND role = ? AND approved_at IS NOT NULL", userID, models.GymRoleOwner).
		Count(&count).Error; err != nil {
		return Decision{}, models.NewInternalError(err)
	}
	if count > 0 {
		return Allow, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&models.FactoryMembership{}).
		Where("user_id = ? AND role = ?", userID, models.FactoryRoleOwner).
		Count(&count).Error; err != nil {
		return Decision{}, models.NewInternalError(err)
	}
	if count > 0 {
		return Allow, nil
	}

	return Deny("owner role required for user search"), nil
}
