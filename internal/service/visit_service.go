package service

import (
	"context"
	"fmt"
	"time"

	"gymfix/internal/authz"
	"gymfix/internal/lifecycle"
	"gymfix/internal/models"
	"gymfix/internal/observability"
	"gymfix/internal/repository"
)

// VisitService handles the bilateral factory-visit workflow: either party may
// request a visit, only factory owners and approvers may decide it.
type VisitService struct {
	visitRepo      repository.VisitRepository
	ticketRepo     repository.TicketRepository
	membershipRepo repository.MembershipRepository
	resolver       *authz.Resolver
	notifications  *NotificationService
}

func NewVisitService(
	visitRepo repository.VisitRepository,
	ticketRepo repository.TicketRepository,
	membershipRepo repository.MembershipRepository,
	resolver *authz.Resolver,
	notifications *NotificationService,
) *VisitService {
	return &VisitService{
		visitRepo:      visitRepo,
		ticketRepo:     ticketRepo,
		membershipRepo: membershipRepo,
		resolver:       resolver,
		notifications:  notifications,
	}
}

// RequestVisit records the actor's side of a visit request and moves the
// ticket to factory_visit_requested. The same side asking twice is a
// conflict; the other side joining an existing pending request is recorded
// on the same row.
func (s *VisitService) RequestVisit(ctx context.Context, actorID, ticketID uint) (*models.VisitRequest, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolver.TicketRole(ctx, actorID, ticket)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	existing, err := s.visitRepo.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if !lifecycle.CanRequestVisit(role) {
			return nil, models.NewForbiddenError(
				fmt.Sprintf("role %s may not request a factory visit", role))
		}
		if existing.Outcome != models.VisitOutcomePending {
			return nil, models.NewConflictError("the visit request for this ticket has already been decided")
		}
		if role.GymSide() {
			if existing.GymRequestedAt != nil {
				return nil, models.NewConflictError("the gym has already requested a visit for this ticket")
			}
			existing.GymRequestedByUserID = &actorID
			existing.GymRequestedAt = &now
		} else {
			if existing.FactoryRequestedAt != nil {
				return nil, models.NewConflictError("the factory has already requested a visit for this ticket")
			}
			existing.FactoryRequestedByUserID = &actorID
			existing.FactoryRequestedAt = &now
		}
		if err := s.visitRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	res, err := lifecycle.Transition(ticket.Status, models.TicketStatusFactoryVisitRequested, role)
	if err != nil {
		return nil, err
	}

	vr := &models.VisitRequest{TicketID: ticketID}
	if role.GymSide() {
		vr.GymRequestedByUserID = &actorID
		vr.GymRequestedAt = &now
	} else {
		vr.FactoryRequestedByUserID = &actorID
		vr.FactoryRequestedAt = &now
	}
	if err := s.visitRepo.Create(ctx, vr); err != nil {
		return nil, err
	}

	ticket.Status = res.Next
	if err := s.ticketRepo.Update(ctx, ticket); err != nil {
		return nil, err
	}
	observability.RecordTransition(string(res.Next))

	if err := s.ticketRepo.AppendEvent(ctx, &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: actorID,
		Type:        res.Event,
	}); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Factory visit requested for ticket #%d", ticket.ID)
	s.notifyBothParties(ctx, ticket, actorID, models.NotificationVisitRequested, title, "")

	return vr, nil
}

// DecideVisit approves or rejects a pending visit request. Rejection requires
// a reason, which is relayed to the gym.
func (s *VisitService) DecideVisit(ctx context.Context, actorID, ticketID uint, approve bool, reason string) (*models.VisitRequest, error) {
	if !approve && reason == "" {
		return nil, models.NewValidationError("A rejection reason is required")
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	vr, err := s.visitRepo.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		return nil, models.NewNotFoundError("VisitRequest", ticketID)
	}
	if vr.Outcome != models.VisitOutcomePending {
		return nil, models.NewConflictError("this visit request has already been decided")
	}

	role, err := s.resolver.TicketRole(ctx, actorID, ticket)
	if err != nil {
		return nil, err
	}

	target := models.TicketStatusFactoryVisitApproved
	outcome := models.VisitOutcomeApproved
	nType := models.NotificationVisitDecided
	title := fmt.Sprintf("Visit approved for ticket #%d", ticket.ID)
	if !approve {
		target = models.TicketStatusRejected
		outcome = models.VisitOutcomeRejected
		title = fmt.Sprintf("Visit rejected for ticket #%d", ticket.ID)
	}

	res, err := lifecycle.Transition(ticket.Status, target, role)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	vr.Outcome = outcome
	vr.DecidedByUserID = &actorID
	vr.DecidedAt = &now
	vr.RejectionReason = reason
	if err := s.visitRepo.Update(ctx, vr); err != nil {
		return nil, err
	}

	ticket.Status = res.Next
	if err := s.ticketRepo.Update(ctx, ticket); err != nil {
		return nil, err
	}
	observability.RecordTransition(string(res.Next))

	if err := s.ticketRepo.AppendEvent(ctx, &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: actorID,
		Type:        res.Event,
	}); err != nil {
		return nil, err
	}

	s.notifyGymParty(ctx, ticket, actorID, nType, title, reason)

	return vr, nil
}

func (s *VisitService) GetVisit(ctx context.Context, actorID, ticketID uint) (*models.VisitRequest, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	decision, err := s.resolver.CanViewGym(ctx, actorID, ticket.GymID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	vr, err := s.visitRepo.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		return nil, models.NewNotFoundError("VisitRequest", ticketID)
	}
	return vr, nil
}

func (s *VisitService) notifyGymParty(ctx context.Context, ticket *models.Ticket, actorID uint, nType models.NotificationType, title, body string) {
	ids, err := s.membershipRepo.ListGymMemberIDs(ctx, ticket.GymID)
	if err != nil {
		return
	}
	s.notifications.NotifyMany(ctx, ids, actorID, nType, title, body, map[string]interface{}{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})
}

func (s *VisitService) notifyBothParties(ctx context.Context, ticket *models.Ticket, actorID uint, nType models.NotificationType, title, body string) {
	s.notifyGymParty(ctx, ticket, actorID, nType, title, body)
	ids, err := s.membershipRepo.ListFactoryMemberIDsByRole(ctx, ticket.FactoryID,
		models.FactoryRoleOwner, models.FactoryRoleApprover)
	if err != nil {
		return
	}
	s.notifications.NotifyMany(ctx, ids, actorID, nType, title, body, map[string]interface{}{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})
}
