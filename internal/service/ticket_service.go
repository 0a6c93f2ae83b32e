package service

import (
	"context"
	"encoding/json"
	"fmt"

	"gymfix/internal/authz"
	"gymfix/internal/lifecycle"
	"gymfix/internal/models"
	"gymfix/internal/observability"
	"gymfix/internal/repository"
	"gymfix/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

// TicketService owns the fault-report workflow: creation from a QR scan,
// lifecycle transitions, comments, and the audit trail.
type TicketService struct {
	ticketRepo     repository.TicketRepository
	equipmentRepo  repository.EquipmentRepository
	membershipRepo repository.MembershipRepository
	confirmRepo    repository.ConfirmationRepository
	resolver       *authz.Resolver
	notifications  *NotificationService
}

func NewTicketService(
	ticketRepo repository.TicketRepository,
	equipmentRepo repository.EquipmentRepository,
	membershipRepo repository.MembershipRepository,
	confirmRepo repository.ConfirmationRepository,
	resolver *authz.Resolver,
	notifications *NotificationService,
) *TicketService {
	return &TicketService{
		ticketRepo:     ticketRepo,
		equipmentRepo:  equipmentRepo,
		membershipRepo: membershipRepo,
		confirmRepo:    confirmRepo,
		resolver:       resolver,
		notifications:  notifications,
	}
}

// ReportFaultInput carries a new fault report. QRCode identifies the machine
// the reporter scanned on the floor.
type ReportFaultInput struct {
	ReporterID  uint
	QRCode      string
	Description string
	Priority    models.TicketPriority
	PhotoURL    string
}

func (s *TicketService) ReportFault(ctx context.Context, in ReportFaultInput) (*models.Ticket, error) {
	span, ctx := observability.NewSpan(ctx, "TicketService.ReportFault")
	defer span.End()

	if err := validation.ValidateQRCode(in.QRCode); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Description == "" {
		return nil, models.NewValidationError("Description is required")
	}
	if in.Priority == "" {
		in.Priority = models.TicketPriorityLow
	}
	if !models.ValidPriority(in.Priority) {
		return nil, models.NewValidationError("Priority must be low, medium, or high")
	}

	eq, err := s.equipmentRepo.GetByQRCode(ctx, in.QRCode)
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.resolver.GymRole(ctx, in.ReporterID, eq.GymID); err != nil {
		return nil, err
	} else if !ok {
		return nil, models.NewForbiddenError("only gym staff may report faults for this gym's equipment")
	}

	ticket := &models.Ticket{
		EquipmentID:      eq.ID,
		GymID:            eq.GymID,
		FactoryID:        eq.FactoryID,
		Status:           models.TicketStatusOpen,
		Priority:         in.Priority,
		Description:      in.Description,
		PhotoURL:         in.PhotoURL,
		ReportedByUserID: in.ReporterID,
	}
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(
		attribute.Int("ticket.id", int(ticket.ID)),
		attribute.String("ticket.priority", string(ticket.Priority)),
	)

	if err := s.ticketRepo.AppendEvent(ctx, &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: in.ReporterID,
		Type:        models.TicketEventCreated,
	}); err != nil {
		return nil, err
	}

	s.notifyFactory(ctx, ticket, in.ReporterID, models.NotificationTicketCreated,
		fmt.Sprintf("New fault report for %s", eq.Name),
		in.Description)

	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, actorID, ticketID uint) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actorID, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListGymTickets lists the gym's tickets for any caller allowed to view the gym.
func (s *TicketService) ListGymTickets(ctx context.Context, actorID uint, filter repository.TicketFilter) ([]models.Ticket, int64, error) {
	decision, err := s.resolver.CanViewGym(ctx, actorID, filter.GymID)
	if err != nil {
		return nil, 0, err
	}
	if err := decision.Err(); err != nil {
		return nil, 0, err
	}
	return s.ticketRepo.List(ctx, filter)
}

// ListFactoryTickets lists tickets across all of the factory's gyms.
func (s *TicketService) ListFactoryTickets(ctx context.Context, actorID uint, filter repository.TicketFilter) ([]models.Ticket, int64, error) {
	if _, ok, err := s.resolver.FactoryRole(ctx, actorID, filter.FactoryID); err != nil {
		return nil, 0, err
	} else if !ok {
		admin, err := s.resolver.IsAdmin(ctx, actorID)
		if err != nil {
			return nil, 0, err
		}
		if !admin {
			return nil, 0, models.NewForbiddenError("factory membership required")
		}
	}
	return s.ticketRepo.List(ctx, filter)
}

// Transition drives the ticket to the target status on behalf of the actor.
// All authorization and edge legality is delegated to the lifecycle table.
func (s *TicketService) Transition(ctx context.Context, actorID, ticketID uint, target models.TicketStatus, notes string) (*models.Ticket, error) {
	span, ctx := observability.NewSpan(ctx, "TicketService.Transition")
	defer span.End()
	span.AddAttributes(
		attribute.Int("ticket.id", int(ticketID)),
		attribute.String("ticket.target_status", string(target)),
	)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolver.TicketRole(ctx, actorID, ticket)
	if err != nil {
		return nil, err
	}

	res, err := lifecycle.Transition(ticket.Status, target, role)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	prev := ticket.Status
	ticket.Status = res.Next
	if res.Next == models.TicketStatusResolved {
		ticket.ResolvedByUserID = &actorID
		if notes != "" {
			ticket.ResolutionNotes = notes
		}
	}
	if err := s.ticketRepo.Update(ctx, ticket); err != nil {
		return nil, err
	}
	observability.RecordTransition(string(res.Next))

	payload, _ := json.Marshal(map[string]string{"from": string(prev), "to": string(res.Next)})
	if err := s.ticketRepo.AppendEvent(ctx, &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: actorID,
		Type:        res.Event,
		Payload:     datatypes.JSON(payload),
	}); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Ticket #%d is now %s", ticket.ID, res.Next)
	if res.NotifyGym {
		s.notifyGym(ctx, ticket, actorID, models.NotificationStatusChanged, title, notes)
	}
	if res.NotifyFactory {
		s.notifyFactory(ctx, ticket, actorID, models.NotificationStatusChanged, title, notes)
	}

	return ticket, nil
}

// Comment appends a discussion entry to the ticket's trail and pings the
// other party. Terminal tickets accept no further comments.
func (s *TicketService) Comment(ctx context.Context, actorID, ticketID uint, body string) (*models.TicketEvent, error) {
	if body == "" {
		return nil, models.NewValidationError("Comment body is required")
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return nil, models.NewConflictError("ticket is closed for comments")
	}

	role, err := s.resolver.TicketRole(ctx, actorID, ticket)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"body": body})
	event := &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: actorID,
		Type:        models.TicketEventComment,
		Payload:     datatypes.JSON(payload),
	}
	if err := s.ticketRepo.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("New comment on ticket #%d", ticket.ID)
	if role.GymSide() {
		s.notifyFactory(ctx, ticket, actorID, models.NotificationTicketComment, title, body)
	} else {
		s.notifyGym(ctx, ticket, actorID, models.NotificationTicketComment, title, body)
	}
	return event, nil
}

func (s *TicketService) ListEvents(ctx context.Context, actorID, ticketID uint) ([]models.TicketEvent, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actorID, ticket); err != nil {
		return nil, err
	}
	return s.ticketRepo.ListEvents(ctx, ticketID)
}

// ConfirmResolutionInput carries one party's closure attestation. Notes and
// photo evidence are both mandatory.
type ConfirmResolutionInput struct {
	ActorID  uint
	TicketID uint
	Notes    string
	PhotoURL string
}

// ConfirmResolution records the actor's side of the dual confirmation. The
// ticket closes inside the same transaction that stores the second side.
func (s *TicketService) ConfirmResolution(ctx context.Context, in ConfirmResolutionInput) (*models.Ticket, bool, error) {
	if in.Notes == "" {
		return nil, false, models.NewValidationError("Confirmation notes are required")
	}
	if in.PhotoURL == "" {
		return nil, false, models.NewValidationError("Confirmation photo is required")
	}

	ticket, err := s.ticketRepo.GetByID(ctx, in.TicketID)
	if err != nil {
		return nil, false, err
	}

	role, err := s.resolver.TicketRole(ctx, in.ActorID, ticket)
	if err != nil {
		return nil, false, err
	}
	side := models.ConfirmationSideGym
	if role.FactorySide() {
		side = models.ConfirmationSideFactory
	}

	ticket, closed, err := s.confirmRepo.Submit(ctx, &models.TicketConfirmation{
		TicketID:        in.TicketID,
		Side:            side,
		ConfirmerUserID: in.ActorID,
		Notes:           in.Notes,
		PhotoURL:        in.PhotoURL,
	})
	if err != nil {
		return nil, false, err
	}

	if closed {
		observability.RecordTransition(string(models.TicketStatusClosed))
		title := fmt.Sprintf("Ticket #%d closed", ticket.ID)
		s.notifyGym(ctx, ticket, 0, models.NotificationTicketClosed, title, "")
		s.notifyFactory(ctx, ticket, 0, models.NotificationTicketClosed, title, "")
	} else {
		title := fmt.Sprintf("Ticket #%d confirmed by the %s side", ticket.ID, side)
		if side == models.ConfirmationSideGym {
			s.notifyFactory(ctx, ticket, in.ActorID, models.NotificationConfirmationIn, title, in.Notes)
		} else {
			s.notifyGym(ctx, ticket, in.ActorID, models.NotificationConfirmationIn, title, in.Notes)
		}
	}
	return ticket, closed, nil
}

func (s *TicketService) ListConfirmations(ctx context.Context, actorID, ticketID uint) ([]models.TicketConfirmation, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actorID, ticket); err != nil {
		return nil, err
	}
	return s.confirmRepo.ListByTicket(ctx, ticketID)
}

func (s *TicketService) canView(ctx context.Context, actorID uint, ticket *models.Ticket) error {
	decision, err := s.resolver.CanViewGym(ctx, actorID, ticket.GymID)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (s *TicketService) ticketData(ticket *models.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"ticket_id": ticket.ID,
		"gym_id":    ticket.GymID,
		"status":    ticket.Status,
	}
}

func (s *TicketService) notifyGym(ctx context.Context, ticket *models.Ticket, actorID uint, nType models.NotificationType, title, body string) {
	ids, err := s.membershipRepo.ListGymMemberIDs(ctx, ticket.GymID)
	if err != nil {
		return
	}
	s.notifications.NotifyMany(ctx, ids, actorID, nType, title, body, s.ticketData(ticket))
}

func (s *TicketService) notifyFactory(ctx context.Context, ticket *models.Ticket, actorID uint, nType models.NotificationType, title, body string) {
	ids, err := s.membershipRepo.ListFactoryMemberIDsByRole(ctx, ticket.FactoryID,
		models.FactoryRoleOwner, models.FactoryRoleApprover)
	if err != nil {
		return
	}
	s.notifications.NotifyMany(ctx, ids, actorID, nType, title, body, s.ticketData(ticket))
}
