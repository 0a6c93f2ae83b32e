// Package lifecycle is the single authority for ticket status transitions.
// Every status mutation in the application goes through Transition; handlers
// and services never write tickets.status on their own.
package lifecycle

import (
	"fmt"

	"gymfix/internal/models"
)

// Role identifies the acting party of a transition, already resolved against
// the ticket's gym and factory.
type Role string

const (
	RoleGymOwner        Role = "gym_owner"
	RoleGymEmployee     Role = "gym_employee"
	RoleFactoryOwner    Role = "factory_owner"
	RoleFactoryApprover Role = "factory_approver"
	RoleFactoryEmployee Role = "factory_employee"
	// RoleSystem is reserved for internally driven transitions, i.e. the
	// closure write issued by the dual-confirmation transaction.
	RoleSystem Role = "system"
)

// GymSide reports whether the role belongs to the gym party.
func (r Role) GymSide() bool {
	return r == RoleGymOwner || r == RoleGymEmployee
}

// FactorySide reports whether the role belongs to the factory party.
func (r Role) FactorySide() bool {
	return r == RoleFactoryOwner || r == RoleFactoryApprover || r == RoleFactoryEmployee
}

// Result describes the side effects a legal transition requires. The caller
// must append the event and emit notifications in the same unit of work as
// the status write.
type Result struct {
	Next      models.TicketStatus
	Event     models.TicketEventType
	NotifyGym bool
	NotifyFactory bool
}

type rule struct {
	from    models.TicketStatus
	to      models.TicketStatus
	allowed func(Role) bool
	event   models.TicketEventType
	notifyGym     bool
	notifyFactory bool
}

func anyGym(r Role) bool     { return r.GymSide() }
func anyFactory(r Role) bool { return r.FactorySide() }
func visitRequester(r Role) bool {
	return r == RoleGymOwner || r.FactorySide()
}
func visitApprover(r Role) bool {
	return r == RoleFactoryOwner || r == RoleFactoryApprover
}
func systemOnly(r Role) bool { return r == RoleSystem }

// CanRequestVisit reports whether the role may record a visit request. The
// same rule gates both opening a request and joining a pending one.
func CanRequestVisit(r Role) bool { return visitRequester(r) }

var rules = []rule{
	{from: models.TicketStatusOpen, to: models.TicketStatusInReview, allowed: anyFactory,
		event: models.TicketEventStatusChange, notifyGym: true},
	{from: models.TicketStatusOpen, to: models.TicketStatusGymFixInProgress, allowed: anyGym,
		event: models.TicketEventStatusChange, notifyFactory: true},
	{from: models.TicketStatusInReview, to: models.TicketStatusGymFixInProgress, allowed: anyGym,
		event: models.TicketEventStatusChange, notifyFactory: true},
	{from: models.TicketStatusGymFixInProgress, to: models.TicketStatusResolved, allowed: anyGym,
		event: models.TicketEventStatusChange, notifyFactory: true},
	{from: models.TicketStatusGymFixInProgress, to: models.TicketStatusAwaitingFactoryReview, allowed: anyGym,
		event: models.TicketEventStatusChange, notifyFactory: true},
	{from: models.TicketStatusAwaitingFactoryReview, to: models.TicketStatusInReview, allowed: anyFactory,
		event: models.TicketEventStatusChange, notifyGym: true},

	// Creating a visit request moves the ticket here, whichever side asked.
	{from: models.TicketStatusOpen, to: models.TicketStatusFactoryVisitRequested, allowed: visitRequester,
		event: models.TicketEventVisitRequested, notifyGym: true, notifyFactory: true},
	{from: models.TicketStatusInReview, to: models.TicketStatusFactoryVisitRequested, allowed: visitRequester,
		event: models.TicketEventVisitRequested, notifyGym: true, notifyFactory: true},
	{from: models.TicketStatusGymFixInProgress, to: models.TicketStatusFactoryVisitRequested, allowed: visitRequester,
		event: models.TicketEventVisitRequested, notifyGym: true, notifyFactory: true},
	{from: models.TicketStatusAwaitingFactoryReview, to: models.TicketStatusFactoryVisitRequested, allowed: visitRequester,
		event: models.TicketEventVisitRequested, notifyGym: true, notifyFactory: true},
	{from: models.TicketStatusResolved, to: models.TicketStatusFactoryVisitRequested, allowed: visitRequester,
		event: models.TicketEventVisitRequested, notifyGym: true, notifyFactory: true},

	{from: models.TicketStatusFactoryVisitRequested, to: models.TicketStatusFactoryVisitApproved, allowed: visitApprover,
		event: models.TicketEventVisitApproved, notifyGym: true},
	{from: models.TicketStatusFactoryVisitRequested, to: models.TicketStatusRejected, allowed: visitApprover,
		event: models.TicketEventVisitRejected, notifyGym: true},
	{from: models.TicketStatusFactoryVisitApproved, to: models.TicketStatusResolved, allowed: anyFactory,
		event: models.TicketEventStatusChange, notifyGym: true},

	// Closure is only reachable through the dual-confirmation transaction.
	{from: models.TicketStatusResolved, to: models.TicketStatusClosed, allowed: systemOnly,
		event: models.TicketEventClosed, notifyGym: true, notifyFactory: true},
}

// Transition validates a requested status change for the given actor role and
// returns the required side effects. It returns a conflict error for terminal
// or unknown edges and a forbidden error when the edge exists but the role
// may not drive it.
func Transition(current, target models.TicketStatus, role Role) (Result, error) {
	if current.Terminal() {
		return Result{}, models.NewConflictError(
			fmt.Sprintf("ticket is %s; no further transitions allowed", current))
	}

	var edge *rule
	for i := range rules {
		if rules[i].from == current && rules[i].to == target {
			edge = &rules[i]
			break
		}
	}
	if edge == nil {
		return Result{}, models.NewConflictError(
			fmt.Sprintf("cannot transition ticket from %s to %s", current, target))
	}

	if !edge.allowed(role) {
		return Result{}, models.NewForbiddenError(
			fmt.Sprintf("role %s may not transition ticket from %s to %s", role, current, target))
	}

	return Result{
		Next:          target,
		Event:         edge.event,
		NotifyGym:     edge.notifyGym,
		NotifyFactory: edge.notifyFactory,
	}, nil
}
