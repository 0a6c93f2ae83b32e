package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymfix/internal/models"
	"gymfix/internal/repository"
)

func TestReportFault(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	t.Run("creates an open ticket from a scanned code", func(t *testing.T) {
		ticket, err := w.tickets.ReportFault(ctx, ReportFaultInput{
			ReporterID:  w.gymEmployee.ID,
			QRCode:      w.machine.QRCode,
			Description: "Display dead on power-up",
		})
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusOpen, ticket.Status)
		assert.Equal(t, models.TicketPriorityLow, ticket.Priority)
		assert.Equal(t, w.machine.ID, ticket.EquipmentID)
		assert.Equal(t, w.gym.ID, ticket.GymID)
		assert.Equal(t, w.factory.ID, ticket.FactoryID)
		assert.Equal(t, w.gymEmployee.ID, ticket.ReportedByUserID)

		events, err := w.tickets.ListEvents(ctx, w.gymEmployee.ID, ticket.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.TicketEventCreated, events[0].Type)
	})

	t.Run("notifies factory owner and approver but not plain employees", func(t *testing.T) {
		before := len(w.notificationsFor(t, w.factoryOwner.ID))
		w.reportFault(t)
		owner := w.notificationsFor(t, w.factoryOwner.ID)
		require.Len(t, owner, before+1)
		assert.Equal(t, models.NotificationTicketCreated, owner[len(owner)-1].Type)
		assert.NotEmpty(t, w.notificationsFor(t, w.factoryApprover.ID))
		assert.Empty(t, w.notificationsFor(t, w.factoryEmployee.ID))
	})

	t.Run("rejects unknown equipment codes", func(t *testing.T) {
		_, err := w.tickets.ReportFault(ctx, ReportFaultInput{
			ReporterID:  w.gymEmployee.ID,
			QRCode:      "EQ-NOSUCH99",
			Description: "ghost machine",
		})
		assertAppErrorCode(t, err, "NOT_FOUND")
	})

	t.Run("rejects malformed codes and missing description", func(t *testing.T) {
		_, err := w.tickets.ReportFault(ctx, ReportFaultInput{
			ReporterID: w.gymEmployee.ID, QRCode: "not-a-code", Description: "x",
		})
		assertValidationError(t, err)

		_, err = w.tickets.ReportFault(ctx, ReportFaultInput{
			ReporterID: w.gymEmployee.ID, QRCode: w.machine.QRCode,
		})
		assertValidationError(t, err)
	})

	t.Run("rejects reporters outside the gym", func(t *testing.T) {
		for _, reporter := range []uint{w.outsider.ID, w.factoryOwner.ID, w.pendingMember.ID} {
			_, err := w.tickets.ReportFault(ctx, ReportFaultInput{
				ReporterID: reporter, QRCode: w.machine.QRCode, Description: "nope",
			})
			assertForbidden(t, err)
		}
	})
}

func TestTicketVisibility(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	ticket := w.reportFault(t)

	for _, viewer := range []uint{w.gymEmployee.ID, w.gymOwner.ID, w.factoryEmployee.ID, w.admin.ID} {
		got, err := w.tickets.GetTicket(ctx, viewer, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, got.ID)
	}

	_, err := w.tickets.GetTicket(ctx, w.outsider.ID, ticket.ID)
	assertForbidden(t, err)
	_, err = w.tickets.GetTicket(ctx, w.pendingMember.ID, ticket.ID)
	assertForbidden(t, err)
}

func TestListGymTickets(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	w.reportFault(t)
	w.reportFault(t)

	rows, total, err := w.tickets.ListGymTickets(ctx, w.gymOwner.ID, repository.TicketFilter{GymID: w.gym.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = w.tickets.ListGymTickets(ctx, w.gymOwner.ID, repository.TicketFilter{
		GymID: w.gym.ID, Status: models.TicketStatusClosed,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, rows)

	_, _, err = w.tickets.ListGymTickets(ctx, w.outsider.ID, repository.TicketFilter{GymID: w.gym.ID})
	assertForbidden(t, err)
}

func TestListFactoryTickets(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	w.reportFault(t)

	rows, total, err := w.tickets.ListFactoryTickets(ctx, w.factoryEmployee.ID, repository.TicketFilter{FactoryID: w.factory.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, rows, 1)

	_, _, err = w.tickets.ListFactoryTickets(ctx, w.gymEmployee.ID, repository.TicketFilter{FactoryID: w.factory.ID})
	assertForbidden(t, err)
}

func TestTicketTransitions(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	t.Run("gym fix path to resolved", func(t *testing.T) {
		ticket := w.reportFault(t)

		got, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusGymFixInProgress, "")
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusGymFixInProgress, got.Status)

		got, err = w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusResolved, "replaced the belt")
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusResolved, got.Status)
		require.NotNil(t, got.ResolvedByUserID)
		assert.Equal(t, w.gymEmployee.ID, *got.ResolvedByUserID)
		assert.Equal(t, "replaced the belt", got.ResolutionNotes)

		events, err := w.tickets.ListEvents(ctx, w.gymOwner.ID, ticket.ID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, models.TicketEventStatusChange, events[1].Type)
		assert.Equal(t, models.TicketEventStatusChange, events[2].Type)
	})

	t.Run("factory triage then gym escalation round trip", func(t *testing.T) {
		ticket := w.reportFault(t)

		_, err := w.tickets.Transition(ctx, w.factoryEmployee.ID, ticket.ID, models.TicketStatusInReview, "")
		require.NoError(t, err)
		_, err = w.tickets.Transition(ctx, w.gymOwner.ID, ticket.ID, models.TicketStatusGymFixInProgress, "")
		require.NoError(t, err)
		_, err = w.tickets.Transition(ctx, w.gymOwner.ID, ticket.ID, models.TicketStatusAwaitingFactoryReview, "")
		require.NoError(t, err)
		got, err := w.tickets.Transition(ctx, w.factoryApprover.ID, ticket.ID, models.TicketStatusInReview, "")
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusInReview, got.Status)
	})

	t.Run("wrong party is forbidden", func(t *testing.T) {
		ticket := w.reportFault(t)
		_, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusInReview, "")
		assertForbidden(t, err)
		_, err = w.tickets.Transition(ctx, w.factoryEmployee.ID, ticket.ID, models.TicketStatusGymFixInProgress, "")
		assertForbidden(t, err)
	})

	t.Run("illegal edge is a conflict", func(t *testing.T) {
		ticket := w.reportFault(t)
		_, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusResolved, "")
		assertConflict(t, err)
	})

	t.Run("nobody can close directly", func(t *testing.T) {
		ticket := w.reportFault(t)
		_, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusGymFixInProgress, "")
		require.NoError(t, err)
		_, err = w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusResolved, "")
		require.NoError(t, err)
		for _, actor := range []uint{w.gymOwner.ID, w.factoryOwner.ID} {
			_, err = w.tickets.Transition(ctx, actor, ticket.ID, models.TicketStatusClosed, "")
			assertForbidden(t, err)
		}
	})
}

func TestTicketComments(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	ticket := w.reportFault(t)

	t.Run("gym comment pings the factory", func(t *testing.T) {
		before := len(w.notificationsFor(t, w.factoryOwner.ID))
		event, err := w.tickets.Comment(ctx, w.gymEmployee.ID, ticket.ID, "still rattling at 10km/h")
		require.NoError(t, err)
		assert.Equal(t, models.TicketEventComment, event.Type)
		after := w.notificationsFor(t, w.factoryOwner.ID)
		require.Len(t, after, before+1)
		assert.Equal(t, models.NotificationTicketComment, after[len(after)-1].Type)
	})

	t.Run("factory comment pings the gym", func(t *testing.T) {
		before := len(w.notificationsFor(t, w.gymEmployee.ID))
		_, err := w.tickets.Comment(ctx, w.factoryEmployee.ID, ticket.ID, "try recalibrating first")
		require.NoError(t, err)
		assert.Len(t, w.notificationsFor(t, w.gymEmployee.ID), before+1)
	})

	t.Run("empty body and outsiders are rejected", func(t *testing.T) {
		_, err := w.tickets.Comment(ctx, w.gymEmployee.ID, ticket.ID, "")
		assertValidationError(t, err)
		_, err = w.tickets.Comment(ctx, w.outsider.ID, ticket.ID, "drive-by")
		assertForbidden(t, err)
	})

	t.Run("terminal tickets accept no comments", func(t *testing.T) {
		closedTicket := w.reportFault(t)
		require.NoError(t, w.db.Model(&models.Ticket{}).
			Where("id = ?", closedTicket.ID).
			Update("status", models.TicketStatusRejected).Error)
		_, err := w.tickets.Comment(ctx, w.gymEmployee.ID, closedTicket.ID, "too late")
		assertConflict(t, err)
	})
}

func TestConfirmResolution(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	resolvedTicket := func(t *testing.T) *models.Ticket {
		ticket := w.reportFault(t)
		_, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusGymFixInProgress, "")
		require.NoError(t, err)
		got, err := w.tickets.Transition(ctx, w.gymEmployee.ID, ticket.ID, models.TicketStatusResolved, "tightened everything")
		require.NoError(t, err)
		return got
	}

	t.Run("second side closes the ticket", func(t *testing.T) {
		ticket := resolvedTicket(t)

		_, closed, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID,
			Notes: "verified on the floor", PhotoURL: "/media/photos/ticket-confirmations/a.jpg",
		})
		require.NoError(t, err)
		assert.False(t, closed)

		got, closed, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.factoryEmployee.ID, TicketID: ticket.ID,
			Notes: "remote diagnostics clean", PhotoURL: "/media/photos/ticket-confirmations/b.jpg",
		})
		require.NoError(t, err)
		assert.True(t, closed)
		assert.Equal(t, models.TicketStatusClosed, got.Status)
		assert.NotNil(t, got.ClosedAt)

		confirmations, err := w.tickets.ListConfirmations(ctx, w.gymOwner.ID, ticket.ID)
		require.NoError(t, err)
		assert.Len(t, confirmations, 2)
	})

	t.Run("same side cannot confirm twice", func(t *testing.T) {
		ticket := resolvedTicket(t)
		_, _, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID, Notes: "ok", PhotoURL: "/p/a.jpg",
		})
		require.NoError(t, err)
		_, _, err = w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymEmployee.ID, TicketID: ticket.ID, Notes: "me too", PhotoURL: "/p/b.jpg",
		})
		assertConflict(t, err)
	})

	t.Run("only resolved tickets can be confirmed", func(t *testing.T) {
		ticket := w.reportFault(t)
		_, _, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID, Notes: "premature", PhotoURL: "/p/c.jpg",
		})
		assertConflict(t, err)
	})

	t.Run("notes and photo are mandatory", func(t *testing.T) {
		ticket := resolvedTicket(t)
		_, _, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID, PhotoURL: "/p/d.jpg",
		})
		assertValidationError(t, err)
		_, _, err = w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID, Notes: "no picture",
		})
		assertValidationError(t, err)
	})

	t.Run("closure notifies both parties", func(t *testing.T) {
		ticket := resolvedTicket(t)
		gymBefore := len(w.notificationsFor(t, w.gymEmployee.ID))
		factoryBefore := len(w.notificationsFor(t, w.factoryApprover.ID))

		_, _, err := w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.gymOwner.ID, TicketID: ticket.ID, Notes: "done", PhotoURL: "/p/e.jpg",
		})
		require.NoError(t, err)
		_, _, err = w.tickets.ConfirmResolution(ctx, ConfirmResolutionInput{
			ActorID: w.factoryOwner.ID, TicketID: ticket.ID, Notes: "done", PhotoURL: "/p/f.jpg",
		})
		require.NoError(t, err)

		gymAfter := w.notificationsFor(t, w.gymEmployee.ID)
		require.Greater(t, len(gymAfter), gymBefore)
		assert.Equal(t, models.NotificationTicketClosed, gymAfter[len(gymAfter)-1].Type)
		factoryAfter := w.notificationsFor(t, w.factoryApprover.ID)
		require.Greater(t, len(factoryAfter), factoryBefore)
		assert.Equal(t, models.NotificationTicketClosed, factoryAfter[len(factoryAfter)-1].Type)
	})
}
