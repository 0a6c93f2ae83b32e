package lifecycle

import (
	"testing"

	"gymfix/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionLegalEdges(t *testing.T) {
	tests := []struct {
		name    string
		from    models.TicketStatus
		to      models.TicketStatus
		role    Role
		event   models.TicketEventType
	}{
		{"factory triages open ticket", models.TicketStatusOpen, models.TicketStatusInReview, RoleFactoryEmployee, models.TicketEventStatusChange},
		{"gym starts internal fix", models.TicketStatusOpen, models.TicketStatusGymFixInProgress, RoleGymEmployee, models.TicketEventStatusChange},
		{"gym resolves own fix", models.TicketStatusGymFixInProgress, models.TicketStatusResolved, RoleGymOwner, models.TicketEventStatusChange},
		{"gym escalates to factory", models.TicketStatusGymFixInProgress, models.TicketStatusAwaitingFactoryReview, RoleGymEmployee, models.TicketEventStatusChange},
		{"gym owner requests visit", models.TicketStatusInReview, models.TicketStatusFactoryVisitRequested, RoleGymOwner, models.TicketEventVisitRequested},
		{"factory employee requests visit", models.TicketStatusAwaitingFactoryReview, models.TicketStatusFactoryVisitRequested, RoleFactoryEmployee, models.TicketEventVisitRequested},
		{"approver approves visit", models.TicketStatusFactoryVisitRequested, models.TicketStatusFactoryVisitApproved, RoleFactoryApprover, models.TicketEventVisitApproved},
		{"owner rejects visit", models.TicketStatusFactoryVisitRequested, models.TicketStatusRejected, RoleFactoryOwner, models.TicketEventVisitRejected},
		{"factory resolves after visit", models.TicketStatusFactoryVisitApproved, models.TicketStatusResolved, RoleFactoryEmployee, models.TicketEventStatusChange},
		{"system closes resolved ticket", models.TicketStatusResolved, models.TicketStatusClosed, RoleSystem, models.TicketEventClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transition(tt.from, tt.to, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.to, res.Next)
			assert.Equal(t, tt.event, res.Event)
		})
	}
}

func TestTransitionFromTerminalStateConflicts(t *testing.T) {
	for _, from := range []models.TicketStatus{models.TicketStatusClosed, models.TicketStatusRejected} {
		_, err := Transition(from, models.TicketStatusInReview, RoleFactoryOwner)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)
	}
}

func TestTransitionUnknownEdgeConflicts(t *testing.T) {
	_, err := Transition(models.TicketStatusOpen, models.TicketStatusClosed, RoleGymOwner)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestTransitionRoleDenied(t *testing.T) {
	tests := []struct {
		name string
		from models.TicketStatus
		to   models.TicketStatus
		role Role
	}{
		{"gym employee cannot request visit", models.TicketStatusOpen, models.TicketStatusFactoryVisitRequested, RoleGymEmployee},
		{"factory employee cannot approve visit", models.TicketStatusFactoryVisitRequested, models.TicketStatusFactoryVisitApproved, RoleFactoryEmployee},
		{"gym owner cannot reject visit", models.TicketStatusFactoryVisitRequested, models.TicketStatusRejected, RoleGymOwner},
		{"factory cannot start gym fix", models.TicketStatusOpen, models.TicketStatusGymFixInProgress, RoleFactoryEmployee},
		{"nobody but system closes", models.TicketStatusResolved, models.TicketStatusClosed, RoleFactoryOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transition(tt.from, tt.to, tt.role)
			require.Error(t, err)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "FORBIDDEN", appErr.Code)
		})
	}
}

func TestVisitRequestNotifiesBothParties(t *testing.T) {
	res, err := Transition(models.TicketStatusOpen, models.TicketStatusFactoryVisitRequested, RoleGymOwner)
	require.NoError(t, err)
	assert.True(t, res.NotifyGym)
	assert.True(t, res.NotifyFactory)
}
