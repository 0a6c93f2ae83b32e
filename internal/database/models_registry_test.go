package database

import (
	"testing"

	modelspkg "gymfix/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesLifecycleCore(t *testing.T) {
	var hasTicket, hasConfirmation, hasVisit, hasEvent bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Ticket:
			hasTicket = true
		case *modelspkg.TicketConfirmation:
			hasConfirmation = true
		case *modelspkg.VisitRequest:
			hasVisit = true
		case *modelspkg.TicketEvent:
			hasEvent = true
		}
	}
	require.True(t, hasTicket, "PersistentModels should include Ticket")
	require.True(t, hasConfirmation, "PersistentModels should include TicketConfirmation")
	require.True(t, hasVisit, "PersistentModels should include VisitRequest")
	require.True(t, hasEvent, "PersistentModels should include TicketEvent")
}
