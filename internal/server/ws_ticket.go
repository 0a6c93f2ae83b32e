package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// wsTicketTTL bounds how long an issued ticket stays redeemable in Redis.
	wsTicketTTL = 30 * time.Second
	// consumedTicketGrace is how long a redeemed ticket stays valid in-process
	// for the remaining passes of the websocket handshake.
	consumedTicketGrace = 15 * time.Second
)

type consumedTicketEntry struct {
	userID    uint
	consumeAt time.Time
}

// IssueWSTicket handles POST /api/ws/ticket. It mints a short-lived single-use
// ticket the browser exchanges on the websocket URL, since browsers cannot set
// an Authorization header on the upgrade request.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("websocket tickets require redis")))
	}

	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, fmt.Sprintf("%d", userID), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

func (s *Server) lookupConsumedTicket(ticket string) (uint, bool) {
	s.consumedTicketsMu.Lock()
	defer s.consumedTicketsMu.Unlock()

	entry, ok := s.consumedTickets[ticket]
	if !ok {
		return 0, false
	}
	if time.Since(entry.consumeAt) > consumedTicketGrace {
		delete(s.consumedTickets, ticket)
		return 0, false
	}
	return entry.userID, true
}

func (s *Server) cacheConsumedTicket(ticket string, userID uint) {
	s.consumedTicketsMu.Lock()
	defer s.consumedTicketsMu.Unlock()

	if s.consumedTickets == nil {
		s.consumedTickets = make(map[string]consumedTicketEntry)
	}
	// Opportunistically evict stale entries while we hold the lock.
	now := time.Now()
	for t, e := range s.consumedTickets {
		if now.Sub(e.consumeAt) > consumedTicketGrace {
			delete(s.consumedTickets, t)
		}
	}
	s.consumedTickets[ticket] = consumedTicketEntry{userID: userID, consumeAt: now}
}

// consumeWSTicket drops a redeemed ticket from the in-process cache once the
// websocket connection is established. Accepts the raw Locals value, which may
// be nil on JWT-authenticated requests.
func (s *Server) consumeWSTicket(ctx context.Context, ticketVal any) {
	ticket, ok := ticketVal.(string)
	if !ok || ticket == "" {
		return
	}

	s.consumedTicketsMu.Lock()
	delete(s.consumedTickets, ticket)
	s.consumedTicketsMu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, fmt.Sprintf("ws_ticket:%s", ticket)).Err(); err != nil {
			log.Printf("failed to delete ws ticket: %v", err)
		}
	}
}
