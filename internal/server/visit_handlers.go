package server

import (
	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RequestVisit handles POST /api/tickets/:id/visit. Either party may open the
// request; the other party's request joins the same row.
func (s *Server) RequestVisit(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	visit, err := s.visitService.RequestVisit(c.Context(), actorID, ticketID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(visit)
}

// GetVisit handles GET /api/tickets/:id/visit
func (s *Server) GetVisit(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	visit, err := s.visitService.GetVisit(c.Context(), actorID, ticketID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(visit)
}

// ApproveVisit handles POST /api/tickets/:id/visit/approve
func (s *Server) ApproveVisit(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	visit, err := s.visitService.DecideVisit(c.Context(), actorID, ticketID, true, "")
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(visit)
}

// RejectVisit handles POST /api/tickets/:id/visit/reject. A reason is
// mandatory so the gym learns why the factory declined.
func (s *Server) RejectVisit(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	visit, err := s.visitService.DecideVisit(c.Context(), actorID, ticketID, false, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(visit)
}
