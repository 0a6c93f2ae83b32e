package server

import (
	"gymfix/internal/models"
	"gymfix/internal/repository"
	"gymfix/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReportFault handles POST /api/tickets
// @Summary File a fault report
// @Description Create a maintenance ticket for a piece of equipment identified by its QR code
// @Tags tickets
// @Accept json
// @Produce json
// @Param request body object{qr_code=string,description=string,priority=string,photo_url=string} true "Fault report"
// @Success 201 {object} models.Ticket
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /tickets [post]
func (s *Server) ReportFault(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)

	var req struct {
		QRCode      string `json:"qr_code"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ticket, err := s.ticketService.ReportFault(c.Context(), service.ReportFaultInput{
		ReporterID:  actorID,
		QRCode:      req.QRCode,
		Description: req.Description,
		Priority:    models.TicketPriority(req.Priority),
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// GetTicket handles GET /api/tickets/:id
func (s *Server) GetTicket(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ticket, err := s.ticketService.GetTicket(c.Context(), actorID, ticketID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(ticket)
}

// ListGymTickets handles GET /api/gyms/:id/tickets
func (s *Server) ListGymTickets(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)
	tickets, total, err := s.ticketService.ListGymTickets(c.Context(), actorID, repository.TicketFilter{
		GymID:    gymID,
		Status:   models.TicketStatus(c.Query("status")),
		Priority: models.TicketPriority(c.Query("priority")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondPage(c, page, tickets, len(tickets), total)
}

// ListFactoryTickets handles GET /api/factories/:id/tickets
func (s *Server) ListFactoryTickets(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	factoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)
	tickets, total, err := s.ticketService.ListFactoryTickets(c.Context(), actorID, repository.TicketFilter{
		FactoryID: factoryID,
		Status:    models.TicketStatus(c.Query("status")),
		Priority:  models.TicketPriority(c.Query("priority")),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondPage(c, page, tickets, len(tickets), total)
}

// TransitionTicket handles POST /api/tickets/:id/transition
// @Summary Move a ticket through its lifecycle
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path int true "Ticket ID"
// @Param request body object{status=string,notes=string} true "Target status"
// @Success 200 {object} models.Ticket
// @Failure 403 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /tickets/{id}/transition [post]
func (s *Server) TransitionTicket(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ticket, err := s.ticketService.Transition(c.Context(), actorID, ticketID, models.TicketStatus(req.Status), req.Notes)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(ticket)
}

// CommentTicket handles POST /api/tickets/:id/comments
func (s *Server) CommentTicket(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	event, err := s.ticketService.Comment(c.Context(), actorID, ticketID, req.Body)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// ListTicketEvents handles GET /api/tickets/:id/events
func (s *Server) ListTicketEvents(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	events, err := s.ticketService.ListEvents(c.Context(), actorID, ticketID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(events)
}

// ConfirmResolution handles POST /api/tickets/:id/confirmations
// @Summary Confirm a resolved ticket
// @Description Record one party's confirmation; the ticket closes when both parties have confirmed
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path int true "Ticket ID"
// @Param request body object{notes=string,photo_url=string} true "Confirmation evidence"
// @Success 200 {object} object{ticket=models.Ticket,closed=boolean}
// @Failure 409 {object} object{error=string}
// @Router /tickets/{id}/confirmations [post]
func (s *Server) ConfirmResolution(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Notes    string `json:"notes"`
		PhotoURL string `json:"photo_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ticket, closed, err := s.ticketService.ConfirmResolution(c.Context(), service.ConfirmResolutionInput{
		ActorID:  actorID,
		TicketID: ticketID,
		Notes:    req.Notes,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"ticket": ticket, "closed": closed})
}

// ListConfirmations handles GET /api/tickets/:id/confirmations
func (s *Server) ListConfirmations(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	ticketID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	confirmations, err := s.ticketService.ListConfirmations(c.Context(), actorID, ticketID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(confirmations)
}
