package server

import (
	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateFactory handles POST /api/factories (admin only)
// @Summary Create a factory
// @Tags factories
// @Accept json
// @Produce json
// @Param request body object{name=string,owner_id=integer} true "Factory details"
// @Success 201 {object} models.Factory
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /factories [post]
func (s *Server) CreateFactory(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)

	var req struct {
		Name    string `json:"name"`
		OwnerID uint   `json:"owner_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	factory, err := s.tenantService.CreateFactory(c.Context(), actorID, req.Name, req.OwnerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(factory)
}

// CreateGym handles POST /api/factories/:id/gyms
func (s *Server) CreateGym(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	factoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		OwnerID uint   `json:"owner_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	gym, err := s.tenantService.CreateGym(c.Context(), actorID, factoryID, req.Name, req.Address, req.OwnerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(gym)
}

// ListMyGyms handles GET /api/gyms
func (s *Server) ListMyGyms(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	gyms, err := s.tenantService.ListMyGyms(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(gyms)
}

// GetGym handles GET /api/gyms/:id
func (s *Server) GetGym(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	gym, err := s.tenantService.GetGym(c.Context(), actorID, gymID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(gym)
}

// ListFactoryGyms handles GET /api/factories/:id/gyms
func (s *Server) ListFactoryGyms(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	factoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	gyms, err := s.tenantService.ListFactoryGyms(c.Context(), actorID, factoryID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(gyms)
}
