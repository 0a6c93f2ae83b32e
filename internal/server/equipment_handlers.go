package server

import (
	"strings"

	"gymfix/internal/models"
	"gymfix/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateEquipment handles POST /api/equipment
// @Summary Register a piece of equipment
// @Tags equipment
// @Accept json
// @Produce json
// @Param request body object{factory_id=integer,gym_id=integer,name=string,model=string,qr_code=string} true "Equipment details"
// @Success 201 {object} models.Equipment
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /equipment [post]
func (s *Server) CreateEquipment(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)

	var req struct {
		FactoryID uint   `json:"factory_id"`
		GymID     uint   `json:"gym_id"`
		Name      string `json:"name"`
		Model     string `json:"model"`
		QRCode    string `json:"qr_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	eq, err := s.equipmentService.CreateEquipment(c.Context(), service.CreateEquipmentInput{
		ActorID:   actorID,
		FactoryID: req.FactoryID,
		GymID:     req.GymID,
		Name:      req.Name,
		Model:     req.Model,
		QRCode:    req.QRCode,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(eq)
}

// ScanEquipment handles GET /api/equipment/scan/:code. This is the QR-scan
// entry point staff hit before filing a fault report.
func (s *Server) ScanEquipment(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)

	code := strings.TrimSpace(c.Params("code"))
	eq, err := s.equipmentService.Scan(c.Context(), actorID, code)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(eq)
}

// ListGymEquipment handles GET /api/gyms/:id/equipment
func (s *Server) ListGymEquipment(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	items, err := s.equipmentService.ListGymEquipment(c.Context(), actorID, gymID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(items)
}

// ReassignEquipment handles POST /api/equipment/:id/reassign
func (s *Server) ReassignEquipment(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	equipmentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		GymID uint `json:"gym_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	eq, err := s.equipmentService.ReassignGym(c.Context(), actorID, equipmentID, req.GymID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(eq)
}
