package server

import (
	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
)

// gymMemberView decorates a membership with live presence so rosters can
// show who is reachable right now.
type gymMemberView struct {
	models.GymMembership
	Online bool `json:"online"`
}

// ListGymMembers handles GET /api/gyms/:id/members
func (s *Server) ListGymMembers(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.memberService.ListGymMembers(c.Context(), actorID, gymID)
	if err != nil {
		return respondServiceError(c, err)
	}

	var online map[uint]struct{}
	if s.hub != nil {
		online = s.hub.OnlineSet(c.Context())
	}
	views := make([]gymMemberView, 0, len(members))
	for _, m := range members {
		_, isOnline := online[m.UserID]
		views = append(views, gymMemberView{GymMembership: m, Online: isOnline})
	}

	return c.JSON(views)
}

// addMemberRequest identifies the new member by id or, when the caller only
// knows them from the hiring paperwork, by email.
type addMemberRequest struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (s *Server) resolveMemberUserID(c *fiber.Ctx, req addMemberRequest) (uint, error) {
	if req.UserID != 0 {
		return req.UserID, nil
	}
	if req.Email == "" {
		return 0, models.NewValidationError("A user_id or email is required")
	}
	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, models.NewNotFoundError("User", req.Email)
	}
	return user.ID, nil
}

// AddGymMember handles POST /api/gyms/:id/members
func (s *Server) AddGymMember(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID, err := s.resolveMemberUserID(c, req)
	if err != nil {
		return respondServiceError(c, err)
	}

	membership, err := s.memberService.AddGymMember(c.Context(), actorID, gymID, userID, models.GymRole(req.Role))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(membership)
}

// UpdateGymMemberRole handles PUT /api/gyms/:id/members/:userId
func (s *Server) UpdateGymMemberRole(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	membership, err := s.memberService.UpdateGymMemberRole(c.Context(), actorID, gymID, userID, models.GymRole(req.Role))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(membership)
}

// RemoveGymMember handles DELETE /api/gyms/:id/members/:userId
func (s *Server) RemoveGymMember(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	gymID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.memberService.RemoveGymMember(c.Context(), actorID, gymID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Member removed"})
}

// ListFactoryMembers handles GET /api/factories/:id/members
func (s *Server) ListFactoryMembers(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	factoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.memberService.ListFactoryMembers(c.Context(), actorID, factoryID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(members)
}

// AddFactoryMember handles POST /api/factories/:id/members
func (s *Server) AddFactoryMember(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	factoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID, err := s.resolveMemberUserID(c, req)
	if err != nil {
		return respondServiceError(c, err)
	}

	membership, err := s.memberService.AddFactoryMember(c.Context(), actorID, factoryID, userID, models.FactoryRole(req.Role))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(membership)
}
