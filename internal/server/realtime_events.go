package server

import (
	"context"
	"encoding/json"
	"log"

	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Event type constants prevent typos in event names.
const (
	EventAnnouncement = "announcement"
)

// publishBroadcastEvent pushes an event to every connected client on this
// instance and over Redis to the other instances.
func (s *Server) publishBroadcastEvent(eventType string, payload map[string]interface{}) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	message := string(eventJSON)
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(context.Background(), message); err != nil {
			log.Printf("failed to publish %s broadcast event: %v", eventType, err)
		}
	}
}

// BroadcastAnnouncement handles POST /api/admin/broadcast (admin only).
// Pushes a transient platform-wide announcement to connected clients.
func (s *Server) BroadcastAnnouncement(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Title == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title is required"))
	}

	s.publishBroadcastEvent(EventAnnouncement, map[string]interface{}{
		"title": req.Title,
		"body":  req.Body,
	})

	return c.JSON(fiber.Map{"message": "Announcement broadcast"})
}
