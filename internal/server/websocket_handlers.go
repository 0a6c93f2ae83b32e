package server

import (
	"context"
	"encoding/json"
	"log"

	"gymfix/internal/middleware"
	"gymfix/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler serves GET /api/ws. Connected clients receive ticket and
// notification events pushed by the hub; the inbound direction only accepts
// pings and read receipts.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		// Set by AuthRequired during the upgrade request
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		// The single-use ticket did its job once the upgrade completed
		s.consumeWSTicket(ctx, conn.Locals("wsTicket"))

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incoming struct {
				Type           string `json:"type"`
				NotificationID uint   `json:"notification_id"`
			}
			if err := json.Unmarshal(message, &incoming); err != nil {
				return
			}

			switch incoming.Type {
			case "ping":
				c.TrySend([]byte(`{"type":"pong"}`))

			case "mark_read":
				if incoming.NotificationID == 0 {
					return
				}
				if err := s.notificationService.MarkRead(ctx, userID, incoming.NotificationID); err != nil {
					return
				}
				if unread, err := s.notificationService.CountUnread(ctx, userID); err == nil {
					if payload, err := json.Marshal(map[string]interface{}{
						"type":         "unread_count",
						"unread_count": unread,
					}); err == nil {
						c.TrySend(payload)
					}
				}
			}
		}

		unread, _ := s.notificationService.CountUnread(ctx, userID)
		if welcome, err := json.Marshal(map[string]interface{}{
			"type":         "connected",
			"user_id":      userID,
			"unread_count": unread,
		}); err == nil {
			client.TrySend(welcome)
		}

		go client.WritePump()

		// Read pump blocks until the connection drops
		client.ReadPump()
	})
}
