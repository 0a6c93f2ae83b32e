package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"gymfix/internal/middleware"
	"gymfix/internal/models"
	"gymfix/internal/notifications"
	"gymfix/internal/observability"
	"gymfix/internal/repository"

	"gorm.io/datatypes"
)

// LivePresence reports whether a user holds a live websocket connection on
// any instance. The hub satisfies this.
type LivePresence interface {
	IsOnline(userID uint) bool
}

// NotificationService persists notifications and fans them out to connected
// clients through the Redis-backed notifier. Persistence is the source of
// truth; the live push is best-effort and skipped entirely for users with no
// connection anywhere, since nothing would deliver it.
type NotificationService struct {
	repo     repository.NotificationRepository
	notifier *notifications.Notifier
	presence LivePresence
}

func NewNotificationService(repo repository.NotificationRepository, notifier *notifications.Notifier, presence LivePresence) *NotificationService {
	return &NotificationService{repo: repo, notifier: notifier, presence: presence}
}

// Notify stores a notification for the user and pushes it over the wire.
func (s *NotificationService) Notify(ctx context.Context, userID uint, nType models.NotificationType, title, body string, data map[string]interface{}) error {
	n := &models.Notification{
		UserID: userID,
		Type:   nType,
		Title:  title,
		Body:   body,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return models.NewInternalError(err)
		}
		n.Data = datatypes.JSON(raw)
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	observability.RecordNotification(string(nType))

	if s.notifier != nil && (s.presence == nil || s.presence.IsOnline(userID)) {
		payload, err := json.Marshal(n)
		if err == nil {
			if err := s.notifier.PublishUser(ctx, userID, string(payload)); err != nil {
				middleware.Logger.Warn("notification push failed",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("type", string(nType)),
					slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// NotifyMany delivers the same notification to each user, skipping the actor.
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []uint, actorID uint, nType models.NotificationType, title, body string, data map[string]interface{}) {
	seen := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == actorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := s.Notify(ctx, id, nType, title, body, data); err != nil {
			middleware.Logger.Warn("notification delivery failed",
				slog.Uint64("user_id", uint64(id)),
				slog.String("error", err.Error()))
		}
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
