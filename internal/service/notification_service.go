package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/service/integration"
	"github.com/rs/zerolog"
)

// Notice is a notification waiting to be emitted.
type Notice struct {
	Recipient    string
	Type         models.NotificationType
	Title        string
	Message      string
	RelatedID    string
	RelatedModel models.RelatedModel
}

type NotificationService interface {
	// Emit stores each notice and publishes it to the broker. Failures are
	// logged and counted, never returned.
	Emit(ctx context.Context, notices ...Notice)
	ListMine(ctx context.Context, actor models.Actor, unreadOnly bool) (*models.NotificationsResponse, error)
	MarkAsRead(ctx context.Context, actor models.Actor, id string) error
	MarkAllAsRead(ctx context.Context, actor models.Actor) (int64, error)
	ClearAll(ctx context.Context, actor models.Actor) (int64, error)
}

type notificationService struct {
	store     repository.Store
	publisher integration.NotificationPublisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

func NewNotificationService(
	store repository.Store,
	publisher integration.NotificationPublisher,
	collector *metrics.Collector,
	logger zerolog.Logger,
) NotificationService {
	if publisher == nil {
		publisher = integration.NewNoopPublisher()
	}
	return &notificationService{
		store:     store,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

func (s *notificationService) Emit(ctx context.Context, notices ...Notice) {
	// the triggering request may already be finishing
	ctx = context.WithoutCancel(ctx)

	for _, notice := range notices {
		s.emit(ctx, notice)
	}
}

func (s *notificationService) emit(ctx context.Context, notice Notice) {
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    notice.Recipient,
		Type:      notice.Type,
		Title:     truncate(notice.Title, models.NotificationTitleMaxLength),
		Message:   truncate(notice.Message, models.NotificationMessageMaxLength),
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
	if notice.RelatedID != "" {
		relatedID := notice.RelatedID
		relatedModel := notice.RelatedModel
		n.RelatedID = &relatedID
		n.RelatedModel = &relatedModel
	}

	log := s.logger.With().
		Str("user_id", n.UserID).
		Str("type", string(n.Type)).
		Logger()

	if err := n.Validate(); err != nil {
		log.Error().Err(err).Msg("Refusing to store invalid notification")
		s.metrics.Notification(string(n.Type), "invalid")
		return
	}

	if err := s.store.Repositories().Notifications.Create(ctx, n); err != nil {
		log.Error().Err(err).Msg("Failed to store notification")
		s.metrics.Notification(string(n.Type), "failed")
		return
	}

	if err := s.publisher.PublishNotification(ctx, models.NewNotificationCreatedEvent(n)); err != nil {
		log.Error().Err(err).Str("notification_id", n.ID).Msg("Failed to publish notification event")
		s.metrics.Notification(string(n.Type), "publish_failed")
		return
	}

	s.metrics.Notification(string(n.Type), "stored")
	log.Debug().Str("notification_id", n.ID).Msg("Notification created")
}

func (s *notificationService) ListMine(ctx context.Context, actor models.Actor, unreadOnly bool) (*models.NotificationsResponse, error) {
	repo := s.store.Repositories().Notifications

	notifications, err := repo.ListByUser(ctx, actor.UserID, unreadOnly, models.NotificationListLimit)
	if err != nil {
		return nil, models.Internal("failed to list notifications", err)
	}

	unread, err := repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, models.Internal("failed to count unread notifications", err)
	}

	return &models.NotificationsResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, actor models.Actor, id string) error {
	ok, err := s.store.Repositories().Notifications.MarkAsRead(ctx, id, actor.UserID)
	if err != nil {
		return models.Internal("failed to mark notification as read", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification %s", models.ErrNotFound, id)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, actor models.Actor) (int64, error) {
	n, err := s.store.Repositories().Notifications.MarkAllAsRead(ctx, actor.UserID)
	if err != nil {
		return 0, models.Internal("failed to mark notifications as read", err)
	}
	return n, nil
}

func (s *notificationService) ClearAll(ctx context.Context, actor models.Actor) (int64, error) {
	n, err := s.store.Repositories().Notifications.DeleteAllByUser(ctx, actor.UserID)
	if err != nil {
		return 0, models.Internal("failed to clear notifications", err)
	}

	s.logger.Info().Str("user_id", actor.UserID).Int64("deleted", n).Msg("Notifications cleared")
	return n, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
