package models

// NotificationCreatedEvent is published to the broker once a notification is stored.
type NotificationCreatedEvent struct {
	NotificationID string           `json:"notification_id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	RelatedID      *string          `json:"related_id,omitempty"`
	RelatedModel   *RelatedModel    `json:"related_model,omitempty"`
	Timestamp      int64            `json:"timestamp"`
}

func NewNotificationCreatedEvent(n *Notification) *NotificationCreatedEvent {
	return &NotificationCreatedEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		RelatedID:      n.RelatedID,
		RelatedModel:   n.RelatedModel,
		Timestamp:      n.CreatedAt.Unix(),
	}
}
