package models

import (
	"time"
	"unicode/utf8"
)

type NotificationType string

const (
	NotificationApplicationApproved  NotificationType = "application_approved"
	NotificationApplicationRejected  NotificationType = "application_rejected"
	NotificationDissertationDeleted  NotificationType = "dissertation_deleted"
	NotificationDissertationAssigned NotificationType = "dissertation_assigned"
	NotificationCommentAdded         NotificationType = "comment_added"
	NotificationProgressUpdated      NotificationType = "progress_updated"
	NotificationStatusChanged        NotificationType = "status_changed"
	NotificationProposalReceived     NotificationType = "proposal_received"
	NotificationProposalApproved     NotificationType = "proposal_approved"
	NotificationProposalRejected     NotificationType = "proposal_rejected"
)

// NotificationTypes lists the notification kinds in their wire order.
var NotificationTypes = []NotificationType{
	NotificationApplicationApproved,
	NotificationApplicationRejected,
	NotificationDissertationDeleted,
	NotificationDissertationAssigned,
	NotificationCommentAdded,
	NotificationProgressUpdated,
	NotificationStatusChanged,
	NotificationProposalReceived,
	NotificationProposalApproved,
	NotificationProposalRejected,
}

func IsValidNotificationType(t string) bool {
	for _, nt := range NotificationTypes {
		if string(nt) == t {
			return true
		}
	}
	return false
}

type RelatedModel string

const (
	RelatedDissertation RelatedModel = "Dissertation"
	RelatedApplication  RelatedModel = "Application"
	RelatedComment      RelatedModel = "Comment"
)

const (
	NotificationTitleMaxLength   = 200
	NotificationMessageMaxLength = 500
	NotificationListLimit        = 50
)

type Notification struct {
	ID           string           `json:"id" db:"id"`
	UserID       string           `json:"user_id" db:"user_id"`
	Type         NotificationType `json:"type" db:"type"`
	Title        string           `json:"title" db:"title"`
	Message      string           `json:"message" db:"message"`
	RelatedID    *string          `json:"related_id" db:"related_id"`
	RelatedModel *RelatedModel    `json:"related_model" db:"related_model"`
	IsRead       bool             `json:"is_read" db:"is_read"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

func (n *Notification) Validate() error {
	v := NewValidationError()

	if n.UserID == "" {
		v.Add("user_id", "User ID is required")
	}
	if !IsValidNotificationType(string(n.Type)) {
		v.Add("type", "Invalid notification type")
	}

	switch titleLen := utf8.RuneCountInString(n.Title); {
	case titleLen == 0:
		v.Add("title", "Title is required")
	case titleLen > NotificationTitleMaxLength:
		v.Add("title", "Title must not exceed 200 characters")
	}

	switch msgLen := utf8.RuneCountInString(n.Message); {
	case msgLen == 0:
		v.Add("message", "Message is required")
	case msgLen > NotificationMessageMaxLength:
		v.Add("message", "Message must not exceed 500 characters")
	}

	if n.RelatedModel != nil {
		switch *n.RelatedModel {
		case RelatedDissertation, RelatedApplication, RelatedComment:
		default:
			v.Add("related_model", "Invalid related model")
		}
	}

	return v.OrNil()
}
