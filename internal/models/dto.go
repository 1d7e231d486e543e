package models

import "time"

// CreateDissertationRequest publishes a topic. SupervisorID defaults to the
// caller.
type CreateDissertationRequest struct {
	Track        string     `json:"track"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	SupervisorID string     `json:"supervisor_id,omitempty"`
}

type UpdateDissertationRequest struct {
	Track       *string    `json:"track,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type ProposeDissertationRequest struct {
	Track        string     `json:"track"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	SupervisorID string     `json:"supervisor_id"`
}

type AssignDissertationRequest struct {
	StudentID string `json:"student_id"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateProgressRequest struct {
	ProgressPercentage *int `json:"progress_percentage"`
}

type CreateApplicationRequest struct {
	DissertationID string `json:"dissertation_id"`
	Message        string `json:"message"`
}

// AssignmentResult describes the outcome of an approval or a direct assignment.
type AssignmentResult struct {
	Dissertation         *Dissertation `json:"dissertation"`
	Application          *Application  `json:"application,omitempty"`
	RejectedApplications int           `json:"rejected_applications"`
	RemovedApplications  int           `json:"removed_applications"`
	RemovedProposals     int64         `json:"removed_proposals"`
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

type DissertationFilter struct {
	Status       *DissertationStatus
	Track        *Track
	SupervisorID *string
	StudentID    *string
}
