package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) String() string {
	return string(s)
}

func IsValidApplicationStatus(status string) bool {
	switch ApplicationStatus(status) {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

const ApplicationMessageMaxLength = 500

type Application struct {
	ID             string            `json:"id" db:"id"`
	DissertationID string            `json:"dissertation_id" db:"dissertation_id"`
	StudentID      string            `json:"student_id" db:"student_id"`
	Status         ApplicationStatus `json:"status" db:"status"`
	Message        string            `json:"message,omitempty" db:"message"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

func (a *Application) Validate() error {
	v := NewValidationError()

	if a.DissertationID == "" {
		v.Add("dissertation_id", "Dissertation ID is required")
	}
	if a.StudentID == "" {
		v.Add("student_id", "Student ID is required")
	}
	if !IsValidApplicationStatus(string(a.Status)) {
		v.Add("status", "Status must be pending, approved, or rejected")
	}

	a.Message = strings.TrimSpace(a.Message)
	if utf8.RuneCountInString(a.Message) > ApplicationMessageMaxLength {
		v.Add("message", "Message must not exceed 500 characters")
	}

	return v.OrNil()
}

// ApplicationWithDetails is the read model returned to supervisors and students.
type ApplicationWithDetails struct {
	Application
	DissertationTitle string `json:"dissertation_title" db:"dissertation_title"`
	SupervisorID      string `json:"supervisor_id" db:"supervisor_id"`
	StudentName       string `json:"student_name" db:"student_name"`
	StudentEmail      string `json:"student_email" db:"student_email"`
}
