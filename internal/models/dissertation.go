package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Track string

const (
	TrackComputerScience        Track = "Computer Science"
	TrackSoftwareEngineering    Track = "Software Engineering"
	TrackDataScience            Track = "Data Science"
	TrackArtificialIntelligence Track = "Artificial Intelligence"
	TrackCybersecurity          Track = "Cybersecurity"
	TrackInformationSystems     Track = "Information Systems"
	TrackComputerNetworks       Track = "Computer Networks"
	TrackHumanComputerInteract  Track = "Human-Computer Interaction"
)

// Tracks lists the academic tracks in their wire order.
var Tracks = []Track{
	TrackComputerScience,
	TrackSoftwareEngineering,
	TrackDataScience,
	TrackArtificialIntelligence,
	TrackCybersecurity,
	TrackInformationSystems,
	TrackComputerNetworks,
	TrackHumanComputerInteract,
}

func IsValidTrack(track string) bool {
	for _, t := range Tracks {
		if string(t) == track {
			return true
		}
	}
	return false
}

type DissertationStatus string

const (
	DissertationStatusAvailable       DissertationStatus = "available"
	DissertationStatusPendingApproval DissertationStatus = "pending_approval"
	DissertationStatusAssigned        DissertationStatus = "assigned"
	DissertationStatusCompleted       DissertationStatus = "completed"
	DissertationStatusCanceled        DissertationStatus = "canceled"
	DissertationStatusPaused          DissertationStatus = "paused"
)

// DissertationStatuses lists the lifecycle states in their wire order.
var DissertationStatuses = []DissertationStatus{
	DissertationStatusAvailable,
	DissertationStatusPendingApproval,
	DissertationStatusAssigned,
	DissertationStatusCompleted,
	DissertationStatusCanceled,
	DissertationStatusPaused,
}

func (s DissertationStatus) String() string {
	return string(s)
}

func IsValidDissertationStatus(status string) bool {
	for _, s := range DissertationStatuses {
		if string(s) == status {
			return true
		}
	}
	return false
}

const (
	TitleMinLength       = 10
	TitleMaxLength       = 200
	DescriptionMaxLength = 3000
	ProgressMin          = 0
	ProgressMax          = 100
)

type Dissertation struct {
	ID                 string             `json:"id" db:"id"`
	Track              Track              `json:"track" db:"track"`
	Title              string             `json:"title" db:"title"`
	Description        string             `json:"description" db:"description"`
	Status             DissertationStatus `json:"status" db:"status"`
	ProgressPercentage int                `json:"progress_percentage" db:"progress_percentage"`
	DateCreated        time.Time          `json:"date_created" db:"date_created"`
	DateStarted        *time.Time         `json:"date_started" db:"date_started"`
	Deadline           *time.Time         `json:"deadline" db:"deadline"`
	SupervisorID       string             `json:"supervisor_id" db:"supervisor_id"`
	StudentID          *string            `json:"student_id" db:"student_id"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// HasStudent reports whether the dissertation is bound to the given student.
func (d *Dissertation) HasStudent(studentID string) bool {
	return d.StudentID != nil && *d.StudentID == studentID
}

func (d *Dissertation) StudentRef() string {
	if d.StudentID == nil {
		return ""
	}
	return *d.StudentID
}

// Normalize trims free-text fields the way they are stored.
func (d *Dissertation) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Track = Track(strings.TrimSpace(string(d.Track)))
}

// Validate checks field-level constraints. Cross-entity rules live in the
// workflow guards.
func (d *Dissertation) Validate() error {
	v := NewValidationError()

	if d.Track == "" {
		v.Add("track", "Track is required")
	} else if !IsValidTrack(string(d.Track)) {
		v.Add("track", "Please select a valid track")
	}

	titleLen := utf8.RuneCountInString(d.Title)
	switch {
	case titleLen == 0:
		v.Add("title", "Title is required")
	case titleLen < TitleMinLength:
		v.Add("title", "Title must be at least 10 characters")
	case titleLen > TitleMaxLength:
		v.Add("title", "Title must not exceed 200 characters")
	}

	if utf8.RuneCountInString(d.Description) > DescriptionMaxLength {
		v.Add("description", "Description must not exceed 3000 characters")
	}

	if !IsValidDissertationStatus(string(d.Status)) {
		v.Add("status", "Invalid status value")
	}

	if d.ProgressPercentage < ProgressMin {
		v.Add("progress_percentage", "Progress cannot be less than 0")
	} else if d.ProgressPercentage > ProgressMax {
		v.Add("progress_percentage", "Progress cannot exceed 100")
	}
	if d.Status == DissertationStatusCompleted && d.ProgressPercentage != ProgressMax {
		v.Add("progress_percentage", "Completed dissertations must be at 100% progress")
	}

	if d.SupervisorID == "" {
		v.Add("supervisor_id", "Supervisor is required")
	}

	return v.OrNil()
}
