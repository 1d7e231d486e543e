// Package workflow holds the dissertation lifecycle rules: the status
// transition table and the guards evaluated before any mutation.
// Everything here is pure; callers pass in the state and the clock.
package workflow

import (
	"fmt"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
)

var transitions = map[models.DissertationStatus][]models.DissertationStatus{
	models.DissertationStatusAvailable: {
		models.DissertationStatusAssigned,
		models.DissertationStatusCanceled,
		models.DissertationStatusPendingApproval,
	},
	models.DissertationStatusPendingApproval: {
		models.DissertationStatusAvailable,
		models.DissertationStatusCanceled,
	},
	models.DissertationStatusAssigned: {
		models.DissertationStatusCompleted,
		models.DissertationStatusPaused,
		models.DissertationStatusCanceled,
	},
	models.DissertationStatusPaused: {
		models.DissertationStatusAssigned,
		models.DissertationStatusCompleted,
		models.DissertationStatusCanceled,
	},
	models.DissertationStatusCompleted: {},
	models.DissertationStatusCanceled:  {},
}

// IsValidTransition reports whether current -> next appears in the table.
// Self-loops and unknown statuses are rejected.
func IsValidTransition(current, next models.DissertationStatus) bool {
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current models.DissertationStatus) []models.DissertationStatus {
	allowed := transitions[current]
	out := make([]models.DissertationStatus, len(allowed))
	copy(out, allowed)
	return out
}

func IsTerminal(status models.DissertationStatus) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// ApplyStatusTransition validates current -> next against the table and
// returns a copy of d carrying the new status and its side effects.
func ApplyStatusTransition(d models.Dissertation, next models.DissertationStatus, now time.Time) (models.Dissertation, error) {
	if !IsValidTransition(d.Status, next) {
		return d, fmt.Errorf("%w: cannot change status from %s to %s", models.ErrInvalidTransition, d.Status, next)
	}
	return enter(d, next, now), nil
}

// Assign binds studentID and moves d to assigned. The caller is responsible
// for running CanDirectAssign or CanApproveProposal first; the transition
// table only governs supervisor-driven status changes.
func Assign(d models.Dissertation, studentID string, now time.Time) models.Dissertation {
	student := studentID
	d.StudentID = &student
	return enter(d, models.DissertationStatusAssigned, now)
}

func enter(d models.Dissertation, next models.DissertationStatus, now time.Time) models.Dissertation {
	d.Status = next
	d.UpdatedAt = now

	switch next {
	case models.DissertationStatusAvailable:
		d.StudentID = nil
	case models.DissertationStatusAssigned:
		if d.DateStarted == nil {
			started := now
			d.DateStarted = &started
		}
	case models.DissertationStatusCompleted:
		d.ProgressPercentage = models.ProgressMax
	}

	return d
}

// InitialStatus returns the status a new dissertation starts in.
func InitialStatus(proposal bool) models.DissertationStatus {
	if proposal {
		return models.DissertationStatusPendingApproval
	}
	return models.DissertationStatusAvailable
}
