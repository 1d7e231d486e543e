package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
)

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

func getDissertation(ctx context.Context, repos repository.Repositories, id string) (*models.Dissertation, error) {
	d, err := repos.Dissertations.GetByID(ctx, id)
	if err != nil {
		return nil, models.Internal("failed to get dissertation", err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: dissertation %s", models.ErrNotFound, id)
	}
	return d, nil
}

// lockFor takes the student lock, then the dissertation lock. Empty ids
// are skipped.
func lockFor(ctx context.Context, repos repository.Repositories, studentID, dissertationID string) error {
	if studentID != "" {
		if err := repos.Locks.LockStudent(ctx, studentID); err != nil {
			return models.Internal("failed to lock student", err)
		}
	}
	if dissertationID != "" {
		if err := repos.Locks.LockDissertation(ctx, dissertationID); err != nil {
			return models.Internal("failed to lock dissertation", err)
		}
	}
	return nil
}

func getApplication(ctx context.Context, repos repository.Repositories, id string) (*models.Application, error) {
	a, err := repos.Applications.GetByID(ctx, id)
	if err != nil {
		return nil, models.Internal("failed to get application", err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: application %s", models.ErrNotFound, id)
	}
	return a, nil
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, models.ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, models.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, models.ErrNotAvailable):
		return "not_available"
	case errors.Is(err, models.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, models.ErrDuplicateApplication):
		return "duplicate"
	default:
		return "error"
	}
}

// isBusiness reports whether err is an expected workflow refusal.
func isBusiness(err error) bool {
	o := outcome(err)
	return o != "ok" && o != "error"
}

func isAssignedConflict(err error) bool {
	return errors.Is(err, repository.ErrStudentAlreadyAssigned)
}
