package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/workflow"
	"github.com/rs/zerolog"
)

// AssignmentOrchestrator owns every operation that binds a student to a
// dissertation or removes competing requests.
type AssignmentOrchestrator interface {
	ApproveApplication(ctx context.Context, actor models.Actor, applicationID string) (*models.AssignmentResult, error)
	RejectApplication(ctx context.Context, actor models.Actor, applicationID string) (*models.Application, error)
	ApproveProposal(ctx context.Context, actor models.Actor, dissertationID string) (*models.AssignmentResult, error)
	RejectProposal(ctx context.Context, actor models.Actor, dissertationID string) error
	AssignDissertation(ctx context.Context, actor models.Actor, dissertationID, studentID string) (*models.AssignmentResult, error)
	DeleteDissertation(ctx context.Context, actor models.Actor, dissertationID string) error
}

type assignmentOrchestrator struct {
	store    repository.Store
	guard    InvariantGuard
	notifier NotificationService
	metrics  *metrics.Collector
	logger   zerolog.Logger
	now      clock
}

func NewAssignmentOrchestrator(
	store repository.Store,
	notifier NotificationService,
	collector *metrics.Collector,
	logger zerolog.Logger,
) AssignmentOrchestrator {
	return &assignmentOrchestrator{
		store:    store,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
		now:      utcNow,
	}
}

// assignment accumulates what one assigning transaction changed.
type assignment struct {
	dissertation    *models.Dissertation
	studentID       string
	keepID          string
	withdrawn       []models.Application
	withdrawnTitles map[string]string
	rejected        []models.Application
	removedProps    int64
}

func (a *assignment) result(app *models.Application) *models.AssignmentResult {
	return &models.AssignmentResult{
		Dissertation:         a.dissertation,
		Application:          app,
		RejectedApplications: len(a.rejected),
		RemovedApplications:  len(a.withdrawn),
		RemovedProposals:     a.removedProps,
	}
}

// notices returns the competitor notifications shared by every assignment path.
func (a *assignment) notices() []Notice {
	out := make([]Notice, 0, len(a.rejected)+len(a.withdrawn))
	for _, app := range a.rejected {
		out = append(out, applicationRejectedNotice(app.StudentID, a.dissertation.ID, a.dissertation.Title))
	}
	for _, app := range a.withdrawn {
		out = append(out, applicationWithdrawnNotice(a.studentID, app.DissertationID, a.withdrawnTitles[app.DissertationID], a.dissertation.Title))
	}
	return out
}

// assign binds studentID to d inside repos' transaction. The partial unique
// index decides conflicts; the guard check only fails fast.
func (o *assignmentOrchestrator) assign(ctx context.Context, repos repository.Repositories, d *models.Dissertation, studentID string, now time.Time) (*assignment, error) {
	if err := o.guard.CheckAssignee(ctx, repos, studentID, d.ID); err != nil {
		return nil, err
	}

	updated := workflow.Assign(*d, studentID, now)
	ok, err := repos.Dissertations.UpdateState(ctx, &updated, d.Status)
	if isAssignedConflict(err) {
		o.metrics.AssignmentConflict()
		return nil, fmt.Errorf("%w: student %s", models.ErrAlreadyAssigned, studentID)
	}
	if err != nil {
		return nil, models.Internal("failed to assign dissertation", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: dissertation %s changed concurrently", models.ErrNotAvailable, d.ID)
	}

	return &assignment{dissertation: &updated, studentID: studentID}, nil
}

// cleanup removes the student's other pending requests and rejects the
// remaining applicants of the assigned dissertation.
func (o *assignmentOrchestrator) cleanup(ctx context.Context, repos repository.Repositories, a *assignment, now time.Time) error {
	withdrawn, err := repos.Applications.DeletePendingByStudent(ctx, a.studentID, a.keepID)
	if err != nil {
		return models.Internal("failed to delete pending applications", err)
	}
	a.withdrawn = withdrawn

	a.withdrawnTitles = make(map[string]string, len(withdrawn))
	for _, app := range withdrawn {
		other, err := repos.Dissertations.GetByID(ctx, app.DissertationID)
		if err != nil {
			return models.Internal("failed to load withdrawn dissertation", err)
		}
		if other != nil {
			a.withdrawnTitles[app.DissertationID] = other.Title
		}
	}

	a.removedProps, err = repos.Dissertations.DeletePendingProposalsByStudent(ctx, a.studentID, a.dissertation.ID)
	if err != nil {
		return models.Internal("failed to delete pending proposals", err)
	}

	a.rejected, err = repos.Applications.RejectPendingByDissertation(ctx, a.dissertation.ID, a.keepID, now)
	if err != nil {
		return models.Internal("failed to reject competing applications", err)
	}

	return nil
}

func (o *assignmentOrchestrator) finish(op string, err error, log *zerolog.Event) {
	o.metrics.Decision(op, outcome(err))
	switch {
	case err == nil:
		log.Msg("Workflow decision applied")
	case errors.Is(err, models.ErrAlreadyAssigned):
		o.logger.Warn().Err(err).Str("operation", op).Msg("Assignment refused")
	case isBusiness(err):
		o.logger.Debug().Err(err).Str("operation", op).Msg("Workflow decision refused")
	default:
		o.logger.Error().Err(err).Str("operation", op).Msg("Workflow decision failed")
	}
}

func (o *assignmentOrchestrator) ApproveApplication(ctx context.Context, actor models.Actor, applicationID string) (*models.AssignmentResult, error) {
	now := o.now()
	var (
		app    *models.Application
		result *assignment
	)

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		app, err = getApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		if err := lockFor(ctx, repos, app.StudentID, app.DissertationID); err != nil {
			return err
		}
		// re-read under the locks
		app, err = getApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		d, err := getDissertation(ctx, repos, app.DissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanProcessApplication(app.ID, app.Status).Error(); err != nil {
			return err
		}
		if err := workflow.CanApproveApplicationFor(d.Status).Error(); err != nil {
			return err
		}

		result, err = o.assign(ctx, repos, d, app.StudentID, now)
		if err != nil {
			return err
		}

		ok, err := repos.Applications.UpdateStatus(ctx, app.ID, models.ApplicationStatusPending, models.ApplicationStatusApproved, now)
		if err != nil {
			return models.Internal("failed to approve application", err)
		}
		if !ok {
			return fmt.Errorf("%w: application %s", models.ErrAlreadyProcessed, app.ID)
		}
		app.Status = models.ApplicationStatusApproved
		app.UpdatedAt = now

		result.keepID = app.ID
		return o.cleanup(ctx, repos, result, now)
	})

	if err != nil {
		o.finish("approve_application", err, nil)
		return nil, err
	}

	o.finish("approve_application", nil, o.logger.Info().
		Str("application_id", app.ID).
		Str("dissertation_id", result.dissertation.ID).
		Str("student_id", result.studentID).
		Int("rejected", len(result.rejected)).
		Int("withdrawn", len(result.withdrawn)).
		Int64("removed_proposals", result.removedProps))

	notices := append([]Notice{applicationApprovedNotice(result.studentID, result.dissertation)}, result.notices()...)
	o.notifier.Emit(ctx, notices...)

	return result.result(app), nil
}

func (o *assignmentOrchestrator) RejectApplication(ctx context.Context, actor models.Actor, applicationID string) (*models.Application, error) {
	now := o.now()
	var (
		app *models.Application
		d   *models.Dissertation
	)

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		app, err = getApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		d, err = getDissertation(ctx, repos, app.DissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanProcessApplication(app.ID, app.Status).Error(); err != nil {
			return err
		}

		ok, err := repos.Applications.UpdateStatus(ctx, app.ID, models.ApplicationStatusPending, models.ApplicationStatusRejected, now)
		if err != nil {
			return models.Internal("failed to reject application", err)
		}
		if !ok {
			return fmt.Errorf("%w: application %s", models.ErrAlreadyProcessed, app.ID)
		}
		app.Status = models.ApplicationStatusRejected
		app.UpdatedAt = now
		return nil
	})

	if err != nil {
		o.finish("reject_application", err, nil)
		return nil, err
	}

	o.finish("reject_application", nil, o.logger.Info().
		Str("application_id", app.ID).
		Str("dissertation_id", d.ID).
		Str("student_id", app.StudentID))

	o.notifier.Emit(ctx, applicationRejectedNotice(app.StudentID, d.ID, d.Title))

	return app, nil
}

func (o *assignmentOrchestrator) ApproveProposal(ctx context.Context, actor models.Actor, dissertationID string) (*models.AssignmentResult, error) {
	now := o.now()
	var result *assignment

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		d, err := getDissertation(ctx, repos, dissertationID)
		if err != nil {
			return err
		}
		if err := lockFor(ctx, repos, d.StudentRef(), d.ID); err != nil {
			return err
		}
		d, err = getDissertation(ctx, repos, dissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanDecideProposal(d).Error(); err != nil {
			return err
		}

		result, err = o.assign(ctx, repos, d, *d.StudentID, now)
		if err != nil {
			return err
		}
		return o.cleanup(ctx, repos, result, now)
	})

	if err != nil {
		o.finish("approve_proposal", err, nil)
		return nil, err
	}

	o.finish("approve_proposal", nil, o.logger.Info().
		Str("dissertation_id", result.dissertation.ID).
		Str("student_id", result.studentID).
		Int("withdrawn", len(result.withdrawn)).
		Int64("removed_proposals", result.removedProps))

	notices := append([]Notice{proposalApprovedNotice(result.studentID, result.dissertation)}, result.notices()...)
	o.notifier.Emit(ctx, notices...)

	return result.result(nil), nil
}

func (o *assignmentOrchestrator) RejectProposal(ctx context.Context, actor models.Actor, dissertationID string) error {
	var d *models.Dissertation

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		d, err = getDissertation(ctx, repos, dissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanDecideProposal(d).Error(); err != nil {
			return err
		}

		ok, err := repos.Dissertations.Delete(ctx, d.ID, models.DissertationStatusPendingApproval)
		if err != nil {
			return models.Internal("failed to delete proposal", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal %s changed concurrently", models.ErrInvalidState, d.ID)
		}
		return nil
	})

	if err != nil {
		o.finish("reject_proposal", err, nil)
		return err
	}

	o.finish("reject_proposal", nil, o.logger.Info().
		Str("dissertation_id", d.ID).
		Str("student_id", d.StudentRef()))

	o.notifier.Emit(ctx, proposalRejectedNotice(*d.StudentID, d))

	return nil
}

func (o *assignmentOrchestrator) AssignDissertation(ctx context.Context, actor models.Actor, dissertationID, studentID string) (*models.AssignmentResult, error) {
	if studentID == "" {
		v := models.NewValidationError()
		v.Add("student_id", "Student ID is required")
		return nil, v
	}

	now := o.now()
	var (
		result *assignment
		app    *models.Application
	)

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := lockFor(ctx, repos, studentID, dissertationID); err != nil {
			return err
		}
		d, err := getDissertation(ctx, repos, dissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanDirectAssign(d.Status).Error(); err != nil {
			return err
		}

		result, err = o.assign(ctx, repos, d, studentID, now)
		if err != nil {
			return err
		}

		// a pending application by the same student is honoured, not withdrawn
		existing, err := repos.Applications.GetByDissertationAndStudent(ctx, d.ID, studentID)
		if err != nil {
			return models.Internal("failed to load existing application", err)
		}
		if existing != nil && existing.Status == models.ApplicationStatusPending {
			ok, err := repos.Applications.UpdateStatus(ctx, existing.ID, models.ApplicationStatusPending, models.ApplicationStatusApproved, now)
			if err != nil {
				return models.Internal("failed to approve application", err)
			}
			if ok {
				existing.Status = models.ApplicationStatusApproved
				existing.UpdatedAt = now
				app = existing
				result.keepID = existing.ID
			}
		}

		return o.cleanup(ctx, repos, result, now)
	})

	if err != nil {
		o.finish("assign_dissertation", err, nil)
		return nil, err
	}

	o.finish("assign_dissertation", nil, o.logger.Info().
		Str("dissertation_id", result.dissertation.ID).
		Str("student_id", result.studentID).
		Str("actor_id", actor.UserID).
		Int("rejected", len(result.rejected)).
		Int("withdrawn", len(result.withdrawn)))

	notices := append([]Notice{dissertationAssignedNotice(result.studentID, result.dissertation)}, result.notices()...)
	o.notifier.Emit(ctx, notices...)

	return result.result(app), nil
}

func (o *assignmentOrchestrator) DeleteDissertation(ctx context.Context, actor models.Actor, dissertationID string) error {
	var (
		d       *models.Dissertation
		pending []models.Application
	)

	err := o.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := lockFor(ctx, repos, "", dissertationID); err != nil {
			return err
		}
		var err error
		d, err = getDissertation(ctx, repos, dissertationID)
		if err != nil {
			return err
		}

		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanDeleteDissertation(d.Status).Error(); err != nil {
			return err
		}

		// recipients are captured before the applications disappear
		pending, err = repos.Applications.ListPendingByDissertation(ctx, d.ID)
		if err != nil {
			return models.Internal("failed to list pending applications", err)
		}

		if _, err := repos.Applications.DeleteByDissertation(ctx, d.ID); err != nil {
			return models.Internal("failed to delete applications", err)
		}

		ok, err := repos.Dissertations.Delete(ctx, d.ID, models.DissertationStatusAvailable, models.DissertationStatusPendingApproval)
		if err != nil {
			return models.Internal("failed to delete dissertation", err)
		}
		if !ok {
			return fmt.Errorf("%w: dissertation %s changed concurrently", models.ErrInvalidState, d.ID)
		}
		return nil
	})

	if err != nil {
		o.finish("delete_dissertation", err, nil)
		return err
	}

	o.finish("delete_dissertation", nil, o.logger.Info().
		Str("dissertation_id", d.ID).
		Str("actor_id", actor.UserID).
		Int("notified_applicants", len(pending)))

	notices := make([]Notice, 0, len(pending))
	for _, app := range pending {
		notices = append(notices, dissertationDeletedNotice(app.StudentID, d))
	}
	o.notifier.Emit(ctx, notices...)

	return nil
}
