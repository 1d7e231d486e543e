package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/workflow"
	"github.com/rs/zerolog"
)

type DissertationService interface {
	CreateDissertation(ctx context.Context, actor models.Actor, req *models.CreateDissertationRequest) (*models.Dissertation, error)
	ProposeDissertation(ctx context.Context, actor models.Actor, req *models.ProposeDissertationRequest) (*models.Dissertation, error)
	UpdateDissertation(ctx context.Context, actor models.Actor, id string, req *models.UpdateDissertationRequest) (*models.Dissertation, error)
	GetDissertation(ctx context.Context, id string) (*models.Dissertation, error)
	ListAvailable(ctx context.Context, track string) ([]models.Dissertation, error)
	ListMine(ctx context.Context, actor models.Actor) ([]models.Dissertation, error)
	ListPendingProposals(ctx context.Context, actor models.Actor) ([]models.Dissertation, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, status string) (*models.Dissertation, error)
	UpdateProgress(ctx context.Context, actor models.Actor, id string, progress int) (*models.Dissertation, error)
}

type dissertationService struct {
	store    repository.Store
	guard    InvariantGuard
	notifier NotificationService
	metrics  *metrics.Collector
	logger   zerolog.Logger
	now      clock
}

func NewDissertationService(
	store repository.Store,
	notifier NotificationService,
	collector *metrics.Collector,
	logger zerolog.Logger,
) DissertationService {
	return &dissertationService{
		store:    store,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
		now:      utcNow,
	}
}

func (s *dissertationService) CreateDissertation(ctx context.Context, actor models.Actor, req *models.CreateDissertationRequest) (*models.Dissertation, error) {
	supervisorID := strings.TrimSpace(req.SupervisorID)
	if supervisorID == "" {
		supervisorID = actor.UserID
	}

	supervisorRole := actor.Role
	if actor.Role == models.RoleTeacher && supervisorID != actor.UserID {
		supervisor, err := s.store.Repositories().Users.GetByID(ctx, supervisorID)
		if err != nil {
			return nil, models.Internal("failed to load supervisor", err)
		}
		if supervisor == nil {
			return nil, fmt.Errorf("%w: supervisor %s", models.ErrNotFound, supervisorID)
		}
		supervisorRole = supervisor.Role
	}

	err := workflow.CanCreateDissertation(workflow.CreateContext{
		Role:           actor.Role,
		SupervisorRole: supervisorRole,
	}).Error()
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := &models.Dissertation{
		ID:           uuid.New().String(),
		Track:        models.Track(req.Track),
		Title:        req.Title,
		Description:  req.Description,
		Status:       workflow.InitialStatus(false),
		DateCreated:  now,
		Deadline:     req.Deadline,
		SupervisorID: supervisorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Repositories().Dissertations.Create(ctx, d); err != nil {
		return nil, models.Internal("failed to create dissertation", err)
	}

	s.metrics.Decision("create_dissertation", "ok")
	s.logger.Info().
		Str("dissertation_id", d.ID).
		Str("supervisor_id", d.SupervisorID).
		Str("track", string(d.Track)).
		Msg("Dissertation created")

	return d, nil
}

func (s *dissertationService) ProposeDissertation(ctx context.Context, actor models.Actor, req *models.ProposeDissertationRequest) (*models.Dissertation, error) {
	if strings.TrimSpace(req.SupervisorID) == "" {
		v := models.NewValidationError()
		v.Add("supervisor_id", "Supervisor is required")
		return nil, v
	}

	now := s.now()
	studentID := actor.UserID
	d := &models.Dissertation{
		ID:           uuid.New().String(),
		Track:        models.Track(req.Track),
		Title:        req.Title,
		Description:  req.Description,
		Status:       workflow.InitialStatus(true),
		DateCreated:  now,
		Deadline:     req.Deadline,
		SupervisorID: strings.TrimSpace(req.SupervisorID),
		StudentID:    &studentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var student *models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := lockFor(ctx, repos, studentID, ""); err != nil {
			return err
		}
		var err error
		student, err = s.guard.CheckProposal(ctx, repos, actor, d.SupervisorID)
		if err != nil {
			return err
		}
		if err := repos.Dissertations.Create(ctx, d); err != nil {
			return models.Internal("failed to create proposal", err)
		}
		return nil
	})
	s.metrics.Decision("propose_dissertation", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dissertation_id", d.ID).
		Str("student_id", studentID).
		Str("supervisor_id", d.SupervisorID).
		Msg("Dissertation proposed")

	s.notifier.Emit(ctx, proposalReceivedNotice(d.SupervisorID, student.FullName(), d))

	return d, nil
}

func (s *dissertationService) UpdateDissertation(ctx context.Context, actor models.Actor, id string, req *models.UpdateDissertationRequest) (*models.Dissertation, error) {
	var d *models.Dissertation

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		d, err = getDissertation(ctx, repos, id)
		if err != nil {
			return err
		}
		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}

		if req.Track != nil {
			d.Track = models.Track(*req.Track)
		}
		if req.Title != nil {
			d.Title = *req.Title
		}
		if req.Description != nil {
			d.Description = *req.Description
		}
		if req.Deadline != nil {
			d.Deadline = req.Deadline
		}
		d.UpdatedAt = s.now()
		d.Normalize()
		if err := d.Validate(); err != nil {
			return err
		}

		if err := repos.Dissertations.UpdateDetails(ctx, d); err != nil {
			return models.Internal("failed to update dissertation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("dissertation_id", d.ID).Str("actor_id", actor.UserID).Msg("Dissertation updated")
	return d, nil
}

func (s *dissertationService) GetDissertation(ctx context.Context, id string) (*models.Dissertation, error) {
	return getDissertation(ctx, s.store.Repositories(), id)
}

func (s *dissertationService) ListAvailable(ctx context.Context, track string) ([]models.Dissertation, error) {
	status := models.DissertationStatusAvailable
	filter := models.DissertationFilter{Status: &status}

	if track != "" {
		if !models.IsValidTrack(track) {
			v := models.NewValidationError()
			v.Add("track", "Please select a valid track")
			return nil, v
		}
		t := models.Track(track)
		filter.Track = &t
	}

	list, err := s.store.Repositories().Dissertations.List(ctx, filter)
	if err != nil {
		return nil, models.Internal("failed to list dissertations", err)
	}
	return list, nil
}

// ListMine returns the supervised topics of a teacher, or the topics a
// student is bound to (assigned, paused, completed, proposals).
func (s *dissertationService) ListMine(ctx context.Context, actor models.Actor) ([]models.Dissertation, error) {
	var filter models.DissertationFilter
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = &actor.UserID
	case models.RoleTeacher:
		filter.SupervisorID = &actor.UserID
	}

	list, err := s.store.Repositories().Dissertations.List(ctx, filter)
	if err != nil {
		return nil, models.Internal("failed to list dissertations", err)
	}
	return list, nil
}

func (s *dissertationService) ListPendingProposals(ctx context.Context, actor models.Actor) ([]models.Dissertation, error) {
	status := models.DissertationStatusPendingApproval
	filter := models.DissertationFilter{Status: &status}
	if !actor.IsAdmin() {
		filter.SupervisorID = &actor.UserID
	}

	list, err := s.store.Repositories().Dissertations.List(ctx, filter)
	if err != nil {
		return nil, models.Internal("failed to list proposals", err)
	}
	return list, nil
}

func (s *dissertationService) UpdateStatus(ctx context.Context, actor models.Actor, id string, status string) (*models.Dissertation, error) {
	next := models.DissertationStatus(strings.TrimSpace(status))
	if next == "" {
		v := models.NewValidationError()
		v.Add("status", "Status is required")
		return nil, v
	}

	var (
		before    models.DissertationStatus
		updated   models.Dissertation
		recipient *string
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		d, err := getDissertation(ctx, repos, id)
		if err != nil {
			return err
		}
		if err := lockFor(ctx, repos, d.StudentRef(), d.ID); err != nil {
			return err
		}
		if d, err = getDissertation(ctx, repos, id); err != nil {
			return err
		}
		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanChangeStatus(d, next).Error(); err != nil {
			return err
		}

		before = d.Status
		recipient = d.StudentID
		updated, err = workflow.ApplyStatusTransition(*d, next, s.now())
		if err != nil {
			return err
		}

		ok, err := repos.Dissertations.UpdateState(ctx, &updated, before)
		if err != nil {
			if isAssignedConflict(err) {
				s.metrics.AssignmentConflict()
				return fmt.Errorf("%w: student %s", models.ErrAlreadyAssigned, updated.StudentRef())
			}
			return models.Internal("failed to update status", err)
		}
		if !ok {
			return fmt.Errorf("%w: dissertation %s changed concurrently", models.ErrInvalidState, d.ID)
		}
		return nil
	})
	s.metrics.Decision("update_status", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dissertation_id", updated.ID).
		Str("from", string(before)).
		Str("to", string(updated.Status)).
		Msg("Dissertation status changed")

	// A reopened proposal no longer carries the student, who still hears about it.
	if recipient != nil {
		s.notifier.Emit(ctx, statusChangedNotice(*recipient, &updated, before))
	}

	return &updated, nil
}

func (s *dissertationService) UpdateProgress(ctx context.Context, actor models.Actor, id string, progress int) (*models.Dissertation, error) {
	var updated models.Dissertation

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		d, err := getDissertation(ctx, repos, id)
		if err != nil {
			return err
		}
		if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
			return err
		}
		if err := workflow.CanUpdateProgress(d.Status, progress).Error(); err != nil {
			return err
		}

		updated = *d
		updated.ProgressPercentage = progress
		updated.UpdatedAt = s.now()

		ok, err := repos.Dissertations.UpdateState(ctx, &updated, d.Status)
		if err != nil {
			return models.Internal("failed to update progress", err)
		}
		if !ok {
			return fmt.Errorf("%w: dissertation %s changed concurrently", models.ErrInvalidState, d.ID)
		}
		return nil
	})
	s.metrics.Decision("update_progress", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dissertation_id", updated.ID).
		Int("progress", updated.ProgressPercentage).
		Msg("Dissertation progress updated")

	if updated.StudentID != nil {
		s.notifier.Emit(ctx, progressUpdatedNotice(*updated.StudentID, &updated))
	}

	return &updated, nil
}
