package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/workflow"
	"github.com/rs/zerolog"
)

type ApplicationService interface {
	Apply(ctx context.Context, actor models.Actor, req *models.CreateApplicationRequest) (*models.Application, error)
	Withdraw(ctx context.Context, actor models.Actor, applicationID string) error
	ListMine(ctx context.Context, actor models.Actor) ([]models.ApplicationWithDetails, error)
	ListPending(ctx context.Context, actor models.Actor) ([]models.ApplicationWithDetails, error)
	ListByDissertation(ctx context.Context, actor models.Actor, dissertationID string) ([]models.ApplicationWithDetails, error)
}

type applicationService struct {
	store   repository.Store
	guard   InvariantGuard
	metrics *metrics.Collector
	logger  zerolog.Logger
	now     clock
}

func NewApplicationService(store repository.Store, collector *metrics.Collector, logger zerolog.Logger) ApplicationService {
	return &applicationService{
		store:   store,
		metrics: collector,
		logger:  logger,
		now:     utcNow,
	}
}

func (s *applicationService) Apply(ctx context.Context, actor models.Actor, req *models.CreateApplicationRequest) (*models.Application, error) {
	now := s.now()
	app := &models.Application{
		ID:             uuid.New().String(),
		DissertationID: strings.TrimSpace(req.DissertationID),
		StudentID:      actor.UserID,
		Status:         models.ApplicationStatusPending,
		Message:        req.Message,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := lockFor(ctx, repos, actor.UserID, app.DissertationID); err != nil {
			return err
		}
		d, err := getDissertation(ctx, repos, app.DissertationID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckApplication(ctx, repos, actor, d); err != nil {
			return err
		}

		existing, err := repos.Applications.GetByDissertationAndStudent(ctx, d.ID, actor.UserID)
		if err != nil {
			return models.Internal("failed to check existing application", err)
		}
		if err := workflow.ExistingApplicationResult(existing).Error(); err != nil {
			return err
		}

		if err := repos.Applications.Create(ctx, app); err != nil {
			if errors.Is(err, repository.ErrDuplicateApplication) {
				return fmt.Errorf("%w: you have already applied for this dissertation", models.ErrDuplicateApplication)
			}
			return models.Internal("failed to create application", err)
		}
		return nil
	})
	s.metrics.Decision("apply", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("application_id", app.ID).
		Str("dissertation_id", app.DissertationID).
		Str("student_id", app.StudentID).
		Msg("Application created")

	return app, nil
}

func (s *applicationService) Withdraw(ctx context.Context, actor models.Actor, applicationID string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		app, err := getApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}

		err = workflow.CanWithdrawApplication(workflow.WithdrawContext{
			Actor:   actor,
			OwnerID: app.StudentID,
			Status:  app.Status,
		}).Error()
		if err != nil {
			return err
		}

		ok, err := repos.Applications.Delete(ctx, app.ID, models.ApplicationStatusPending)
		if err != nil {
			return models.Internal("failed to delete application", err)
		}
		if !ok {
			return fmt.Errorf("%w: application %s", models.ErrAlreadyProcessed, app.ID)
		}
		return nil
	})
	s.metrics.Decision("withdraw_application", outcome(err))
	if err != nil {
		return err
	}

	s.logger.Info().Str("application_id", applicationID).Str("actor_id", actor.UserID).Msg("Application withdrawn")
	return nil
}

func (s *applicationService) ListMine(ctx context.Context, actor models.Actor) ([]models.ApplicationWithDetails, error) {
	if actor.Role != models.RoleStudent {
		return nil, fmt.Errorf("%w: only students have applications", models.ErrRoleMismatch)
	}

	list, err := s.store.Repositories().Applications.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, models.Internal("failed to list applications", err)
	}
	return list, nil
}

// ListPending returns pending applications on the actor's supervised topics.
func (s *applicationService) ListPending(ctx context.Context, actor models.Actor) ([]models.ApplicationWithDetails, error) {
	list, err := s.store.Repositories().Applications.ListPendingBySupervisor(ctx, actor.UserID)
	if err != nil {
		return nil, models.Internal("failed to list pending applications", err)
	}
	return list, nil
}

func (s *applicationService) ListByDissertation(ctx context.Context, actor models.Actor, dissertationID string) ([]models.ApplicationWithDetails, error) {
	repos := s.store.Repositories()

	d, err := getDissertation(ctx, repos, dissertationID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanDecide(workflow.DecisionContext{Actor: actor, SupervisorID: d.SupervisorID}).Error(); err != nil {
		return nil, err
	}

	list, err := repos.Applications.ListByDissertation(ctx, d.ID)
	if err != nil {
		return nil, models.Internal("failed to list applications", err)
	}
	return list, nil
}
