package service

import (
	"context"
	"fmt"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/workflow"
)

// InvariantGuard runs the cross-entity preconditions against the repositories
// the caller is working with, so checks and writes share one transaction.
type InvariantGuard struct{}

// CheckApplication verifies a student may apply to d.
func (InvariantGuard) CheckApplication(ctx context.Context, repos repository.Repositories, actor models.Actor, d *models.Dissertation) error {
	assigned, err := repos.Dissertations.FindAssignedByStudent(ctx, actor.UserID, "")
	if err != nil {
		return models.Internal("failed to check existing assignment", err)
	}

	return workflow.CanApply(workflow.ApplyContext{
		Role:                    actor.Role,
		DissertationStatus:      d.Status,
		HasAssignedDissertation: assigned != nil,
	}).Error()
}

// CheckAssignee verifies studentID is a student with no assigned dissertation
// other than excludeDissertationID.
func (InvariantGuard) CheckAssignee(ctx context.Context, repos repository.Repositories, studentID, excludeDissertationID string) error {
	student, err := repos.Users.GetByID(ctx, studentID)
	if err != nil {
		return models.Internal("failed to load student", err)
	}
	if student == nil {
		return fmt.Errorf("%w: student %s", models.ErrNotFound, studentID)
	}

	assigned, err := repos.Dissertations.FindAssignedByStudent(ctx, studentID, excludeDissertationID)
	if err != nil {
		return models.Internal("failed to check existing assignment", err)
	}

	return workflow.CanAssignStudent(workflow.AssigneeContext{
		StudentID:          studentID,
		Role:               student.Role,
		HasOtherAssignment: assigned != nil,
	}).Error()
}

// CheckProposal verifies the actor may propose a topic to supervisorID and
// returns the proposing student's record.
func (InvariantGuard) CheckProposal(ctx context.Context, repos repository.Repositories, actor models.Actor, supervisorID string) (*models.User, error) {
	supervisor, err := repos.Users.GetByID(ctx, supervisorID)
	if err != nil {
		return nil, models.Internal("failed to load supervisor", err)
	}
	if supervisor == nil {
		return nil, fmt.Errorf("%w: supervisor %s", models.ErrNotFound, supervisorID)
	}

	assigned, err := repos.Dissertations.FindAssignedByStudent(ctx, actor.UserID, "")
	if err != nil {
		return nil, models.Internal("failed to check existing assignment", err)
	}

	err = workflow.CanPropose(workflow.ProposalContext{
		Role:                    actor.Role,
		HasAssignedDissertation: assigned != nil,
		SupervisorRole:          supervisor.Role,
	}).Error()
	if err != nil {
		return nil, err
	}

	student, err := repos.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, models.Internal("failed to load student", err)
	}
	if student == nil {
		student = &models.User{ID: actor.UserID, Role: actor.Role, Name: "A student"}
	}
	return student, nil
}
