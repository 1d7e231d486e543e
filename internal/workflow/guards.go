package workflow

import (
	"fmt"

	"github.com/pmitsakas/thesisflow/internal/models"
)

// GuardResult is the outcome of a precondition check. Kind is the sentinel
// from models that a denial maps to.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    error
}

// Error returns nil when allowed, otherwise an error wrapping Kind.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Kind == nil {
		return fmt.Errorf("%s", r.Reason)
	}
	return fmt.Errorf("%w: %s", r.Kind, r.Reason)
}

func allow() GuardResult {
	return GuardResult{Allowed: true}
}

func deny(kind error, format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...), Kind: kind}
}

// DecisionContext describes who is acting on a supervisor-owned resource.
type DecisionContext struct {
	Actor        models.Actor
	SupervisorID string
}

// CanDecide allows the dissertation's supervisor and admins.
func CanDecide(ctx DecisionContext) GuardResult {
	if ctx.Actor.IsAdmin() || ctx.Actor.UserID == ctx.SupervisorID {
		return allow()
	}
	return deny(models.ErrAccessDenied, "only the supervisor or an admin can perform this action")
}

// CanProcessApplication requires a pending application.
func CanProcessApplication(applicationID string, status models.ApplicationStatus) GuardResult {
	if status != models.ApplicationStatusPending {
		return deny(models.ErrAlreadyProcessed, "application %s has already been %s", applicationID, status)
	}
	return allow()
}

// ApplyContext carries what is known when a student applies for a topic.
type ApplyContext struct {
	Role                    models.Role
	DissertationStatus      models.DissertationStatus
	HasAssignedDissertation bool
}

// CanApply evaluates application creation.
// Rules:
// - only students apply
// - the student holds no assigned dissertation
// - the dissertation is available
func CanApply(ctx ApplyContext) GuardResult {
	if ctx.Role != models.RoleStudent {
		return deny(models.ErrRoleMismatch, "only students can apply for dissertations")
	}
	if ctx.HasAssignedDissertation {
		return deny(models.ErrAlreadyAssigned, "you already have an assigned dissertation")
	}
	if ctx.DissertationStatus != models.DissertationStatusAvailable {
		return deny(models.ErrNotAvailable, "dissertation is not available for applications (status: %s)", ctx.DissertationStatus)
	}
	return allow()
}

// ExistingApplicationResult maps a prior application by the same student on
// the same dissertation to the reason a new one is refused.
func ExistingApplicationResult(existing *models.Application) GuardResult {
	if existing == nil {
		return allow()
	}
	switch existing.Status {
	case models.ApplicationStatusPending:
		return deny(models.ErrDuplicateApplication, "you have already applied for this dissertation")
	case models.ApplicationStatusRejected:
		return deny(models.ErrDuplicateApplication, "your application for this dissertation was rejected; you cannot re-apply")
	default:
		return deny(models.ErrDuplicateApplication, "your application for this dissertation has already been approved")
	}
}

// AssigneeContext describes the student about to be bound to a dissertation.
type AssigneeContext struct {
	StudentID          string
	Role               models.Role
	HasOtherAssignment bool
}

// CanAssignStudent checks the role and the one-assignment-per-student rule.
func CanAssignStudent(ctx AssigneeContext) GuardResult {
	if ctx.Role != models.RoleStudent {
		return deny(models.ErrRoleMismatch, "user %s is not a student", ctx.StudentID)
	}
	if ctx.HasOtherAssignment {
		return deny(models.ErrAlreadyAssigned, "student %s already has an assigned dissertation", ctx.StudentID)
	}
	return allow()
}

// CanDirectAssign allows assignment from available or pending_approval.
func CanDirectAssign(status models.DissertationStatus) GuardResult {
	switch status {
	case models.DissertationStatusAvailable, models.DissertationStatusPendingApproval:
		return allow()
	default:
		return deny(models.ErrInvalidState, "dissertation must be available or pending approval to be assigned (status: %s)", status)
	}
}

// CanApproveApplicationFor requires the topic to still be open.
func CanApproveApplicationFor(status models.DissertationStatus) GuardResult {
	if status != models.DissertationStatusAvailable {
		return deny(models.ErrNotAvailable, "dissertation is no longer available (status: %s)", status)
	}
	return allow()
}

// CanDecideProposal requires a dissertation awaiting approval with a proposer.
func CanDecideProposal(d *models.Dissertation) GuardResult {
	if d.Status != models.DissertationStatusPendingApproval {
		return deny(models.ErrInvalidState, "dissertation is not a pending proposal (status: %s)", d.Status)
	}
	if d.StudentID == nil {
		return deny(models.ErrInvalidState, "proposal has no proposing student")
	}
	return allow()
}

// CanDeleteDissertation allows deletion only before a student is bound.
func CanDeleteDissertation(status models.DissertationStatus) GuardResult {
	switch status {
	case models.DissertationStatusAvailable, models.DissertationStatusPendingApproval:
		return allow()
	default:
		return deny(models.ErrInvalidState, "cannot delete a dissertation with status %s", status)
	}
}

// CanChangeStatus validates a supervisor-driven status change. Entering
// assigned through this path only resumes a paused dissertation; binding a
// student goes through the orchestrator.
func CanChangeStatus(d *models.Dissertation, next models.DissertationStatus) GuardResult {
	if !models.IsValidDissertationStatus(string(next)) {
		v := models.NewValidationError()
		v.Add("status", "Invalid status value")
		return GuardResult{Allowed: false, Reason: "invalid status value", Kind: v}
	}
	if !IsValidTransition(d.Status, next) {
		return deny(models.ErrInvalidTransition, "cannot change status from %s to %s", d.Status, next)
	}
	if next == models.DissertationStatusAssigned {
		if d.Status != models.DissertationStatusPaused || d.StudentID == nil {
			return deny(models.ErrInvalidState, "only a paused dissertation can be resumed; use assign to bind a student")
		}
	}
	return allow()
}

// CanUpdateProgress accepts progress only while work is underway.
func CanUpdateProgress(status models.DissertationStatus, progress int) GuardResult {
	if progress < models.ProgressMin || progress > models.ProgressMax {
		v := models.NewValidationError()
		v.Add("progress_percentage", "Progress must be between 0 and 100")
		return GuardResult{Allowed: false, Reason: "progress out of range", Kind: v}
	}
	if status != models.DissertationStatusAssigned && status != models.DissertationStatusPaused {
		return deny(models.ErrInvalidState, "progress can only be updated for assigned or paused dissertations")
	}
	return allow()
}

// WithdrawContext describes a request to delete an application.
type WithdrawContext struct {
	Actor   models.Actor
	OwnerID string
	Status  models.ApplicationStatus
}

// CanWithdrawApplication lets the owner or an admin remove a pending application.
func CanWithdrawApplication(ctx WithdrawContext) GuardResult {
	if !ctx.Actor.IsAdmin() && ctx.Actor.UserID != ctx.OwnerID {
		return deny(models.ErrAccessDenied, "you can only delete your own applications")
	}
	if ctx.Status != models.ApplicationStatusPending {
		return deny(models.ErrAlreadyProcessed, "only pending applications can be deleted")
	}
	return allow()
}

// CreateContext describes a topic a teacher publishes. SupervisorRole is
// the role of the named supervisor, the actor by default.
type CreateContext struct {
	Role           models.Role
	SupervisorRole models.Role
}

// CanCreateDissertation allows teachers to publish topics supervised by a teacher.
func CanCreateDissertation(ctx CreateContext) GuardResult {
	if ctx.Role != models.RoleTeacher {
		return deny(models.ErrRoleMismatch, "only teachers can create dissertations")
	}
	if ctx.SupervisorRole != models.RoleTeacher {
		return deny(models.ErrRoleMismatch, "supervisor must be a teacher")
	}
	return allow()
}

// ProposalContext carries what is known when a student proposes a topic.
type ProposalContext struct {
	Role                    models.Role
	HasAssignedDissertation bool
	SupervisorRole          models.Role
}

// CanPropose evaluates a student-authored proposal.
func CanPropose(ctx ProposalContext) GuardResult {
	if ctx.Role != models.RoleStudent {
		return deny(models.ErrRoleMismatch, "only students can propose dissertations")
	}
	if ctx.HasAssignedDissertation {
		return deny(models.ErrAlreadyAssigned, "you already have an assigned dissertation")
	}
	if ctx.SupervisorRole != models.RoleTeacher {
		return deny(models.ErrRoleMismatch, "selected supervisor is not a teacher")
	}
	return allow()
}
