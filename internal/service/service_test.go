package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/repository/memory"
	"github.com/rs/zerolog"
)

var (
	teacher1 = models.Actor{UserID: "t1", Role: models.RoleTeacher}
	teacher2 = models.Actor{UserID: "t2", Role: models.RoleTeacher}
	student1 = models.Actor{UserID: "s1", Role: models.RoleStudent}
	student2 = models.Actor{UserID: "s2", Role: models.RoleStudent}
	admin    = models.Actor{UserID: "a1", Role: models.RoleAdmin}
)

type fixture struct {
	store         *memory.Store
	metrics       *metrics.Collector
	notifications NotificationService
	dissertations DissertationService
	applications  ApplicationService
	orchestrator  AssignmentOrchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, nil)
}

// newFixtureOn runs the services over wrap(store) when wrap is set; the
// fixture helpers keep reading the plain memory store.
func newFixtureOn(t *testing.T, wrap func(*memory.Store) repository.Store) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, u := range []models.User{
		{ID: "t1", Name: "Eleni", Surname: "Papadaki", Email: "t1@uni.test", Role: models.RoleTeacher, IsActive: true},
		{ID: "t2", Name: "Nikos", Surname: "Georgiou", Email: "t2@uni.test", Role: models.RoleTeacher, IsActive: true},
		{ID: "s1", Name: "Maria", Surname: "Ioannou", Email: "s1@uni.test", Role: models.RoleStudent, IsActive: true},
		{ID: "s2", Name: "Kostas", Surname: "Dimas", Email: "s2@uni.test", Role: models.RoleStudent, IsActive: true},
		{ID: "a1", Name: "Admin", Email: "a1@uni.test", Role: models.RoleAdmin, IsActive: true},
	} {
		store.PutUser(u)
	}

	var services repository.Store = store
	if wrap != nil {
		services = wrap(store)
	}

	log := zerolog.Nop()
	collector := metrics.NewCollector()
	notifications := NewNotificationService(services, nil, collector, log)

	return &fixture{
		store:         store,
		metrics:       collector,
		notifications: notifications,
		dissertations: NewDissertationService(services, notifications, collector, log),
		applications:  NewApplicationService(services, collector, log),
		orchestrator:  NewAssignmentOrchestrator(services, notifications, collector, log),
	}
}

func (f *fixture) publish(t *testing.T, supervisor models.Actor, title string) *models.Dissertation {
	t.Helper()
	d, err := f.dissertations.CreateDissertation(context.Background(), supervisor, &models.CreateDissertationRequest{
		Track:       string(models.TrackComputerScience),
		Title:       title,
		Description: "Topic published for tests",
	})
	if err != nil {
		t.Fatalf("CreateDissertation(%q): %v", title, err)
	}
	return d
}

func (f *fixture) apply(t *testing.T, student models.Actor, dissertationID string) *models.Application {
	t.Helper()
	app, err := f.applications.Apply(context.Background(), student, &models.CreateApplicationRequest{
		DissertationID: dissertationID,
		Message:        "I would like to work on this topic",
	})
	if err != nil {
		t.Fatalf("Apply(%s, %s): %v", student.UserID, dissertationID, err)
	}
	return app
}

func (f *fixture) propose(t *testing.T, student models.Actor, supervisorID, title string) *models.Dissertation {
	t.Helper()
	d, err := f.dissertations.ProposeDissertation(context.Background(), student, &models.ProposeDissertationRequest{
		Track:        string(models.TrackDataScience),
		Title:        title,
		SupervisorID: supervisorID,
	})
	if err != nil {
		t.Fatalf("ProposeDissertation(%q): %v", title, err)
	}
	return d
}

func (f *fixture) dissertation(t *testing.T, id string) *models.Dissertation {
	t.Helper()
	d, err := f.store.Repositories().Dissertations.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return d
}

func (f *fixture) application(t *testing.T, id string) *models.Application {
	t.Helper()
	a, err := f.store.Repositories().Applications.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return a
}

// inbox returns the notification types of userID, sorted.
func (f *fixture) inbox(t *testing.T, userID string) []string {
	t.Helper()
	list, err := f.store.Repositories().Notifications.ListByUser(context.Background(), userID, false, models.NotificationListLimit)
	if err != nil {
		t.Fatalf("ListByUser(%s): %v", userID, err)
	}
	types := make([]string, 0, len(list))
	for _, n := range list {
		types = append(types, string(n.Type))
	}
	sort.Strings(types)
	return types
}

func assertInbox(t *testing.T, got []string, want ...string) {
	t.Helper()
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestApproveApplicationCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d1 := f.publish(t, teacher1, "Federated learning for hospitals")
	d2 := f.publish(t, teacher2, "Graph databases for fraud detection")
	a1 := f.apply(t, student1, d1.ID)
	a2 := f.apply(t, student1, d2.ID)
	competitor := f.apply(t, student2, d1.ID)
	proposal := f.propose(t, student1, "t2", "Energy-aware scheduling on Kubernetes")

	result, err := f.orchestrator.ApproveApplication(ctx, teacher1, a1.ID)
	if err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}

	got := f.dissertation(t, d1.ID)
	if got.Status != models.DissertationStatusAssigned || !got.HasStudent("s1") {
		t.Fatalf("d1 = %s/%s, want assigned to s1", got.Status, got.StudentRef())
	}
	if got.DateStarted == nil {
		t.Error("date_started not set on assignment")
	}
	if app := f.application(t, a1.ID); app.Status != models.ApplicationStatusApproved {
		t.Errorf("approved application status = %s", app.Status)
	}
	if app := f.application(t, a2.ID); app != nil {
		t.Errorf("pending application on d2 survived: %+v", app)
	}
	if d := f.dissertation(t, proposal.ID); d != nil {
		t.Errorf("pending proposal survived: %+v", d)
	}
	if app := f.application(t, competitor.ID); app.Status != models.ApplicationStatusRejected {
		t.Errorf("competing application status = %s, want rejected", app.Status)
	}
	if d := f.dissertation(t, d2.ID); d.Status != models.DissertationStatusAvailable {
		t.Errorf("d2 status = %s, want available", d.Status)
	}

	if result.RejectedApplications != 1 || result.RemovedApplications != 1 || result.RemovedProposals != 1 {
		t.Errorf("result = %+v", result)
	}

	assertInbox(t, f.inbox(t, "s1"), "application_approved", "application_rejected")
	assertInbox(t, f.inbox(t, "s2"), "application_rejected")
}

func TestConcurrentApprovalsAssignOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 6
	apps := make([]*models.Application, n)
	for i := range apps {
		d := f.publish(t, teacher1, fmt.Sprintf("Distributed consensus study %d", i))
		apps[i] = f.apply(t, student1, d.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for _, app := range apps {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.orchestrator.ApproveApplication(ctx, teacher1, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(app.ID)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successful approvals = %d, want 1", successes)
	}
	for _, err := range failures {
		if !errors.Is(err, models.ErrAlreadyAssigned) &&
			!errors.Is(err, models.ErrNotFound) &&
			!errors.Is(err, models.ErrAlreadyProcessed) {
			t.Errorf("unexpected failure: %v", err)
		}
	}

	studentID := "s1"
	status := models.DissertationStatusAssigned
	assigned, err := f.store.Repositories().Dissertations.List(ctx, models.DissertationFilter{Status: &status, StudentID: &studentID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(assigned) != 1 {
		t.Errorf("assigned dissertations for s1 = %d, want 1", len(assigned))
	}
}

func TestApplyRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	open := f.publish(t, teacher1, "Compiler optimisations for WebAssembly")
	taken := f.publish(t, teacher1, "Formal verification of smart contracts")
	a := f.apply(t, student2, taken.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, a.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}

	tests := []struct {
		name  string
		actor models.Actor
		id    string
		want  error
	}{
		{"teacher cannot apply", teacher2, open.ID, models.ErrRoleMismatch},
		{"assigned student cannot apply", student2, open.ID, models.ErrAlreadyAssigned},
		{"dissertation not available", student1, taken.ID, models.ErrNotAvailable},
		{"unknown dissertation", student1, "missing", models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.applications.Apply(ctx, tt.actor, &models.CreateApplicationRequest{DissertationID: tt.id})
			if !errors.Is(err, tt.want) {
				t.Errorf("Apply err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("message too long", func(t *testing.T) {
		_, err := f.applications.Apply(ctx, student1, &models.CreateApplicationRequest{
			DissertationID: open.ID,
			Message:        strings.Repeat("x", models.ApplicationMessageMaxLength+1),
		})
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Apply err = %v, want validation error", err)
		}
		if _, ok := verr.Fields["message"]; !ok {
			t.Errorf("fields = %v, want message", verr.Fields)
		}
	})
}

func TestApplyTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Privacy-preserving analytics pipelines")
	first := f.apply(t, student1, d.ID)

	_, err := f.applications.Apply(ctx, student1, &models.CreateApplicationRequest{DissertationID: d.ID})
	if !errors.Is(err, models.ErrDuplicateApplication) {
		t.Fatalf("second Apply err = %v, want ErrDuplicateApplication", err)
	}

	if _, err := f.orchestrator.RejectApplication(ctx, teacher1, first.ID); err != nil {
		t.Fatalf("RejectApplication: %v", err)
	}
	_, err = f.applications.Apply(ctx, student1, &models.CreateApplicationRequest{DissertationID: d.ID})
	if !errors.Is(err, models.ErrDuplicateApplication) || !strings.Contains(err.Error(), "cannot re-apply") {
		t.Errorf("Apply after rejection err = %v", err)
	}
}

func TestRejectApplication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Anomaly detection in network telemetry")
	app := f.apply(t, student1, d.ID)

	if _, err := f.orchestrator.RejectApplication(ctx, teacher2, app.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign supervisor err = %v, want ErrAccessDenied", err)
	}

	rejected, err := f.orchestrator.RejectApplication(ctx, teacher1, app.ID)
	if err != nil {
		t.Fatalf("RejectApplication: %v", err)
	}
	if rejected.Status != models.ApplicationStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	assertInbox(t, f.inbox(t, "s1"), "application_rejected")

	if _, err := f.orchestrator.RejectApplication(ctx, teacher1, app.ID); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Errorf("second reject err = %v, want ErrAlreadyProcessed", err)
	}
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, app.ID); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Errorf("approve after reject err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestApproveApplicationByAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Self-healing microservice meshes")
	app := f.apply(t, student1, d.ID)

	if _, err := f.orchestrator.ApproveApplication(ctx, teacher2, app.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Fatalf("foreign supervisor err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.orchestrator.ApproveApplication(ctx, admin, app.ID); err != nil {
		t.Fatalf("admin ApproveApplication: %v", err)
	}
	if got := f.dissertation(t, d.ID); !got.HasStudent("s1") {
		t.Errorf("student = %q, want s1", got.StudentRef())
	}
}

func TestDeleteDissertation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	open := f.publish(t, teacher1, "Explainable models for credit scoring")
	f.apply(t, student1, open.ID)
	f.apply(t, student2, open.ID)

	if err := f.orchestrator.DeleteDissertation(ctx, teacher2, open.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign supervisor err = %v, want ErrAccessDenied", err)
	}
	if err := f.orchestrator.DeleteDissertation(ctx, teacher1, open.ID); err != nil {
		t.Fatalf("DeleteDissertation: %v", err)
	}
	if d := f.dissertation(t, open.ID); d != nil {
		t.Error("dissertation still stored")
	}
	assertInbox(t, f.inbox(t, "s1"), "dissertation_deleted")
	assertInbox(t, f.inbox(t, "s2"), "dissertation_deleted")

	taken := f.publish(t, teacher1, "Real-time collaborative editing with CRDTs")
	app := f.apply(t, student1, taken.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, app.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if err := f.orchestrator.DeleteDissertation(ctx, teacher1, taken.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("delete assigned err = %v, want ErrInvalidState", err)
	}
}

func TestProposalFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		other := f.publish(t, teacher2, "Serverless cold start mitigation")
		pending := f.apply(t, student1, other.ID)

		p := f.propose(t, student1, "t1", "Carbon-aware batch scheduling")
		if p.Status != models.DissertationStatusPendingApproval || !p.HasStudent("s1") {
			t.Fatalf("proposal = %s/%s", p.Status, p.StudentRef())
		}

		list, err := f.store.Repositories().Notifications.ListByUser(ctx, "t1", false, 10)
		if err != nil || len(list) != 1 {
			t.Fatalf("supervisor notifications = %v, %v", list, err)
		}
		if list[0].Type != models.NotificationProposalReceived || !strings.Contains(list[0].Message, "Maria Ioannou") {
			t.Errorf("proposal notice = %+v", list[0])
		}

		if _, err := f.orchestrator.ApproveProposal(ctx, teacher2, p.ID); !errors.Is(err, models.ErrAccessDenied) {
			t.Errorf("foreign supervisor err = %v, want ErrAccessDenied", err)
		}
		result, err := f.orchestrator.ApproveProposal(ctx, teacher1, p.ID)
		if err != nil {
			t.Fatalf("ApproveProposal: %v", err)
		}
		if result.Dissertation.Status != models.DissertationStatusAssigned || result.RemovedApplications != 1 {
			t.Errorf("result = %+v", result)
		}
		if app := f.application(t, pending.ID); app != nil {
			t.Error("pending application survived proposal approval")
		}
		assertInbox(t, f.inbox(t, "s1"), "proposal_approved", "application_rejected")

		if _, err := f.orchestrator.ApproveProposal(ctx, teacher1, p.ID); !errors.Is(err, models.ErrInvalidState) {
			t.Errorf("second approval err = %v, want ErrInvalidState", err)
		}
	})

	t.Run("reject", func(t *testing.T) {
		f := newFixture(t)
		p := f.propose(t, student1, "t1", "Carbon-aware batch scheduling")

		if err := f.orchestrator.RejectProposal(ctx, teacher1, p.ID); err != nil {
			t.Fatalf("RejectProposal: %v", err)
		}
		if d := f.dissertation(t, p.ID); d != nil {
			t.Error("rejected proposal still stored")
		}
		assertInbox(t, f.inbox(t, "s1"), "proposal_rejected")
	})

	t.Run("refusals", func(t *testing.T) {
		f := newFixture(t)
		req := &models.ProposeDissertationRequest{
			Track:        string(models.TrackDataScience),
			Title:        "Carbon-aware batch scheduling",
			SupervisorID: "t1",
		}

		if _, err := f.dissertations.ProposeDissertation(ctx, teacher2, req); !errors.Is(err, models.ErrRoleMismatch) {
			t.Errorf("teacher proposing err = %v, want ErrRoleMismatch", err)
		}

		toStudent := *req
		toStudent.SupervisorID = "s2"
		if _, err := f.dissertations.ProposeDissertation(ctx, student1, &toStudent); !errors.Is(err, models.ErrRoleMismatch) {
			t.Errorf("student supervisor err = %v, want ErrRoleMismatch", err)
		}

		unknown := *req
		unknown.SupervisorID = "nobody"
		if _, err := f.dissertations.ProposeDissertation(ctx, student1, &unknown); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("unknown supervisor err = %v, want ErrNotFound", err)
		}
	})
}

func TestAssignDissertation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d1 := f.publish(t, teacher1, "Mutation testing at scale")
	d2 := f.publish(t, teacher2, "Latency prediction for edge inference")
	own := f.apply(t, student1, d1.ID)
	competitor := f.apply(t, student2, d1.ID)
	elsewhere := f.apply(t, student1, d2.ID)

	if _, err := f.orchestrator.AssignDissertation(ctx, admin, d1.ID, "t2"); !errors.Is(err, models.ErrRoleMismatch) {
		t.Errorf("assigning a teacher err = %v, want ErrRoleMismatch", err)
	}

	result, err := f.orchestrator.AssignDissertation(ctx, admin, d1.ID, "s1")
	if err != nil {
		t.Fatalf("AssignDissertation: %v", err)
	}
	if result.Application == nil || result.Application.ID != own.ID {
		t.Errorf("result application = %+v, want %s", result.Application, own.ID)
	}
	if app := f.application(t, own.ID); app.Status != models.ApplicationStatusApproved {
		t.Errorf("own application status = %s, want approved", app.Status)
	}
	if app := f.application(t, competitor.ID); app.Status != models.ApplicationStatusRejected {
		t.Errorf("competing application status = %s, want rejected", app.Status)
	}
	if app := f.application(t, elsewhere.ID); app != nil {
		t.Error("application on d2 survived direct assignment")
	}
	assertInbox(t, f.inbox(t, "s1"), "dissertation_assigned", "application_rejected")
	assertInbox(t, f.inbox(t, "s2"), "application_rejected")

	if _, err := f.orchestrator.AssignDissertation(ctx, teacher2, d2.ID, "s1"); !errors.Is(err, models.ErrAlreadyAssigned) {
		t.Errorf("second assignment err = %v, want ErrAlreadyAssigned", err)
	}
	if _, err := f.orchestrator.AssignDissertation(ctx, teacher1, d1.ID, "s2"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("reassigning err = %v, want ErrInvalidState", err)
	}
}

func TestStatusAndProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Adaptive bitrate streaming over QUIC")

	if _, err := f.dissertations.UpdateProgress(ctx, teacher1, d.ID, 10); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("progress on available err = %v, want ErrInvalidState", err)
	}
	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, d.ID, "assigned"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("assigning without student err = %v, want ErrInvalidState", err)
	}

	app := f.apply(t, student1, d.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, app.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}

	var verr *models.ValidationError
	if _, err := f.dissertations.UpdateProgress(ctx, teacher1, d.ID, 101); !errors.As(err, &verr) {
		t.Errorf("progress 101 err = %v, want validation error", err)
	}

	got, err := f.dissertations.UpdateProgress(ctx, teacher1, d.ID, 40)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if got.ProgressPercentage != 40 {
		t.Errorf("progress = %d, want 40", got.ProgressPercentage)
	}

	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, d.ID, "bogus"); !errors.As(err, &verr) {
		t.Errorf("unknown status err = %v, want validation error", err)
	}
	if _, err := f.dissertations.UpdateStatus(ctx, teacher2, d.ID, "paused"); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign supervisor err = %v, want ErrAccessDenied", err)
	}

	got, err = f.dissertations.UpdateStatus(ctx, teacher1, d.ID, "completed")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != models.DissertationStatusCompleted || got.ProgressPercentage != 100 {
		t.Errorf("completed dissertation = %s/%d", got.Status, got.ProgressPercentage)
	}
	if stored := f.dissertation(t, d.ID); stored.ProgressPercentage != 100 {
		t.Errorf("stored progress = %d, want 100", stored.ProgressPercentage)
	}

	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, d.ID, "assigned"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("completed -> assigned err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.dissertations.UpdateProgress(ctx, teacher1, d.ID, 50); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("progress on completed err = %v, want ErrInvalidState", err)
	}

	assertInbox(t, f.inbox(t, "s1"), "application_approved", "progress_updated", "status_changed")
}

func TestResumeConflictsWithOtherAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.publish(t, teacher1, "Differential privacy for telemetry")
	second := f.publish(t, teacher2, "Static analysis of Go concurrency")

	a := f.apply(t, student1, first.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, a.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, first.ID, "paused"); err != nil {
		t.Fatalf("pause: %v", err)
	}

	b := f.apply(t, student1, second.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher2, b.ID); err != nil {
		t.Fatalf("ApproveApplication on second: %v", err)
	}

	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, first.ID, "assigned"); !errors.Is(err, models.ErrAlreadyAssigned) {
		t.Errorf("resume err = %v, want ErrAlreadyAssigned", err)
	}
	if d := f.dissertation(t, first.ID); d.Status != models.DissertationStatusPaused {
		t.Errorf("first status = %s, want paused", d.Status)
	}
}

func TestReopenedProposalIsNotAssignedByStatusChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := f.publish(t, teacher2, "Formal verification of smart contracts")
	app := f.apply(t, student1, other.ID)
	proposal := f.propose(t, student1, "t1", "Federated learning on edge devices")

	reopened, err := f.dissertations.UpdateStatus(ctx, teacher1, proposal.ID, "available")
	if err != nil {
		t.Fatalf("UpdateStatus(available): %v", err)
	}
	if reopened.StudentID != nil {
		t.Errorf("reopened StudentID = %s, want none", *reopened.StudentID)
	}
	if stored := f.dissertation(t, proposal.ID); stored.StudentID != nil {
		t.Errorf("stored StudentID = %s, want none", *stored.StudentID)
	}

	if _, err := f.dissertations.UpdateStatus(ctx, teacher1, proposal.ID, "assigned"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("available -> assigned err = %v, want ErrInvalidState", err)
	}
	if d := f.dissertation(t, proposal.ID); d.Status != models.DissertationStatusAvailable || d.DateStarted != nil {
		t.Errorf("dissertation = %s started=%v, want available and not started", d.Status, d.DateStarted)
	}
	if a := f.application(t, app.ID); a.Status != models.ApplicationStatusPending {
		t.Errorf("other application status = %s, want pending", a.Status)
	}
	assertInbox(t, f.inbox(t, "s1"), "status_changed")
}

func TestCreateDissertationSupervisor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name           string
		actor          models.Actor
		supervisorID   string
		wantSupervisor string
		wantErr        error
	}{
		{name: "defaults to caller", actor: teacher1, wantSupervisor: "t1"},
		{name: "names another teacher", actor: teacher1, supervisorID: "t2", wantSupervisor: "t2"},
		{name: "names a student", actor: teacher1, supervisorID: "s1", wantErr: models.ErrRoleMismatch},
		{name: "names an unknown user", actor: teacher1, supervisorID: "ghost", wantErr: models.ErrNotFound},
		{name: "student caller", actor: student1, supervisorID: "t1", wantErr: models.ErrRoleMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.dissertations.CreateDissertation(ctx, tt.actor, &models.CreateDissertationRequest{
				Track:        string(models.TrackSoftwareEngineering),
				Title:        "Property-based testing for " + tt.name,
				SupervisorID: tt.supervisorID,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateDissertation: %v", err)
			}
			if d.SupervisorID != tt.wantSupervisor {
				t.Errorf("SupervisorID = %s, want %s", d.SupervisorID, tt.wantSupervisor)
			}
		})
	}
}

func TestWithdrawApplication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Secure boot chains for IoT devices")
	app := f.apply(t, student1, d.ID)

	if err := f.applications.Withdraw(ctx, student2, app.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign student err = %v, want ErrAccessDenied", err)
	}
	if err := f.applications.Withdraw(ctx, student1, app.ID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := f.applications.Withdraw(ctx, student1, app.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second withdraw err = %v, want ErrNotFound", err)
	}

	again := f.apply(t, student1, d.ID)
	if _, err := f.orchestrator.ApproveApplication(ctx, teacher1, again.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if err := f.applications.Withdraw(ctx, student1, again.ID); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Errorf("withdraw approved err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestReadModels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d1 := f.publish(t, teacher1, "Zero-knowledge proofs for voting")
	d2 := f.publish(t, teacher1, "Benchmarking vector databases")
	f.publish(t, teacher2, "Robust OCR for historical archives")
	f.apply(t, student1, d1.ID)
	f.apply(t, student2, d1.ID)
	f.apply(t, student2, d2.ID)
	f.propose(t, student1, "t1", "Learned indexes for time series")

	available, err := f.dissertations.ListAvailable(ctx, "")
	if err != nil || len(available) != 3 {
		t.Errorf("ListAvailable = %d, %v; want 3", len(available), err)
	}
	if _, err := f.dissertations.ListAvailable(ctx, "Astrology"); err == nil {
		t.Error("ListAvailable accepted an unknown track")
	}

	mine, err := f.dissertations.ListMine(ctx, teacher1)
	if err != nil || len(mine) != 3 {
		t.Errorf("teacher ListMine = %d, %v; want 3", len(mine), err)
	}

	proposals, err := f.dissertations.ListPendingProposals(ctx, teacher1)
	if err != nil || len(proposals) != 1 {
		t.Errorf("ListPendingProposals = %d, %v; want 1", len(proposals), err)
	}
	if others, _ := f.dissertations.ListPendingProposals(ctx, teacher2); len(others) != 0 {
		t.Errorf("teacher2 sees %d proposals", len(others))
	}

	pending, err := f.applications.ListPending(ctx, teacher1)
	if err != nil || len(pending) != 3 {
		t.Errorf("ListPending = %d, %v; want 3", len(pending), err)
	}

	byDissertation, err := f.applications.ListByDissertation(ctx, teacher1, d1.ID)
	if err != nil || len(byDissertation) != 2 {
		t.Errorf("ListByDissertation = %d, %v; want 2", len(byDissertation), err)
	}
	if _, err := f.applications.ListByDissertation(ctx, teacher2, d1.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign ListByDissertation err = %v, want ErrAccessDenied", err)
	}

	own, err := f.applications.ListMine(ctx, student2)
	if err != nil || len(own) != 2 {
		t.Errorf("student ListMine = %d, %v; want 2", len(own), err)
	}
	if _, err := f.applications.ListMine(ctx, teacher1); !errors.Is(err, models.ErrRoleMismatch) {
		t.Errorf("teacher ListMine err = %v, want ErrRoleMismatch", err)
	}
}

func TestUpdateDissertation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.publish(t, teacher1, "Energy profiling of mobile apps")

	title := "  Energy profiling of Android applications  "
	got, err := f.dissertations.UpdateDissertation(ctx, teacher1, d.ID, &models.UpdateDissertationRequest{Title: &title})
	if err != nil {
		t.Fatalf("UpdateDissertation: %v", err)
	}
	if got.Title != "Energy profiling of Android applications" {
		t.Errorf("title = %q", got.Title)
	}

	short := "Too short"
	var verr *models.ValidationError
	if _, err := f.dissertations.UpdateDissertation(ctx, teacher1, d.ID, &models.UpdateDissertationRequest{Title: &short}); !errors.As(err, &verr) {
		t.Errorf("short title err = %v, want validation error", err)
	}
	if _, err := f.dissertations.UpdateDissertation(ctx, teacher2, d.ID, &models.UpdateDissertationRequest{Title: &title}); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("foreign supervisor err = %v, want ErrAccessDenied", err)
	}
	if stored := f.dissertation(t, d.ID); stored.Title != "Energy profiling of Android applications" {
		t.Errorf("stored title = %q", stored.Title)
	}

	if _, err := f.dissertations.CreateDissertation(ctx, student1, &models.CreateDissertationRequest{
		Track: string(models.TrackDataScience),
		Title: "Students cannot publish topics",
	}); !errors.Is(err, models.ErrRoleMismatch) {
		t.Errorf("student create err = %v, want ErrRoleMismatch", err)
	}
}

func TestNotificationInbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.notifications.Emit(ctx,
		Notice{Recipient: "s1", Type: models.NotificationStatusChanged, Title: "One", Message: "first"},
		Notice{Recipient: "s1", Type: models.NotificationStatusChanged, Title: "Two", Message: "second"},
		Notice{Recipient: "s2", Type: models.NotificationStatusChanged, Title: "Other", Message: "third"},
		Notice{Recipient: "s1", Type: "unknown", Title: "Bad", Message: "dropped"},
	)

	resp, err := f.notifications.ListMine(ctx, student1, false)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(resp.Notifications) != 2 || resp.UnreadCount != 2 {
		t.Fatalf("ListMine = %d notifications, %d unread", len(resp.Notifications), resp.UnreadCount)
	}

	id := resp.Notifications[0].ID
	if err := f.notifications.MarkAsRead(ctx, student2, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("foreign MarkAsRead err = %v, want ErrNotFound", err)
	}
	if err := f.notifications.MarkAsRead(ctx, student1, id); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}

	unread, err := f.notifications.ListMine(ctx, student1, true)
	if err != nil || len(unread.Notifications) != 1 || unread.UnreadCount != 1 {
		t.Errorf("unread = %+v, %v", unread, err)
	}

	if n, err := f.notifications.MarkAllAsRead(ctx, student1); err != nil || n != 1 {
		t.Errorf("MarkAllAsRead = %d, %v; want 1", n, err)
	}
	if n, err := f.notifications.ClearAll(ctx, student1); err != nil || n != 2 {
		t.Errorf("ClearAll = %d, %v; want 2", n, err)
	}
	if resp, _ := f.notifications.ListMine(ctx, student2, false); len(resp.Notifications) != 1 {
		t.Errorf("s2 notifications = %d, want 1", len(resp.Notifications))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate(strings.Repeat("é", 12), 10); got != strings.Repeat("é", 7)+"..." {
		t.Errorf("truncate = %q", got)
	}
}
