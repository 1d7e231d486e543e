package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/rs/zerolog"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresStore(db, zerolog.Nop()), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

var applicationRowColumns = []string{"id", "dissertation_id", "student_id", "status", "message", "created_at", "updated_at"}

func TestDissertationUpdateStateIsConditional(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	student := "s1"
	d := &models.Dissertation{
		ID:                 "d1",
		Status:             models.DissertationStatusAssigned,
		ProgressPercentage: 0,
		DateStarted:        &now,
		StudentID:          &student,
		UpdatedAt:          now,
	}

	tests := []struct {
		name     string
		affected int64
		err      error
		want     bool
		wantErr  error
	}{
		{name: "row still in expected status", affected: 1, want: true},
		{name: "status moved underneath", affected: 0, want: false},
		{
			name:    "student already holds an assignment",
			err:     &pq.Error{Code: "23505", Constraint: "uq_dissertations_assigned_student"},
			wantErr: ErrStudentAlreadyAssigned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMock(t)

			exec := mock.ExpectExec(q("UPDATE dissertations") + ".*" + q("WHERE id = $1 AND status = $2")).
				WithArgs("d1", "available", "assigned", 0, now, "s1", now)
			if tt.err != nil {
				exec.WillReturnError(tt.err)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			ok, err := store.Repositories().Dissertations.UpdateState(context.Background(), d, models.DissertationStatusAvailable)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestDissertationDeleteRestrictsStatuses(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(q("DELETE FROM dissertations WHERE id = $1 AND status = ANY($2)")).
		WithArgs("d1", pq.Array([]string{"available", "pending_approval"})).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.Repositories().Dissertations.Delete(context.Background(), "d1",
		models.DissertationStatusAvailable, models.DissertationStatusPendingApproval)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Error("Delete reported a row for a dissertation in another status")
	}
}

func TestDissertationGetByIDMissing(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(q("FROM dissertations WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	d, err := store.Repositories().Dissertations.GetByID(context.Background(), "missing")
	if err != nil || d != nil {
		t.Errorf("GetByID = %v, %v; want nil, nil", d, err)
	}
}

func TestDissertationListBuildsFilter(t *testing.T) {
	store, mock := newMock(t)
	status := models.DissertationStatusPendingApproval
	supervisor := "t1"
	created := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "track", "title", "description", "status", "progress_percentage",
		"date_created", "date_started", "deadline", "supervisor_id", "student_id", "created_at", "updated_at",
	}).AddRow("d1", "Data Science", "Streaming joins at scale", "", "pending_approval", 0,
		created, nil, nil, "t1", "s1", created, created)

	mock.ExpectQuery(q("WHERE status = $1 AND supervisor_id = $2 ORDER BY date_created DESC")).
		WithArgs("pending_approval", "t1").
		WillReturnRows(rows)

	list, err := store.Repositories().Dissertations.List(context.Background(), models.DissertationFilter{
		Status:       &status,
		SupervisorID: &supervisor,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].StudentRef() != "s1" || list[0].DateStarted != nil {
		t.Errorf("List = %+v", list)
	}
}

func TestApplicationCascadesReturnRows(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	t.Run("reject competitors", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(q("SET status = 'rejected', updated_at = $3") + ".*" +
			q("WHERE dissertation_id = $1 AND status = 'pending' AND id <> $2") + ".*RETURNING").
			WithArgs("d1", "a1", now).
			WillReturnRows(sqlmock.NewRows(applicationRowColumns).
				AddRow("a2", "d1", "s2", "rejected", "", now, now).
				AddRow("a3", "d1", "s3", "rejected", "", now, now))

		rejected, err := store.Repositories().Applications.RejectPendingByDissertation(context.Background(), "d1", "a1", now)
		if err != nil {
			t.Fatalf("RejectPendingByDissertation: %v", err)
		}
		if len(rejected) != 2 || rejected[0].StudentID != "s2" || rejected[1].Status != models.ApplicationStatusRejected {
			t.Errorf("rejected = %+v", rejected)
		}
	})

	t.Run("withdraw student requests", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(q("DELETE FROM applications") + ".*" +
			q("WHERE student_id = $1 AND status = 'pending' AND id <> $2") + ".*RETURNING").
			WithArgs("s1", "a1").
			WillReturnRows(sqlmock.NewRows(applicationRowColumns).
				AddRow("a4", "d2", "s1", "pending", "hello", now, now))

		removed, err := store.Repositories().Applications.DeletePendingByStudent(context.Background(), "s1", "a1")
		if err != nil {
			t.Fatalf("DeletePendingByStudent: %v", err)
		}
		if len(removed) != 1 || removed[0].DissertationID != "d2" {
			t.Errorf("removed = %+v", removed)
		}
	})
}

func TestApplicationCreateDuplicate(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(q("INSERT INTO applications")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_applications_dissertation_student"})

	err := store.Repositories().Applications.Create(context.Background(), &models.Application{
		ID: "a1", DissertationID: "d1", StudentID: "s1", Status: models.ApplicationStatusPending, CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, ErrDuplicateApplication) {
		t.Errorf("err = %v, want ErrDuplicateApplication", err)
	}
}

func TestApplicationUpdateStatusIsConditional(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(q("WHERE id = $1 AND status = $2")).
		WithArgs("a1", "pending", "approved", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.Repositories().Applications.UpdateStatus(context.Background(), "a1",
		models.ApplicationStatusPending, models.ApplicationStatusApproved, now)
	if err != nil || ok {
		t.Errorf("UpdateStatus = %v, %v; want false, nil", ok, err)
	}
}

func TestLocks(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(q("SELECT pg_advisory_xact_lock($1, hashtext($2))")).
		WithArgs(studentLockSpace, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT id FROM dissertations WHERE id = $1 FOR UPDATE")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("d1"))
	mock.ExpectQuery(q("SELECT id FROM dissertations WHERE id = $1 FOR UPDATE")).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	locks := store.Repositories().Locks
	if err := locks.LockStudent(ctx, "s1"); err != nil {
		t.Errorf("LockStudent: %v", err)
	}
	if err := locks.LockDissertation(ctx, "d1"); err != nil {
		t.Errorf("LockDissertation: %v", err)
	}
	if err := locks.LockDissertation(ctx, "gone"); err != nil {
		t.Errorf("LockDissertation(unknown): %v", err)
	}
}

func TestWithinTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("SELECT pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
			return repos.Locks.LockStudent(ctx, "s1")
		})
		if err != nil {
			t.Errorf("WithinTx: %v", err)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		refused := errors.New("refused")
		err := store.WithinTx(context.Background(), func(context.Context, Repositories) error {
			return refused
		})
		if !errors.Is(err, refused) {
			t.Errorf("err = %v, want %v", err, refused)
		}
	})

	t.Run("unique violation at commit", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_dissertations_assigned_student"})

		err := store.WithinTx(context.Background(), func(context.Context, Repositories) error {
			return nil
		})
		if !errors.Is(err, ErrStudentAlreadyAssigned) {
			t.Errorf("err = %v, want ErrStudentAlreadyAssigned", err)
		}
	})
}
