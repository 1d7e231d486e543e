package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type DissertationRepository interface {
	Create(ctx context.Context, d *models.Dissertation) error
	GetByID(ctx context.Context, id string) (*models.Dissertation, error)
	UpdateDetails(ctx context.Context, d *models.Dissertation) error
	// UpdateState writes status, progress, start date and student, but only
	// while the stored status still equals from.
	UpdateState(ctx context.Context, d *models.Dissertation, from models.DissertationStatus) (bool, error)
	FindAssignedByStudent(ctx context.Context, studentID, excludeID string) (*models.Dissertation, error)
	Delete(ctx context.Context, id string, allowed ...models.DissertationStatus) (bool, error)
	DeletePendingProposalsByStudent(ctx context.Context, studentID, excludeID string) (int64, error)
	List(ctx context.Context, filter models.DissertationFilter) ([]models.Dissertation, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	GetByDissertationAndStudent(ctx context.Context, dissertationID, studentID string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, now time.Time) (bool, error)
	// RejectPendingByDissertation rejects the pending applications of a
	// dissertation except excludeID and returns the rows it changed.
	RejectPendingByDissertation(ctx context.Context, dissertationID, excludeID string, now time.Time) ([]models.Application, error)
	// DeletePendingByStudent removes the student's pending applications except
	// excludeID and returns the removed rows.
	DeletePendingByStudent(ctx context.Context, studentID, excludeID string) ([]models.Application, error)
	ListPendingByDissertation(ctx context.Context, dissertationID string) ([]models.Application, error)
	ListByDissertation(ctx context.Context, dissertationID string) ([]models.ApplicationWithDetails, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ApplicationWithDetails, error)
	ListPendingBySupervisor(ctx context.Context, supervisorID string) ([]models.ApplicationWithDetails, error)
	Delete(ctx context.Context, id string, from models.ApplicationStatus) (bool, error)
	DeleteByDissertation(ctx context.Context, dissertationID string) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}

// LockRepository serialises decisions about the same student or dissertation.
// Locks are held until the surrounding transaction ends, so callers take
// them inside WithinTx, student before dissertation.
type LockRepository interface {
	LockStudent(ctx context.Context, studentID string) error
	// LockDissertation is a no-op for unknown ids.
	LockDissertation(ctx context.Context, dissertationID string) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users         UserRepository
	Dissertations DissertationRepository
	Applications  ApplicationRepository
	Notifications NotificationRepository
	Locks         LockRepository
}

// Store hands out repositories and runs units of work atomically. Inside
// WithinTx only the repositories passed to fn may be used.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
