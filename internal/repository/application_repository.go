package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/rs/zerolog"
)

const applicationColumns = `id, dissertation_id, student_id, status, message, created_at, updated_at`

type applicationRepository struct {
	*PostgresRepository
}

func NewApplicationRepository(db Querier, logger zerolog.Logger) ApplicationRepository {
	return &applicationRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func scanApplication(row rowScanner) (*models.Application, error) {
	a := &models.Application{}
	err := row.Scan(
		&a.ID,
		&a.DissertationID,
		&a.StudentID,
		&a.Status,
		&a.Message,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (r *applicationRepository) Create(ctx context.Context, a *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.DissertationID,
		a.StudentID,
		a.Status,
		a.Message,
		a.CreatedAt,
		a.UpdatedAt,
	)

	return translate(err)
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (r *applicationRepository) GetByDissertationAndStudent(ctx context.Context, dissertationID, studentID string) (*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE dissertation_id = $1 AND student_id = $2
	`

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, dissertationID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, now time.Time) (bool, error) {
	query := `
		UPDATE applications
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, from, to, now)
	if err != nil {
		return false, err
	}

	n, err := rowsAffected(res)
	return n == 1, err
}

func (r *applicationRepository) RejectPendingByDissertation(ctx context.Context, dissertationID, excludeID string, now time.Time) ([]models.Application, error) {
	query := `
		UPDATE applications
		SET status = 'rejected', updated_at = $3
		WHERE dissertation_id = $1 AND status = 'pending' AND id <> $2
		RETURNING ` + applicationColumns

	return r.queryApplications(ctx, query, dissertationID, excludeID, now)
}

func (r *applicationRepository) DeletePendingByStudent(ctx context.Context, studentID, excludeID string) ([]models.Application, error) {
	query := `
		DELETE FROM applications
		WHERE student_id = $1 AND status = 'pending' AND id <> $2
		RETURNING ` + applicationColumns

	return r.queryApplications(ctx, query, studentID, excludeID)
}

func (r *applicationRepository) ListPendingByDissertation(ctx context.Context, dissertationID string) ([]models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE dissertation_id = $1 AND status = 'pending'
		ORDER BY created_at
	`

	return r.queryApplications(ctx, query, dissertationID)
}

func (r *applicationRepository) queryApplications(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applications := make([]models.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		applications = append(applications, *a)
	}

	return applications, rows.Err()
}

const applicationDetailsQuery = `
	SELECT
		a.id, a.dissertation_id, a.student_id, a.status, a.message, a.created_at, a.updated_at,
		d.title, d.supervisor_id,
		COALESCE(u.name || ' ' || u.surname, ''), COALESCE(u.email, '')
	FROM applications a
	JOIN dissertations d ON a.dissertation_id = d.id
	LEFT JOIN users u ON a.student_id = u.id
`

func (r *applicationRepository) ListByDissertation(ctx context.Context, dissertationID string) ([]models.ApplicationWithDetails, error) {
	query := applicationDetailsQuery + `
		WHERE a.dissertation_id = $1
		ORDER BY a.created_at DESC
	`
	return r.queryDetails(ctx, query, dissertationID)
}

func (r *applicationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ApplicationWithDetails, error) {
	query := applicationDetailsQuery + `
		WHERE a.student_id = $1
		ORDER BY a.created_at DESC
	`
	return r.queryDetails(ctx, query, studentID)
}

func (r *applicationRepository) ListPendingBySupervisor(ctx context.Context, supervisorID string) ([]models.ApplicationWithDetails, error) {
	query := applicationDetailsQuery + `
		WHERE d.supervisor_id = $1 AND a.status = 'pending'
		ORDER BY a.created_at DESC
	`
	return r.queryDetails(ctx, query, supervisorID)
}

func (r *applicationRepository) queryDetails(ctx context.Context, query string, args ...any) ([]models.ApplicationWithDetails, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applications := make([]models.ApplicationWithDetails, 0)
	for rows.Next() {
		var a models.ApplicationWithDetails
		err := rows.Scan(
			&a.ID,
			&a.DissertationID,
			&a.StudentID,
			&a.Status,
			&a.Message,
			&a.CreatedAt,
			&a.UpdatedAt,
			&a.DissertationTitle,
			&a.SupervisorID,
			&a.StudentName,
			&a.StudentEmail,
		)
		if err != nil {
			return nil, err
		}
		applications = append(applications, a)
	}

	return applications, rows.Err()
}

func (r *applicationRepository) Delete(ctx context.Context, id string, from models.ApplicationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1 AND status = $2`, id, from)
	if err != nil {
		return false, err
	}

	n, err := rowsAffected(res)
	return n == 1, err
}

func (r *applicationRepository) DeleteByDissertation(ctx context.Context, dissertationID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE dissertation_id = $1`, dissertationID)
	if err != nil {
		return 0, err
	}

	return rowsAffected(res)
}
