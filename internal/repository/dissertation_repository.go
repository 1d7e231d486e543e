package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/rs/zerolog"
)

const dissertationColumns = `id, track, title, description, status, progress_percentage,
		date_created, date_started, deadline, supervisor_id, student_id, created_at, updated_at`

type dissertationRepository struct {
	*PostgresRepository
}

func NewDissertationRepository(db Querier, logger zerolog.Logger) DissertationRepository {
	return &dissertationRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDissertation(row rowScanner) (*models.Dissertation, error) {
	d := &models.Dissertation{}
	err := row.Scan(
		&d.ID,
		&d.Track,
		&d.Title,
		&d.Description,
		&d.Status,
		&d.ProgressPercentage,
		&d.DateCreated,
		&d.DateStarted,
		&d.Deadline,
		&d.SupervisorID,
		&d.StudentID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func (r *dissertationRepository) Create(ctx context.Context, d *models.Dissertation) error {
	query := `
		INSERT INTO dissertations (` + dissertationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Track,
		d.Title,
		d.Description,
		d.Status,
		d.ProgressPercentage,
		d.DateCreated,
		d.DateStarted,
		d.Deadline,
		d.SupervisorID,
		d.StudentID,
		d.CreatedAt,
		d.UpdatedAt,
	)

	return translate(err)
}

func (r *dissertationRepository) GetByID(ctx context.Context, id string) (*models.Dissertation, error) {
	query := `SELECT ` + dissertationColumns + ` FROM dissertations WHERE id = $1`

	d, err := scanDissertation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (r *dissertationRepository) UpdateDetails(ctx context.Context, d *models.Dissertation) error {
	query := `
		UPDATE dissertations
		SET track = $2, title = $3, description = $4, deadline = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, d.ID, d.Track, d.Title, d.Description, d.Deadline, d.UpdatedAt)
	return err
}

func (r *dissertationRepository) UpdateState(ctx context.Context, d *models.Dissertation, from models.DissertationStatus) (bool, error) {
	query := `
		UPDATE dissertations
		SET status = $3, progress_percentage = $4, date_started = $5, student_id = $6, updated_at = $7
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		d.ID,
		from,
		d.Status,
		d.ProgressPercentage,
		d.DateStarted,
		d.StudentID,
		d.UpdatedAt,
	)
	if err != nil {
		return false, translate(err)
	}

	n, err := rowsAffected(res)
	return n == 1, err
}

func (r *dissertationRepository) FindAssignedByStudent(ctx context.Context, studentID, excludeID string) (*models.Dissertation, error) {
	query := `
		SELECT ` + dissertationColumns + `
		FROM dissertations
		WHERE student_id = $1 AND status = 'assigned' AND id <> $2
		LIMIT 1
	`

	d, err := scanDissertation(r.db.QueryRowContext(ctx, query, studentID, excludeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (r *dissertationRepository) Delete(ctx context.Context, id string, allowed ...models.DissertationStatus) (bool, error) {
	query := `DELETE FROM dissertations WHERE id = $1`
	args := []any{id}

	if len(allowed) > 0 {
		statuses := make([]string, len(allowed))
		for i, s := range allowed {
			statuses[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statuses))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	n, err := rowsAffected(res)
	return n == 1, err
}

func (r *dissertationRepository) DeletePendingProposalsByStudent(ctx context.Context, studentID, excludeID string) (int64, error) {
	query := `
		DELETE FROM dissertations
		WHERE student_id = $1 AND status = 'pending_approval' AND id <> $2
	`

	res, err := r.db.ExecContext(ctx, query, studentID, excludeID)
	if err != nil {
		return 0, err
	}

	return rowsAffected(res)
}

func (r *dissertationRepository) List(ctx context.Context, filter models.DissertationFilter) ([]models.Dissertation, error) {
	var (
		conditions []string
		args       []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Status != nil {
		add("status", *filter.Status)
	}
	if filter.Track != nil {
		add("track", *filter.Track)
	}
	if filter.SupervisorID != nil {
		add("supervisor_id", *filter.SupervisorID)
	}
	if filter.StudentID != nil {
		add("student_id", *filter.StudentID)
	}

	query := `SELECT ` + dissertationColumns + ` FROM dissertations`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY date_created DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dissertations := make([]models.Dissertation, 0)
	for rows.Next() {
		d, err := scanDissertation(rows)
		if err != nil {
			return nil, err
		}
		dissertations = append(dissertations, *d)
	}

	return dissertations, rows.Err()
}
