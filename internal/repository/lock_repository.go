package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
)

// studentLockSpace is the first key of the two-key advisory lock, keeping
// student locks apart from any other advisory locks on the database.
const studentLockSpace = 0x7466

type lockRepository struct {
	*PostgresRepository
}

func NewLockRepository(db Querier, logger zerolog.Logger) LockRepository {
	return &lockRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *lockRepository) LockStudent(ctx context.Context, studentID string) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, studentLockSpace, studentID)
	return err
}

func (r *lockRepository) LockDissertation(ctx context.Context, dissertationID string) error {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM dissertations WHERE id = $1 FOR UPDATE`, dissertationID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
