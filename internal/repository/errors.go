package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrStudentAlreadyAssigned is raised by the partial unique index on
	// dissertations(student_id) WHERE status = 'assigned'.
	ErrStudentAlreadyAssigned = errors.New("student already has an assigned dissertation")
	// ErrDuplicateApplication is raised by the (dissertation_id, student_id) unique key.
	ErrDuplicateApplication = errors.New("application already exists for this dissertation and student")
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	constraintAssignedStudent   = "uq_dissertations_assigned_student"
	constraintApplicationUnique = "uq_applications_dissertation_student"
)

// translate maps unique violations to repository errors and passes other
// errors through untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case constraintAssignedStudent:
		return errors.Join(ErrStudentAlreadyAssigned, err)
	case constraintApplicationUnique:
		return errors.Join(ErrDuplicateApplication, err)
	default:
		return err
	}
}
