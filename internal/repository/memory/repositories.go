package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
)

type userRepository struct {
	acc access
}

func (r *userRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.acc.read(func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

type dissertationRepository struct {
	acc access
}

// checkAssigned emulates the partial unique index on assigned students.
func checkAssigned(st *state, d models.Dissertation) error {
	if d.Status != models.DissertationStatusAssigned || d.StudentID == nil {
		return nil
	}
	for id, other := range st.dissertations {
		if id == d.ID {
			continue
		}
		if other.Status == models.DissertationStatusAssigned && other.HasStudent(*d.StudentID) {
			return repository.ErrStudentAlreadyAssigned
		}
	}
	return nil
}

func (r *dissertationRepository) Create(_ context.Context, d *models.Dissertation) error {
	return r.acc.write(func(st *state) error {
		if _, exists := st.dissertations[d.ID]; exists {
			return fmt.Errorf("dissertation %s already exists", d.ID)
		}
		stored := cloneDissertation(*d)
		if err := checkAssigned(st, stored); err != nil {
			return err
		}
		st.dissertations[d.ID] = stored
		st.track(d.ID)
		return nil
	})
}

func (r *dissertationRepository) GetByID(_ context.Context, id string) (*models.Dissertation, error) {
	var out *models.Dissertation
	err := r.acc.read(func(st *state) error {
		if d, ok := st.dissertations[id]; ok {
			c := cloneDissertation(d)
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *dissertationRepository) UpdateDetails(_ context.Context, d *models.Dissertation) error {
	return r.acc.write(func(st *state) error {
		current, ok := st.dissertations[d.ID]
		if !ok {
			return nil
		}
		current.Track = d.Track
		current.Title = d.Title
		current.Description = d.Description
		current.Deadline = d.Deadline
		current.UpdatedAt = d.UpdatedAt
		st.dissertations[d.ID] = cloneDissertation(current)
		return nil
	})
}

func (r *dissertationRepository) UpdateState(_ context.Context, d *models.Dissertation, from models.DissertationStatus) (bool, error) {
	var updated bool
	err := r.acc.write(func(st *state) error {
		current, ok := st.dissertations[d.ID]
		if !ok || current.Status != from {
			return nil
		}
		current.Status = d.Status
		current.ProgressPercentage = d.ProgressPercentage
		current.DateStarted = d.DateStarted
		current.StudentID = d.StudentID
		current.UpdatedAt = d.UpdatedAt
		current = cloneDissertation(current)
		if err := checkAssigned(st, current); err != nil {
			return err
		}
		st.dissertations[d.ID] = current
		updated = true
		return nil
	})
	return updated, err
}

func (r *dissertationRepository) FindAssignedByStudent(_ context.Context, studentID, excludeID string) (*models.Dissertation, error) {
	var out *models.Dissertation
	err := r.acc.read(func(st *state) error {
		for id, d := range st.dissertations {
			if id != excludeID && d.Status == models.DissertationStatusAssigned && d.HasStudent(studentID) {
				c := cloneDissertation(d)
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *dissertationRepository) Delete(_ context.Context, id string, allowed ...models.DissertationStatus) (bool, error) {
	var deleted bool
	err := r.acc.write(func(st *state) error {
		d, ok := st.dissertations[id]
		if !ok {
			return nil
		}
		if len(allowed) > 0 && !containsStatus(allowed, d.Status) {
			return nil
		}
		delete(st.dissertations, id)
		// applications.dissertation_id has ON DELETE CASCADE
		for appID, a := range st.applications {
			if a.DissertationID == id {
				delete(st.applications, appID)
			}
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *dissertationRepository) DeletePendingProposalsByStudent(_ context.Context, studentID, excludeID string) (int64, error) {
	var n int64
	err := r.acc.write(func(st *state) error {
		for id, d := range st.dissertations {
			if id == excludeID || d.Status != models.DissertationStatusPendingApproval || !d.HasStudent(studentID) {
				continue
			}
			delete(st.dissertations, id)
			for appID, a := range st.applications {
				if a.DissertationID == id {
					delete(st.applications, appID)
				}
			}
			n++
		}
		return nil
	})
	return n, err
}

func (r *dissertationRepository) List(_ context.Context, filter models.DissertationFilter) ([]models.Dissertation, error) {
	out := make([]models.Dissertation, 0)
	err := r.acc.read(func(st *state) error {
		for _, d := range st.dissertations {
			if filter.Status != nil && d.Status != *filter.Status {
				continue
			}
			if filter.Track != nil && d.Track != *filter.Track {
				continue
			}
			if filter.SupervisorID != nil && d.SupervisorID != *filter.SupervisorID {
				continue
			}
			if filter.StudentID != nil && !d.HasStudent(*filter.StudentID) {
				continue
			}
			out = append(out, cloneDissertation(d))
		}
		sort.Slice(out, func(i, j int) bool {
			return st.newer(out[i].ID, out[i].DateCreated, out[j].ID, out[j].DateCreated)
		})
		return nil
	})
	return out, err
}

func containsStatus(list []models.DissertationStatus, s models.DissertationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type applicationRepository struct {
	acc access
}

func (r *applicationRepository) Create(_ context.Context, a *models.Application) error {
	return r.acc.write(func(st *state) error {
		if _, exists := st.applications[a.ID]; exists {
			return fmt.Errorf("application %s already exists", a.ID)
		}
		if _, ok := st.dissertations[a.DissertationID]; !ok {
			return fmt.Errorf("dissertation %s does not exist", a.DissertationID)
		}
		for _, other := range st.applications {
			if other.DissertationID == a.DissertationID && other.StudentID == a.StudentID {
				return repository.ErrDuplicateApplication
			}
		}
		st.applications[a.ID] = *a
		st.track(a.ID)
		return nil
	})
}

func (r *applicationRepository) GetByID(_ context.Context, id string) (*models.Application, error) {
	var out *models.Application
	err := r.acc.read(func(st *state) error {
		if a, ok := st.applications[id]; ok {
			out = &a
		}
		return nil
	})
	return out, err
}

func (r *applicationRepository) GetByDissertationAndStudent(_ context.Context, dissertationID, studentID string) (*models.Application, error) {
	var out *models.Application
	err := r.acc.read(func(st *state) error {
		for _, a := range st.applications {
			if a.DissertationID == dissertationID && a.StudentID == studentID {
				found := a
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *applicationRepository) UpdateStatus(_ context.Context, id string, from, to models.ApplicationStatus, now time.Time) (bool, error) {
	var updated bool
	err := r.acc.write(func(st *state) error {
		a, ok := st.applications[id]
		if !ok || a.Status != from {
			return nil
		}
		a.Status = to
		a.UpdatedAt = now
		st.applications[id] = a
		updated = true
		return nil
	})
	return updated, err
}

func (r *applicationRepository) RejectPendingByDissertation(_ context.Context, dissertationID, excludeID string, now time.Time) ([]models.Application, error) {
	rejected := make([]models.Application, 0)
	err := r.acc.write(func(st *state) error {
		for id, a := range st.applications {
			if id == excludeID || a.DissertationID != dissertationID || a.Status != models.ApplicationStatusPending {
				continue
			}
			a.Status = models.ApplicationStatusRejected
			a.UpdatedAt = now
			st.applications[id] = a
			rejected = append(rejected, a)
		}
		sortApplicationsOldestFirst(st, rejected)
		return nil
	})
	return rejected, err
}

func (r *applicationRepository) DeletePendingByStudent(_ context.Context, studentID, excludeID string) ([]models.Application, error) {
	removed := make([]models.Application, 0)
	err := r.acc.write(func(st *state) error {
		for id, a := range st.applications {
			if id != excludeID && a.StudentID == studentID && a.Status == models.ApplicationStatusPending {
				removed = append(removed, a)
				delete(st.applications, id)
			}
		}
		sortApplicationsOldestFirst(st, removed)
		return nil
	})
	return removed, err
}

func (r *applicationRepository) ListPendingByDissertation(_ context.Context, dissertationID string) ([]models.Application, error) {
	out := make([]models.Application, 0)
	err := r.acc.read(func(st *state) error {
		for _, a := range st.applications {
			if a.DissertationID == dissertationID && a.Status == models.ApplicationStatusPending {
				out = append(out, a)
			}
		}
		sortApplicationsOldestFirst(st, out)
		return nil
	})
	return out, err
}

func sortApplicationsOldestFirst(st *state, apps []models.Application) {
	sort.Slice(apps, func(i, j int) bool {
		return st.newer(apps[j].ID, apps[j].CreatedAt, apps[i].ID, apps[i].CreatedAt)
	})
}

func (r *applicationRepository) ListByDissertation(_ context.Context, dissertationID string) ([]models.ApplicationWithDetails, error) {
	return r.details(func(a models.Application, _ models.Dissertation) bool {
		return a.DissertationID == dissertationID
	})
}

func (r *applicationRepository) ListByStudent(_ context.Context, studentID string) ([]models.ApplicationWithDetails, error) {
	return r.details(func(a models.Application, _ models.Dissertation) bool {
		return a.StudentID == studentID
	})
}

func (r *applicationRepository) ListPendingBySupervisor(_ context.Context, supervisorID string) ([]models.ApplicationWithDetails, error) {
	return r.details(func(a models.Application, d models.Dissertation) bool {
		return d.SupervisorID == supervisorID && a.Status == models.ApplicationStatusPending
	})
}

func (r *applicationRepository) details(match func(models.Application, models.Dissertation) bool) ([]models.ApplicationWithDetails, error) {
	out := make([]models.ApplicationWithDetails, 0)
	err := r.acc.read(func(st *state) error {
		for _, a := range st.applications {
			d, ok := st.dissertations[a.DissertationID]
			if !ok || !match(a, d) {
				continue
			}
			item := models.ApplicationWithDetails{
				Application:       a,
				DissertationTitle: d.Title,
				SupervisorID:      d.SupervisorID,
			}
			if u, ok := st.users[a.StudentID]; ok {
				item.StudentName = u.FullName()
				item.StudentEmail = u.Email
			}
			out = append(out, item)
		}
		sort.Slice(out, func(i, j int) bool {
			return st.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

func (r *applicationRepository) Delete(_ context.Context, id string, from models.ApplicationStatus) (bool, error) {
	var deleted bool
	err := r.acc.write(func(st *state) error {
		a, ok := st.applications[id]
		if !ok || a.Status != from {
			return nil
		}
		delete(st.applications, id)
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *applicationRepository) DeleteByDissertation(_ context.Context, dissertationID string) (int64, error) {
	var n int64
	err := r.acc.write(func(st *state) error {
		for id, a := range st.applications {
			if a.DissertationID == dissertationID {
				delete(st.applications, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type notificationRepository struct {
	acc access
}

func (r *notificationRepository) Create(_ context.Context, n *models.Notification) error {
	return r.acc.write(func(st *state) error {
		if _, exists := st.notifications[n.ID]; exists {
			return fmt.Errorf("notification %s already exists", n.ID)
		}
		st.notifications[n.ID] = cloneNotification(*n)
		st.track(n.ID)
		return nil
	})
}

func (r *notificationRepository) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	out := make([]models.Notification, 0)
	err := r.acc.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID != userID || (unreadOnly && n.IsRead) {
				continue
			}
			out = append(out, cloneNotification(n))
		}
		sort.Slice(out, func(i, j int) bool {
			return st.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	var count int
	err := r.acc.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *notificationRepository) MarkAsRead(_ context.Context, id, userID string) (bool, error) {
	var updated bool
	err := r.acc.write(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return nil
		}
		n.IsRead = true
		st.notifications[id] = n
		updated = true
		return nil
	})
	return updated, err
}

func (r *notificationRepository) MarkAllAsRead(_ context.Context, userID string) (int64, error) {
	var count int64
	err := r.acc.write(func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				n.IsRead = true
				st.notifications[id] = n
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *notificationRepository) DeleteAllByUser(_ context.Context, userID string) (int64, error) {
	var count int64
	err := r.acc.write(func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID {
				delete(st.notifications, id)
				delete(st.seq, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

// lockRepository does nothing: WithinTx already holds the store mutex for
// the whole transaction.
type lockRepository struct{}

func (lockRepository) LockStudent(context.Context, string) error { return nil }

func (lockRepository) LockDissertation(context.Context, string) error { return nil }
