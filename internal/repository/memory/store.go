// Package memory provides an in-process repository.Store. Transactions run
// on a cloned state that replaces the live one only when the unit of work
// succeeds; both unique constraints of the relational schema are enforced.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type state struct {
	users         map[string]models.User
	dissertations map[string]models.Dissertation
	applications  map[string]models.Application
	notifications map[string]models.Notification
	seq           map[string]int64
	nextSeq       int64
}

func newState() *state {
	return &state{
		users:         make(map[string]models.User),
		dissertations: make(map[string]models.Dissertation),
		applications:  make(map[string]models.Application),
		notifications: make(map[string]models.Notification),
		seq:           make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:         make(map[string]models.User, len(s.users)),
		dissertations: make(map[string]models.Dissertation, len(s.dissertations)),
		applications:  make(map[string]models.Application, len(s.applications)),
		notifications: make(map[string]models.Notification, len(s.notifications)),
		seq:           make(map[string]int64, len(s.seq)),
		nextSeq:       s.nextSeq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.dissertations {
		c.dissertations[k] = cloneDissertation(v)
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = cloneNotification(v)
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// track records insertion order so listings are stable for equal timestamps.
func (s *state) track(id string) {
	if _, ok := s.seq[id]; ok {
		return
	}
	s.nextSeq++
	s.seq[id] = s.nextSeq
}

// newer orders by created time descending, then by insertion descending.
func (s *state) newer(aID string, a time.Time, bID string, b time.Time) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return s.seq[aID] > s.seq[bID]
}

type access interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// PutUser inserts or replaces a user. Users are owned elsewhere; this is the
// seeding hook for tests and ephemeral runs.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

func (s *Store) Repositories() repository.Repositories {
	return newRepositories(storeAccess{store: s})
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, newRepositories(txAccess{state: working})); err != nil {
		return err
	}

	s.state = working
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

type storeAccess struct {
	store *Store
}

func (a storeAccess) read(fn func(st *state) error) error {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	return fn(a.store.state)
}

func (a storeAccess) write(fn func(st *state) error) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	working := a.store.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	a.store.state = working
	return nil
}

type txAccess struct {
	state *state
}

func (a txAccess) read(fn func(st *state) error) error {
	return fn(a.state)
}

func (a txAccess) write(fn func(st *state) error) error {
	return fn(a.state)
}

func newRepositories(acc access) repository.Repositories {
	return repository.Repositories{
		Users:         &userRepository{acc: acc},
		Dissertations: &dissertationRepository{acc: acc},
		Applications:  &applicationRepository{acc: acc},
		Notifications: &notificationRepository{acc: acc},
		Locks:         lockRepository{},
	}
}

func cloneDissertation(d models.Dissertation) models.Dissertation {
	if d.DateStarted != nil {
		v := *d.DateStarted
		d.DateStarted = &v
	}
	if d.Deadline != nil {
		v := *d.Deadline
		d.Deadline = &v
	}
	if d.StudentID != nil {
		v := *d.StudentID
		d.StudentID = &v
	}
	return d
}

func cloneNotification(n models.Notification) models.Notification {
	if n.RelatedID != nil {
		v := *n.RelatedID
		n.RelatedID = &v
	}
	if n.RelatedModel != nil {
		v := *n.RelatedModel
		n.RelatedModel = &v
	}
	return n
}
