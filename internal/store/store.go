// store.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package store owns the in-memory record of one signed-in user and applies
// every mutation to it. Persistence and alarm work run on a single background
// worker in mutation order; callers always see their latest write.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
	"github.com/localnerve/stepio/internal/reconcile"
	"github.com/localnerve/stepio/internal/utils"
)

var (
	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("no session")
	// ErrNotReady is returned when the record has not been loaded.
	ErrNotReady = errors.New("store is not loaded")
	// ErrClosed is returned by Load once the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// Persistence reads and writes the per-user document.
type Persistence interface {
	Get(ctx context.Context, userID string) (models.RawRecord, bool, error)
	Put(ctx context.Context, userID string, rec models.Record, merge bool) error
}

// AlarmScheduler is the reminder surface the store drives.
type AlarmScheduler interface {
	Supported() bool
	RequestPermission(ctx context.Context) bool
	RecordPermission(ctx context.Context, granted bool) error
	ScheduleEvent(ctx context.Context, ev models.Event)
	ScheduleMedication(ctx context.Context, med models.Medication)
	CancelEvent(ctx context.Context, ev models.Event)
	CancelMedication(ctx context.Context, med models.Medication)
	RescheduleAll(ctx context.Context, events []models.Event, meds []models.Medication, notifyEvents, notifyMeds bool)
	Pending(ctx context.Context) []notifications.Alarm
}

// State is the lifecycle of a Store.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Store is the state container for one user's record.
type Store struct {
	mu      sync.Mutex
	state   State
	record  models.Record
	session *models.Session

	loadMu sync.Mutex

	persistence Persistence
	alarms      AlarmScheduler
	reconciler  *reconcile.Reconciler
	override    reconcile.AdminOverride
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	taskTimeout time.Duration

	tasks     *queue
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for log and plan timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the generator for new entity ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithReconciler replaces the reconciler used on load.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Store) {
		s.reconciler = r
	}
}

// WithAdminOverride enables the operator pro upgrade on load.
func WithAdminOverride(o reconcile.AdminOverride) Option {
	return func(s *Store) {
		s.override = o
	}
}

// WithTaskTimeout bounds each background persistence or alarm task.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.taskTimeout = d
	}
}

// New creates a Store and starts its background worker. Call Close when done.
func New(persistence Persistence, alarms AlarmScheduler, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		record:      models.NewRecord(),
		persistence: persistence,
		alarms:      alarms,
		reconciler:  reconcile.New(),
		logger:      logger,
		now:         time.Now,
		newID:       utils.NewID,
		taskTimeout: 30 * time.Second,
		tasks:       newQueue(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)
	for {
		t, ok := s.tasks.pop()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
		t(ctx)
		cancel()
		s.tasks.done()
	}
}

func (s *Store) enqueue(t task) {
	if !s.tasks.push(t) {
		s.logger.Warn("store closed, dropping background task")
	}
}

// Flush waits until every queued persistence and alarm task has run.
func (s *Store) Flush() {
	s.tasks.wait()
}

// Close drains the background worker and stops it. A closed store rejects
// every further mutation and load.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.Flush()
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		// the worker drains what was queued before the state changed
		s.tasks.close()
		<-s.done
	})
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Session returns the session the store was loaded with, if any.
func (s *Store) Session() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	sess := *s.session
	return &sess
}

// Load fetches, reconciles and installs the record of session, persists it
// when reconciliation or the admin override changed it, and rebuilds every
// alarm. Without a session the store holds the all-defaults record and never
// persists. Loading an already loaded store returns its snapshot.
func (s *Store) Load(ctx context.Context, session *models.Session) (models.Record, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateReady:
		defer s.mu.Unlock()
		return s.record.Clone(), nil
	case StateClosed:
		s.mu.Unlock()
		return models.Record{}, ErrClosed
	}
	s.state = StateLoading
	s.mu.Unlock()

	if session == nil {
		if !s.install(nil, models.NewRecord()) {
			return models.Record{}, ErrClosed
		}
		return s.Snapshot(), nil
	}

	raw, found, err := s.persistence.Get(ctx, session.UserID)
	if err != nil {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateUninitialized
		}
		s.mu.Unlock()
		return models.Record{}, fmt.Errorf("load record for %s: %w", session.UserID, err)
	}

	var (
		rec   models.Record
		write bool
		merge = true
	)
	if found {
		var changed bool
		rec, changed = s.reconciler.Reconcile(raw)
		var overridden bool
		rec, overridden = s.override.Apply(rec, session.Email)
		write = changed || overridden
	} else {
		rec = models.NewRecord()
		rec.User = &models.User{Name: session.DisplayName, Email: session.Email}
		rec, _ = s.override.Apply(rec, session.Email)
		write, merge = true, false
	}

	if write {
		s.put(ctx, session.UserID, rec, merge)
	}
	s.alarms.RescheduleAll(ctx, rec.Events, rec.Medications, rec.Settings.NotifyEvents, rec.Settings.NotifyMeds)

	if !s.install(session, rec) {
		return models.Record{}, ErrClosed
	}
	s.logger.Info("record loaded",
		zap.String("user_id", session.UserID),
		zap.Bool("found", found),
		zap.Bool("persisted", write))
	return s.Snapshot(), nil
}

// install makes rec the loaded record. It reports false when the store was
// closed while loading.
func (s *Store) install(session *models.Session, rec models.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	if session != nil {
		sess := *session
		s.session = &sess
	} else {
		s.session = nil
	}
	s.record = rec
	s.state = StateReady
	return true
}

func (s *Store) put(ctx context.Context, userID string, rec models.Record, merge bool) {
	if err := s.persistence.Put(ctx, userID, rec, merge); err != nil {
		s.logger.Warn("persist record failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// effect is background work queued after a mutation is applied.
type effect = task

// mutate applies fn to a copy of the record. When fn reports ok the copy
// replaces the record, a write of it is queued, then the effects are queued in
// order. Otherwise the record is left alone. Either way the returned value is
// the record after the call.
func (s *Store) mutate(fn func(rec *models.Record) ([]effect, bool)) models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		if s.state == StateClosed {
			s.logger.Warn("store closed, mutation rejected")
		}
		return s.record.Clone()
	}

	next := s.record.Clone()
	effects, ok := fn(&next)
	if !ok {
		return s.record.Clone()
	}
	s.record = next
	s.persistLocked()
	for _, e := range effects {
		s.enqueue(e)
	}
	return next.Clone()
}

func (s *Store) persistLocked() {
	if s.session == nil {
		return
	}
	userID := s.session.UserID
	rec := s.record.Clone()
	s.enqueue(func(ctx context.Context) {
		s.put(ctx, userID, rec, true)
	})
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}
