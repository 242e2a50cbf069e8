package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/models"
)

// SchedulerFactory builds the alarm scheduler of one user. loc is the zone
// medication times are computed in.
type SchedulerFactory func(userID string, loc *time.Location) AlarmScheduler

type entry struct {
	store    *Store
	lastUsed time.Time
}

// Manager keeps one loaded Store per user.
type Manager struct {
	mu      sync.Mutex
	stores  map[string]*entry
	closing map[string]chan struct{}

	persistence Persistence
	schedulers  SchedulerFactory
	logger      *zap.Logger
	opts        []Option
	now         func() time.Time
}

// NewManager creates a Manager. opts are applied to every Store it creates.
func NewManager(persistence Persistence, schedulers SchedulerFactory, logger *zap.Logger, opts ...Option) *Manager {
	return &Manager{
		stores:      make(map[string]*entry),
		closing:     make(map[string]chan struct{}),
		persistence: persistence,
		schedulers:  schedulers,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
	}
}

// Get returns the loaded Store of session, loading it on first use. loc only
// applies to the first load of a user. A Store being evicted is waited for,
// so the reload sees its last writes.
func (m *Manager) Get(ctx context.Context, session models.Session, loc *time.Location) (*Store, error) {
	for {
		m.mu.Lock()
		if wait, ok := m.closing[session.UserID]; ok {
			m.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		e, ok := m.stores[session.UserID]
		if !ok || e.store.State() == StateClosed {
			logger := m.logger.With(zap.String("user_id", session.UserID))
			e = &entry{store: New(m.persistence, m.schedulers(session.UserID, loc), logger, m.opts...)}
			m.stores[session.UserID] = e
		}
		e.lastUsed = m.now()
		s := e.store
		m.mu.Unlock()

		if _, err := s.Load(ctx, &session); err != nil {
			if errors.Is(err, ErrClosed) {
				continue
			}
			return nil, err
		}
		return s, nil
	}
}

// detach removes the Store of userID and marks it closing. m.mu must be held.
func (m *Manager) detach(userID string) (*Store, chan struct{}) {
	e := m.stores[userID]
	delete(m.stores, userID)
	done := make(chan struct{})
	m.closing[userID] = done
	return e.store, done
}

// release closes s, flushing its writes, then lets Get reload userID.
func (m *Manager) release(userID string, s *Store, done chan struct{}) {
	s.Close()
	m.mu.Lock()
	delete(m.closing, userID)
	m.mu.Unlock()
	close(done)
}

// Evict flushes and drops the Store of userID. The next Get reloads it.
func (m *Manager) Evict(userID string) {
	m.mu.Lock()
	if _, ok := m.stores[userID]; !ok {
		wait, closing := m.closing[userID]
		m.mu.Unlock()
		if closing {
			<-wait
		}
		return
	}
	s, done := m.detach(userID)
	m.mu.Unlock()
	m.release(userID, s, done)
}

// EvictIdle flushes and drops every Store unused for at least maxIdle and
// returns how many went.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	type idle struct {
		userID string
		store  *Store
		done   chan struct{}
	}

	m.mu.Lock()
	cutoff := m.now().Add(-maxIdle)
	var evicted []idle
	for userID, e := range m.stores {
		if e.lastUsed.After(cutoff) {
			continue
		}
		s, done := m.detach(userID)
		evicted = append(evicted, idle{userID, s, done})
	}
	m.mu.Unlock()

	for _, i := range evicted {
		m.release(i.userID, i.store, i.done)
	}
	if len(evicted) > 0 {
		m.logger.Debug("idle records released", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// RunIdleSweeper evicts idle Stores every interval until ctx is done. It
// blocks, so call it in a goroutine.
func (m *Manager) RunIdleSweeper(ctx context.Context, maxIdle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(maxIdle)
		}
	}
}

// Close flushes and stops every Store.
func (m *Manager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range stores {
		e.store.Close()
	}
}
