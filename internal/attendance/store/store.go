// Package store holds the in-memory session state. It is the only owner of
// live sessions: callers receive clones and commit mutations back through
// store methods, so every read and write of the backing map happens inside
// the store lock. Session state is volatile by design; the ledger is the
// record of truth.
package store

import (
	"sync"
	"time"

	"github.com/mhliao/crewlog/internal/attendance/authz"
	"github.com/mhliao/crewlog/internal/attendance/domain"
)

// Defaults for the bounded store.
const (
	DefaultCapacity  = 100
	DefaultRetention = 7 * 24 * time.Hour
)

type sessionKey struct {
	workDate string
	project  string
}

// Config controls store bounds.
type Config struct {
	// Capacity is the maximum session count; oldest-created sessions are
	// evicted beyond it.
	Capacity int
	// Retention is how long a session's work date may lie in the past
	// before a sweep removes it.
	Retention time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is a bounded, concurrency-safe map from (work date, project) to
// session.
type Store struct {
	mu        sync.Mutex
	sessions  map[sessionKey]*domain.Session
	capacity  int
	retention time.Duration
	now       func() time.Time
}

// New creates an empty session store.
func New(cfg Config) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		sessions:  make(map[sessionKey]*domain.Session),
		capacity:  cfg.Capacity,
		retention: cfg.Retention,
		now:       cfg.Now,
	}
}

// GetOrCreate returns the session for the work date and project, creating
// it lazily. The requester is recorded as authorized either way. The
// returned session is a clone.
func (s *Store) GetOrCreate(workDate, project, requesterID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{workDate: workDate, project: project}
	session, ok := s.sessions[key]
	if !ok {
		created, err := domain.NewSession(workDate, project, requesterID, s.now)
		if err != nil {
			return nil, err
		}
		key = sessionKey{workDate: created.WorkDate, project: created.Project}
		s.sessions[key] = created
		s.evictOverCapacityLocked()
		session = created
	} else {
		session.Authorize(requesterID)
	}
	return session.Clone(), nil
}

// FindForUser locates the session a user is targeting for the work date.
// Elevated users see every session for the date; scoped users only sessions
// they are authorized on. With a project the match must be exact. Without
// one, a single visible session is returned directly and the most recently
// created wins when several are visible.
func (s *Store) FindForUser(userID string, role authz.Role, project, workDate string) (*domain.Session, bool) {
	if role != authz.RoleElevated && role != authz.RoleScoped {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var visible []*domain.Session
	for key, session := range s.sessions {
		if key.workDate != workDate {
			continue
		}
		if role == authz.RoleScoped && !session.IsAuthorized(userID) {
			continue
		}
		if project != "" && key.project != project {
			continue
		}
		visible = append(visible, session)
	}
	if len(visible) == 0 {
		return nil, false
	}
	return pickNewest(visible).Clone(), true
}

// pickNewest resolves ambiguous targeting: the most recently created session
// wins. The heuristic is isolated here so it can be swapped without
// touching callers.
func pickNewest(sessions []*domain.Session) *domain.Session {
	newest := sessions[0]
	for _, session := range sessions[1:] {
		if session.CreatedAt.After(newest.CreatedAt) {
			newest = session
		}
	}
	return newest
}

// HasStaff reports whether the named person is already on the session.
func (s *Store) HasStaff(workDate, project, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionKey{workDate: workDate, project: project}]
	if !ok {
		return false
	}
	_, found := session.FindStaff(name)
	return found
}

// AddStaff commits a staff entry to the session. Call it only after the
// matching ledger row was written, so memory never runs ahead of the ledger.
func (s *Store) AddStaff(workDate, project string, entry domain.StaffEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionKey{workDate: workDate, project: project}]
	if !ok {
		return domain.ErrStaffNotFound
	}
	return session.AddStaff(entry)
}

// Checkout commits a checkout time to the named staff entry.
func (s *Store) Checkout(workDate, project, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionKey{workDate: workDate, project: project}]
	if !ok {
		return domain.ErrStaffNotFound
	}
	return session.Checkout(name, at)
}

// Len reports the current session count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions whose work date fell out of the retention horizon
// and evicts oldest-created sessions beyond capacity. Sessions with
// unparseable work dates are left untouched. Sweep is idempotent.
func (s *Store) Sweep() (removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	for key, session := range s.sessions {
		workDate, err := domain.ParseEraDate(session.WorkDate)
		if err != nil {
			continue
		}
		if workDate.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	removed += s.evictOverCapacityLocked()
	return removed
}

// evictOverCapacityLocked drops oldest-created sessions until the store is
// at or below capacity. Callers must hold the lock.
func (s *Store) evictOverCapacityLocked() (evicted int) {
	for len(s.sessions) > s.capacity {
		var oldestKey sessionKey
		var oldest *domain.Session
		for key, session := range s.sessions {
			if oldest == nil || session.CreatedAt.Before(oldest.CreatedAt) {
				oldestKey = key
				oldest = session
			}
		}
		delete(s.sessions, oldestKey)
		evicted++
	}
	return evicted
}
