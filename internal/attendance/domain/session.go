package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyWorkDate indicates a missing work date.
	ErrEmptyWorkDate = errors.New("work date is required")
	// ErrEmptyProject indicates a missing project name.
	ErrEmptyProject = errors.New("project name is required")
	// ErrDuplicateStaff indicates a staff name already present in a session.
	ErrDuplicateStaff = errors.New("staff name already recorded")
	// ErrStaffNotFound indicates a staff name absent from a session.
	ErrStaffNotFound = errors.New("staff name not recorded")
	// ErrAlreadyCheckedOut indicates a staff entry with a checkout time set.
	ErrAlreadyCheckedOut = errors.New("staff already checked out")
)

// StaffEntry is one person's attendance within a session. CheckOut is nil
// until the person checks out. LedgerRow is the committed attendance row
// backing this entry, so a checkout can update it in place.
type StaffEntry struct {
	Name      string
	Note      string
	CheckIn   time.Time
	CheckOut  *time.Time
	LedgerRow int
}

// Session tracks one project's attendance for one work date. Sessions are
// owned by the session store and must only be mutated through it.
type Session struct {
	WorkDate          string
	Project           string
	Staff             []StaffEntry
	AuthorizedUserIDs map[string]struct{}
	CreatedAt         time.Time
}

// NewSession creates a session for the given era work date and project, with
// the requesting user recorded as authorized.
func NewSession(workDate, project, requesterID string, now func() time.Time) (*Session, error) {
	if now == nil {
		now = time.Now
	}
	workDate = strings.TrimSpace(workDate)
	if workDate == "" {
		return nil, ErrEmptyWorkDate
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, ErrEmptyProject
	}

	session := &Session{
		WorkDate:          workDate,
		Project:           project,
		AuthorizedUserIDs: map[string]struct{}{},
		CreatedAt:         now().UTC(),
	}
	if requesterID = strings.TrimSpace(requesterID); requesterID != "" {
		session.AuthorizedUserIDs[requesterID] = struct{}{}
	}
	return session, nil
}

// Authorize records a user as authorized on the session.
func (s *Session) Authorize(userID string) {
	if userID = strings.TrimSpace(userID); userID == "" {
		return
	}
	if s.AuthorizedUserIDs == nil {
		s.AuthorizedUserIDs = map[string]struct{}{}
	}
	s.AuthorizedUserIDs[userID] = struct{}{}
}

// IsAuthorized reports whether the user is authorized on the session.
func (s *Session) IsAuthorized(userID string) bool {
	_, ok := s.AuthorizedUserIDs[userID]
	return ok
}

// AddStaff appends a staff entry. Staff names are unique within a session.
func (s *Session) AddStaff(entry StaffEntry) error {
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return ErrStaffNotFound
	}
	for _, existing := range s.Staff {
		if existing.Name == entry.Name {
			return ErrDuplicateStaff
		}
	}
	s.Staff = append(s.Staff, entry)
	return nil
}

// FindStaff returns the staff entry with the given name.
func (s *Session) FindStaff(name string) (StaffEntry, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range s.Staff {
		if entry.Name == name {
			return entry, true
		}
	}
	return StaffEntry{}, false
}

// Checkout sets the checkout time on the named staff entry.
func (s *Session) Checkout(name string, at time.Time) error {
	name = strings.TrimSpace(name)
	for i := range s.Staff {
		if s.Staff[i].Name != name {
			continue
		}
		if s.Staff[i].CheckOut != nil {
			return ErrAlreadyCheckedOut
		}
		at := at
		s.Staff[i].CheckOut = &at
		return nil
	}
	return ErrStaffNotFound
}

// PendingCheckout lists staff entries that have not checked out yet.
func (s *Session) PendingCheckout() []StaffEntry {
	var pending []StaffEntry
	for _, entry := range s.Staff {
		if entry.CheckOut == nil {
			pending = append(pending, entry)
		}
	}
	return pending
}

// Clone returns a deep copy safe to use outside the store lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := &Session{
		WorkDate:          s.WorkDate,
		Project:           s.Project,
		Staff:             make([]StaffEntry, len(s.Staff)),
		AuthorizedUserIDs: make(map[string]struct{}, len(s.AuthorizedUserIDs)),
		CreatedAt:         s.CreatedAt,
	}
	copy(clone.Staff, s.Staff)
	for i, entry := range s.Staff {
		if entry.CheckOut != nil {
			at := *entry.CheckOut
			clone.Staff[i].CheckOut = &at
		}
	}
	for id := range s.AuthorizedUserIDs {
		clone.AuthorizedUserIDs[id] = struct{}{}
	}
	return clone
}
