// Package ledger keeps the student registry and the activity log consistent.
//
// For every student the sum of the adjustments of its log entries equals its
// lesson balance. Each operation updates the registry and the log together
// or, when the referenced record does not exist, changes nothing.
//
// A Ledger is not safe for concurrent use; callers serialize access.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger holds the registry and the log in memory.
type Ledger struct {
	students map[string]*Student
	order    []string
	entries  []Entry // oldest first
	now      func() time.Time
	newID    func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs replaces the uuid generator.
func WithIDs(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		students: make(map[string]*Student),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger clock in UTC without a monotonic reading, so that
// stored timestamps survive a JSON round trip unchanged.
func (l *Ledger) Now() time.Time {
	return l.now().UTC().Round(0)
}

// Register adds a student with an initial deposit of size lessons.
// The name must already be trimmed and non-empty and size valid.
func (l *Ledger) Register(name string, size PackageSize) Student {
	now := l.Now()
	s := &Student{
		ID:                l.newID(),
		Name:              name,
		ContractedPackage: size,
	}
	l.students[s.ID] = s
	l.order = append(l.order, s.ID)
	l.credit(s, int(size), now)
	return *s
}

// CheckIn consumes one lesson. The balance may go negative.
func (l *Ledger) CheckIn(studentID string) (Entry, error) {
	s, ok := l.students[studentID]
	if !ok {
		return Entry{}, fmt.Errorf("check in %s: %w", studentID, ErrStudentNotFound)
	}
	now := l.Now()
	s.LessonBalance--
	return l.append(s, ActionCheckIn, -1, now), nil
}

// Deposit adds amount lessons and restarts the cycle from now. The previous
// expiration is overwritten, not extended.
func (l *Ledger) Deposit(studentID string, amount int) (Entry, error) {
	s, ok := l.students[studentID]
	if !ok {
		return Entry{}, fmt.Errorf("deposit for %s: %w", studentID, ErrStudentNotFound)
	}
	return l.credit(s, amount, l.Now()), nil
}

func (l *Ledger) credit(s *Student, amount int, now time.Time) Entry {
	s.LessonBalance += amount
	s.LastPaymentDate = now
	s.CycleExpiration = cycleEnd(now)
	return l.append(s, ActionDeposit, amount, now)
}

func (l *Ledger) append(s *Student, action Action, adjustment int, now time.Time) Entry {
	e := Entry{
		ID:          l.newID(),
		Timestamp:   now,
		StudentID:   s.ID,
		StudentName: s.Name,
		Action:      action,
		Adjustment:  adjustment,
	}
	l.entries = append(l.entries, e)
	return e
}

// EditProfile renames the student and records a new package size. Balance
// and cycle dates are untouched; the package size does not resize the
// balance. The new name is copied onto every log entry of the student.
func (l *Ledger) EditProfile(studentID, name string, size PackageSize) (Student, error) {
	s, ok := l.students[studentID]
	if !ok {
		return Student{}, fmt.Errorf("edit %s: %w", studentID, ErrStudentNotFound)
	}
	s.Name = name
	s.ContractedPackage = size
	for i := range l.entries {
		if l.entries[i].StudentID == studentID {
			l.entries[i].StudentName = name
		}
	}
	return *s, nil
}

// DeleteStudent removes the student and every log entry that references it.
// It cannot be undone. The number of removed entries is returned.
func (l *Ledger) DeleteStudent(studentID string) (int, error) {
	if _, ok := l.students[studentID]; !ok {
		return 0, fmt.Errorf("delete %s: %w", studentID, ErrStudentNotFound)
	}
	delete(l.students, studentID)
	for i, id := range l.order {
		if id == studentID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.StudentID == studentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(l.entries[len(kept):])
	l.entries = kept
	return removed, nil
}

// Reversal describes the effect of ReverseEntry.
//
// Only the balance is corrected. LastPaymentDate and CycleExpiration have no
// history, so reversing a deposit leaves them at the values the reversed
// deposit set.
type Reversal struct {
	Entry           Entry `json:"entry"`
	BalanceAdjusted bool  `json:"balanceAdjusted"`
}

// ReverseEntry removes a log entry and undoes its adjustment on the student.
// When the student no longer exists the entry is still removed and no
// balance changes.
func (l *Ledger) ReverseEntry(entryID string) (Reversal, error) {
	idx := -1
	for i := range l.entries {
		if l.entries[i].ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Reversal{}, fmt.Errorf("reverse %s: %w", entryID, ErrEntryNotFound)
	}

	e := l.entries[idx]
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)

	r := Reversal{Entry: e}
	if s, ok := l.students[e.StudentID]; ok {
		s.LessonBalance -= e.Adjustment
		r.BalanceAdjusted = true
	}
	return r, nil
}

// Student returns a copy of one student.
func (l *Ledger) Student(id string) (Student, bool) {
	s, ok := l.students[id]
	if !ok {
		return Student{}, false
	}
	return *s, true
}

// Students returns copies of all students in registration order.
func (l *Ledger) Students() []Student {
	out := make([]Student, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.students[id])
	}
	return out
}

// Entries returns the log, newest first.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// History returns the entries of one student, newest first. An unknown id
// yields an empty list.
func (l *Ledger) History(studentID string) []Entry {
	out := []Entry{}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].StudentID == studentID {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// Search returns the students whose name contains query, ignoring case.
func (l *Ledger) Search(query string) []Student {
	return Search(l.Students(), query)
}

// Stats summarizes the registry as of the ledger clock.
func (l *Ledger) Stats() Stats {
	return Summarize(l.Students(), l.Now())
}

// Search filters students by a case-insensitive substring of the name,
// keeping their order. An empty query matches everyone.
func Search(students []Student, query string) []Student {
	q := strings.ToLower(query)
	out := make([]Student, 0, len(students))
	for _, s := range students {
		if strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot exports the ledger for persistence.
func (l *Ledger) Snapshot() State {
	return State{Students: l.Students(), Entries: l.Entries()}
}

// Restore replaces the ledger contents with st. Students without an id or
// repeating an id already seen are dropped; their count is returned.
func (l *Ledger) Restore(st State) (dropped int) {
	l.students = make(map[string]*Student, len(st.Students))
	l.order = make([]string, 0, len(st.Students))
	for _, s := range st.Students {
		if _, dup := l.students[s.ID]; dup || s.ID == "" {
			dropped++
			continue
		}
		cp := s
		l.students[s.ID] = &cp
		l.order = append(l.order, s.ID)
	}

	l.entries = make([]Entry, 0, len(st.Entries))
	for i := len(st.Entries) - 1; i >= 0; i-- {
		l.entries = append(l.entries, st.Entries[i])
	}
	return dropped
}
