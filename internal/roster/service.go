// Package roster is the application state of the trainer's roster: one
// ledger, loaded from and saved to a state store, with every command
// serialized behind a single lock.
package roster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roster/internal/ledger"
)

// ErrInvalidInput is returned for commands rejected before reaching the
// ledger.
var ErrInvalidInput = errors.New("invalid input")

// StateStore loads and saves the full roster state.
type StateStore interface {
	Load(ctx context.Context) ledger.State
	Save(ctx context.Context, st ledger.State) error
}

// Observer receives command outcomes and save timings.
type Observer interface {
	Operation(op, outcome string)
	Saved(elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Operation(string, string) {}
func (nopObserver) Saved(time.Duration, error) {}

// Service owns the ledger.
type Service struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	states StateStore
	obs    Observer
	log    zerolog.Logger
}

// Open restores the ledger from states. Stored data never makes Open fail;
// ledger inconsistencies found after loading are logged.
func Open(ctx context.Context, states StateStore, obs Observer, log zerolog.Logger, opts ...ledger.Option) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	l := ledger.New(opts...)
	if dropped := l.Restore(states.Load(ctx)); dropped > 0 {
		log.Warn().Int("students", dropped).Msg("dropped stored students without a unique id")
	}

	s := &Service{ledger: l, states: states, obs: obs, log: log}
	for _, d := range l.Audit() {
		log.Warn().
			Str("student_id", d.StudentID).
			Int("balance", d.Balance).
			Int("log_sum", d.LogSum).
			Bool("orphaned", d.Orphaned).
			Msg("ledger discrepancy")
	}
	log.Info().Int("students", len(l.Students())).Int("entries", len(l.Entries())).Msg("roster loaded")
	return s
}

// Register adds a student with an initial deposit of the package size.
func (s *Service) Register(ctx context.Context, name string, size ledger.PackageSize) (ledger.Student, error) {
	name, err := validProfile(name, size)
	if err != nil {
		s.obs.Operation("register", outcome(err))
		return ledger.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ledger.Register(name, size)
	s.committed(ctx, "register", st.ID)
	return st, nil
}

// CheckIn consumes one lesson.
func (s *Service) CheckIn(ctx context.Context, studentID string) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.ledger.CheckIn(studentID)
	if err != nil {
		s.obs.Operation("check_in", outcome(err))
		return ledger.Entry{}, err
	}
	s.committed(ctx, "check_in", studentID)
	return e, nil
}

// Deposit adds a positive number of lessons and restarts the cycle.
func (s *Service) Deposit(ctx context.Context, studentID string, amount int) (ledger.Entry, error) {
	if amount <= 0 {
		err := fmt.Errorf("deposit amount %d must be positive: %w", amount, ErrInvalidInput)
		s.obs.Operation("deposit", outcome(err))
		return ledger.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.ledger.Student(studentID); ok && st.LessonBalance > math.MaxInt-amount {
		err := fmt.Errorf("deposit amount %d overflows balance %d: %w", amount, st.LessonBalance, ErrInvalidInput)
		s.obs.Operation("deposit", outcome(err))
		return ledger.Entry{}, err
	}
	e, err := s.ledger.Deposit(studentID, amount)
	if err != nil {
		s.obs.Operation("deposit", outcome(err))
		return ledger.Entry{}, err
	}
	s.committed(ctx, "deposit", studentID)
	return e, nil
}

// EditProfile renames a student and changes its package.
func (s *Service) EditProfile(ctx context.Context, studentID, name string, size ledger.PackageSize) (ledger.Student, error) {
	name, err := validProfile(name, size)
	if err != nil {
		s.obs.Operation("edit_profile", outcome(err))
		return ledger.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.ledger.EditProfile(studentID, name, size)
	if err != nil {
		s.obs.Operation("edit_profile", outcome(err))
		return ledger.Student{}, err
	}
	s.committed(ctx, "edit_profile", studentID)
	return st, nil
}

// DeleteStudent removes a student with all of its log entries.
func (s *Service) DeleteStudent(ctx context.Context, studentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.ledger.DeleteStudent(studentID)
	if err != nil {
		s.obs.Operation("delete_student", outcome(err))
		return 0, err
	}
	s.committed(ctx, "delete_student", studentID)
	return removed, nil
}

// ReverseEntry removes one log entry and corrects the balance.
func (s *Service) ReverseEntry(ctx context.Context, entryID string) (ledger.Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ledger.ReverseEntry(entryID)
	if err != nil {
		s.obs.Operation("reverse_entry", outcome(err))
		return ledger.Reversal{}, err
	}
	s.committed(ctx, "reverse_entry", r.Entry.StudentID)
	return r, nil
}

// Students returns the students matching query with their status.
func (s *Service) Students(query string) []ledger.StudentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.ledger.Now()
	matches := s.ledger.Search(query)
	out := make([]ledger.StudentStatus, 0, len(matches))
	for _, st := range matches {
		out = append(out, st.WithStatus(now))
	}
	return out
}

// Student returns one student with its status.
func (s *Service) Student(id string) (ledger.StudentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ledger.Student(id)
	if !ok {
		return ledger.StudentStatus{}, fmt.Errorf("student %s: %w", id, ledger.ErrStudentNotFound)
	}
	return st.WithStatus(s.ledger.Now()), nil
}

// History returns the entries of one student, newest first.
func (s *Service) History(studentID string) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.History(studentID)
}

// Logs returns the whole activity log, newest first.
func (s *Service) Logs() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Entries()
}

// Stats summarizes the roster at the current time.
func (s *Service) Stats() ledger.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Stats()
}

// Audit lists balances that disagree with the log.
func (s *Service) Audit() []ledger.Discrepancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Audit()
}

// Save writes the current state and reports the error.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx)
}

// committed runs after a successful ledger mutation. A failed write is
// logged and counted; the in-memory state stays as it is.
func (s *Service) committed(ctx context.Context, op, studentID string) {
	s.obs.Operation(op, "ok")
	s.log.Info().Str("operation", op).Str("student_id", studentID).Msg("roster updated")
	if err := s.save(context.WithoutCancel(ctx)); err != nil {
		s.log.Error().Err(err).Str("operation", op).Msg("failed to persist roster")
	}
}

func (s *Service) save(ctx context.Context) error {
	start := time.Now()
	err := s.states.Save(ctx, s.ledger.Snapshot())
	s.obs.Saved(time.Since(start), err)
	return err
}

func validProfile(name string, size ledger.PackageSize) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("student name is required: %w", ErrInvalidInput)
	}
	if !size.Valid() {
		return "", fmt.Errorf("package size %d is not offered: %w", size, ErrInvalidInput)
	}
	return name, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ledger.ErrStudentNotFound), errors.Is(err, ledger.ErrEntryNotFound):
		return "not_found"
	default:
		return "error"
	}
}
