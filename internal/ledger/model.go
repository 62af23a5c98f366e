package ledger

import "time"

// CycleDays is the validity window opened by every deposit.
const CycleDays = 20

// PackageSize is the number of lessons in a prepaid bundle.
type PackageSize int

// PackageSizes lists the bundles that can be sold, smallest first.
var PackageSizes = []PackageSize{4, 8, 12, 16, 20}

// Valid reports whether p is one of PackageSizes.
func (p PackageSize) Valid() bool {
	for _, size := range PackageSizes {
		if p == size {
			return true
		}
	}
	return false
}

// Action identifies what a log entry did to a balance.
type Action string

const (
	ActionCheckIn Action = "CHECK_IN"
	ActionDeposit Action = "DEPOSIT"
)

// Student is one entry of the registry.
type Student struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	ContractedPackage PackageSize `json:"contractedPackage"`
	LessonBalance     int         `json:"lessonBalance"`
	LastPaymentDate   time.Time   `json:"lastPaymentDate"`
	CycleExpiration   time.Time   `json:"cycleExpiration"`
}

// Overdue reports whether the student has run out of lessons or the current
// cycle ended before now.
func (s Student) Overdue(now time.Time) bool {
	return s.LessonBalance <= 0 || s.CycleExpiration.Before(now)
}

// WithStatus attaches the derived status as of now.
func (s Student) WithStatus(now time.Time) StudentStatus {
	return StudentStatus{Student: s, Overdue: s.Overdue(now)}
}

// StudentStatus is a student together with its status at read time.
// It is never stored.
type StudentStatus struct {
	Student
	Overdue bool `json:"overdue"`
}

// Entry is one balance-affecting event of the activity log.
//
// StudentName is a display copy of the student's name. EditProfile rewrites
// it on every entry of the renamed student; it is never used for lookups.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Action      Action    `json:"action"`
	Adjustment  int       `json:"adjustment"`
}

// Stats aggregates derived status over a registry snapshot.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Overdue int `json:"overdue"`
}

// Summarize counts students by status as of now.
func Summarize(students []Student, now time.Time) Stats {
	st := Stats{Total: len(students)}
	for _, s := range students {
		if s.Overdue(now) {
			st.Overdue++
		}
	}
	st.Active = st.Total - st.Overdue
	return st
}

// State is the persisted form of a ledger: students in registration order,
// entries newest first.
type State struct {
	Students []Student
	Entries  []Entry
}

func cycleEnd(paid time.Time) time.Time {
	return paid.AddDate(0, 0, CycleDays)
}
