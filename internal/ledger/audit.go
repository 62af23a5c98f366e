package ledger

import "sort"

// Discrepancy is a student (or a dangling student id) whose balance does not
// match the sum of its log entries.
type Discrepancy struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Balance     int    `json:"balance"`
	LogSum      int    `json:"logSum"`
	// Orphaned marks entries whose student is gone from the registry.
	Orphaned bool `json:"orphaned"`
}

// Audit checks every student against its log entries. Students come first
// in registration order, then orphaned ids sorted.
func (l *Ledger) Audit() []Discrepancy {
	sums := make(map[string]int)
	names := make(map[string]string)
	for _, e := range l.entries {
		sums[e.StudentID] += e.Adjustment
		names[e.StudentID] = e.StudentName
	}

	out := []Discrepancy{}
	for _, id := range l.order {
		s := l.students[id]
		if sum := sums[id]; sum != s.LessonBalance {
			out = append(out, Discrepancy{
				StudentID:   id,
				StudentName: s.Name,
				Balance:     s.LessonBalance,
				LogSum:      sum,
			})
		}
	}

	var orphans []Discrepancy
	for id, sum := range sums {
		if _, ok := l.students[id]; ok {
			continue
		}
		orphans = append(orphans, Discrepancy{
			StudentID:   id,
			StudentName: names[id],
			LogSum:      sum,
			Orphaned:    true,
		})
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].StudentID < orphans[j].StudentID })
	return append(out, orphans...)
}
