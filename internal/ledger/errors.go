package ledger

import "errors"

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrEntryNotFound   = errors.New("log entry not found")
)
