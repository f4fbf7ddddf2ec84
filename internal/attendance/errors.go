package attendance

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDuration    = errors.New("duration_minutes must be between 1 and 10080 (one week)")
	ErrInvalidStatus      = errors.New("status must be one of Present, Absent, Late, Excused")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAssignmentNotFound = errors.New("course assignment not found or not owned by you")
	ErrSessionNotFound    = errors.New("attendance session not found or not owned by you")
	ErrRecordNotFound     = errors.New("attendance record not found or not owned by you")
	ErrStudentNotFound    = errors.New("student does not exist")
	ErrNotEnrolled        = errors.New("student not enrolled in this course/term")
	ErrSessionNotActive   = errors.New("session not currently active")
	ErrDuplicateRecord    = errors.New("attendance already recorded for this student in this session")
	ErrForbidden          = errors.New("forbidden")
)

// InactiveError reports a check-in outside the session window.
type InactiveError struct {
	Start  time.Time
	Expiry time.Time
	At     time.Time
}

func (e *InactiveError) Error() string {
	return fmt.Sprintf("%s: window %s to %s, now %s", ErrSessionNotActive,
		e.Start.Format(time.RFC3339), e.Expiry.Format(time.RFC3339), e.At.Format(time.RFC3339))
}

func (e *InactiveError) Is(target error) bool { return target == ErrSessionNotActive }
