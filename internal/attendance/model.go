package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Status is the attendance status of a record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
	StatusExcused Status = "Excused"
)

// ParseStatus canonicalizes a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return StatusPresent, nil
	case "absent":
		return StatusAbsent, nil
	case "late":
		return StatusLate, nil
	case "excused":
		return StatusExcused, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Assignment binds a lecturer to a course for an academic year.
type Assignment struct {
	ID             string `json:"id"`
	LecturerID     string `json:"lecturer_id"`
	CourseID       string `json:"course_id"`
	AcademicYearID string `json:"academic_year_id"`
}

// Session is one attendance-taking window of an assignment.
type Session struct {
	ID              string    `json:"id"`
	AssignmentID    string    `json:"assignment_id"`
	SessionDatetime time.Time `json:"session_datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	ExpiresAt       time.Time `json:"qr_code_expiry_time"`
	Location        *string   `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Filled from the owning assignment when the session is loaded.
	LecturerID     string `json:"lecturer_id,omitempty"`
	CourseID       string `json:"course_id,omitempty"`
	AcademicYearID string `json:"academic_year_id,omitempty"`
}

// MaxDurationMinutes caps a session at one week.
const MaxDurationMinutes = 7 * 24 * 60

func validDuration(minutes int) bool {
	return minutes > 0 && minutes <= MaxDurationMinutes
}

// expiry returns start + duration. durationMinutes must satisfy validDuration.
func expiry(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// ActiveAt reports whether now lies within [SessionDatetime, ExpiresAt]. Both bounds are inclusive.
func (s Session) ActiveAt(now time.Time) bool {
	now = now.UTC()
	return !now.Before(s.SessionDatetime.UTC()) && !now.After(s.ExpiresAt.UTC())
}

// Record is one student's attendance in one session.
type Record struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	StudentID      string    `json:"student_id"`
	AttendanceTime time.Time `json:"attendance_time"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// StudentRecord is a record as seen from the student's history.
type StudentRecord struct {
	Record
	CourseID        string    `json:"course_id"`
	AcademicYearID  string    `json:"academic_year_id"`
	SessionDatetime time.Time `json:"session_datetime"`
}

// RecordFilter narrows record listings. Empty fields do not filter.
type RecordFilter struct {
	SessionID string
	StudentID string
	Status    Status
	Limit     int
	Offset    int
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	Role     string
	EntityID string
}

// IsAdmin reports whether the actor bypasses ownership checks.
func (a Actor) IsAdmin() bool { return a.Role == "admin" }

func (a Actor) owns(lecturerID string) bool {
	return a.IsAdmin() || (a.Role == "lecturer" && a.EntityID != "" && a.EntityID == lecturerID)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalidInput, s)
}
