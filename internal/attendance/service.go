package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"esas/internal/metrics"
)

// Outcome describes what a successful check-in did.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeUpdated        Outcome = "updated"
	OutcomeAlreadyPresent Outcome = "already_present"
)

// CheckInResult is returned for every successful check-in.
type CheckInResult struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Record  Record  `json:"record"`
}

// CreateSessionInput carries the lecturer's request to open a session.
type CreateSessionInput struct {
	AssignmentID    string
	DurationMinutes int
	Location        *string
}

// SessionUpdate is an admin correction; nil fields are left as they are.
type SessionUpdate struct {
	SessionDatetime *time.Time
	DurationMinutes *int
	Location        *string
}

// RecordUpdate corrects a single record.
type RecordUpdate struct {
	Status         string
	AttendanceTime *time.Time
}

// Service coordinates session lifecycle, check-ins and ledger corrections.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store. now is the clock used for
// session start, window checks and check-in timestamps; nil means wall clock.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// CreateSession opens a session starting now and expiring after DurationMinutes.
func (s *Service) CreateSession(ctx context.Context, actor Actor, in CreateSessionInput) (Session, error) {
	if strings.TrimSpace(in.AssignmentID) == "" {
		return Session{}, fmt.Errorf("%w: assignment_id required", ErrInvalidInput)
	}
	if !validDuration(in.DurationMinutes) {
		return Session{}, ErrInvalidDuration
	}

	var created Session
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.GetAssignment(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		if !actor.owns(a.LecturerID) {
			return ErrAssignmentNotFound
		}
		start := s.clock()
		created, err = q.InsertSession(ctx, Session{
			AssignmentID:    a.ID,
			SessionDatetime: start,
			DurationMinutes: in.DurationMinutes,
			ExpiresAt:       expiry(start, in.DurationMinutes),
			Location:        in.Location,
		})
		if err != nil {
			return err
		}
		created.LecturerID = a.LecturerID
		created.CourseID = a.CourseID
		created.AcademicYearID = a.AcademicYearID
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	metrics.SessionsCreated.Inc()
	return created, nil
}

// ListAssignmentSessions lists the sessions of an assignment the actor owns.
func (s *Service) ListAssignmentSessions(ctx context.Context, actor Actor, assignmentID string) ([]Session, error) {
	var sessions []Session
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if !actor.owns(a.LecturerID) {
			return ErrAssignmentNotFound
		}
		sessions, err = q.ListSessionsByAssignment(ctx, a.ID)
		return err
	})
	return sessions, err
}

// ownedSession loads a session, hiding it from lecturers who do not own it.
func ownedSession(ctx context.Context, q Queries, actor Actor, id string) (Session, error) {
	sess, err := q.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !actor.owns(sess.LecturerID) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// GetSession returns one session visible to the actor.
func (s *Service) GetSession(ctx context.Context, actor Actor, id string) (Session, error) {
	var sess Session
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		sess, err = ownedSession(ctx, q, actor, id)
		return err
	})
	return sess, err
}

// checkActive returns an *InactiveError when now is outside the session window.
func checkActive(sess Session, now time.Time) error {
	if sess.ActiveAt(now) {
		return nil
	}
	return &InactiveError{Start: sess.SessionDatetime, Expiry: sess.ExpiresAt, At: now}
}

// CheckSessionActive reports whether the session is active now. The session is
// returned alongside an *InactiveError so callers can show the window.
func (s *Service) CheckSessionActive(ctx context.Context, actor Actor, sessionID string) (Session, error) {
	sess, err := s.GetSession(ctx, actor, sessionID)
	if err != nil {
		return Session{}, err
	}
	return sess, checkActive(sess, s.clock())
}

// checkEligible requires an enrollment for exactly the session's course and term.
func checkEligible(ctx context.Context, q Queries, studentID string, sess Session) error {
	exists, err := q.StudentExists(ctx, studentID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrStudentNotFound
	}
	enrolled, err := q.IsEnrolled(ctx, studentID, sess.CourseID, sess.AcademicYearID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// CheckIn marks a scanned student present in an active session. Repeated scans
// never create a second record: a non-Present record is flipped to Present and
// a Present one is left alone.
func (s *Service) CheckIn(ctx context.Context, actor Actor, sessionID, studentID string) (CheckInResult, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(studentID) == "" {
		return CheckInResult{}, fmt.Errorf("%w: session_id and student_id required", ErrInvalidInput)
	}
	now := s.clock()

	var res CheckInResult
	err := s.store.WithTx(ctx, func(q Queries) error {
		sess, err := ownedSession(ctx, q, actor, sessionID)
		if err != nil {
			return err
		}
		if err := checkActive(sess, now); err != nil {
			return err
		}
		if err := checkEligible(ctx, q, studentID, sess); err != nil {
			return err
		}

		existing, err := q.GetRecord(ctx, sess.ID, studentID)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			rec, inserted, err := q.InsertRecord(ctx, Record{
				SessionID:      sess.ID,
				StudentID:      studentID,
				AttendanceTime: now,
				Status:         StatusPresent,
			})
			if err != nil {
				return err
			}
			if inserted {
				res = CheckInResult{Outcome: OutcomeCreated, Message: "attendance marked present", Record: rec}
				return nil
			}
			// Lost the race to a concurrent scan for the same pair.
			existing, err = q.GetRecord(ctx, sess.ID, studentID)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if existing.Status == StatusPresent {
			res = CheckInResult{Outcome: OutcomeAlreadyPresent, Message: "student already marked present", Record: existing}
			return nil
		}
		existing.Status = StatusPresent
		existing.AttendanceTime = now
		if err := q.UpdateRecord(ctx, existing); err != nil {
			return err
		}
		res = CheckInResult{Outcome: OutcomeUpdated, Message: "attendance updated to present", Record: existing}
		return nil
	})
	metrics.CheckIns.WithLabelValues(checkInLabel(res.Outcome, err)).Inc()
	if err != nil {
		return CheckInResult{}, err
	}
	return res, nil
}

func checkInLabel(o Outcome, err error) string {
	switch {
	case err == nil:
		return string(o)
	case errors.Is(err, ErrSessionNotActive):
		return "not_active"
	case errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrStudentNotFound):
		return "not_eligible"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// RecordLegacy is the simplified check-in: it inserts a Present record and
// reports a duplicate instead of updating. Students may only record themselves,
// and only while the session is active and they are enrolled in it.
func (s *Service) RecordLegacy(ctx context.Context, actor Actor, sessionID, studentID string) (Record, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(studentID) == "" {
		return Record{}, fmt.Errorf("%w: session_id and student_id required", ErrInvalidInput)
	}
	if actor.Role == "student" && actor.EntityID != studentID {
		return Record{}, fmt.Errorf("%w: students may only record their own attendance", ErrForbidden)
	}
	now := s.clock()

	var rec Record
	err := s.store.WithTx(ctx, func(q Queries) error {
		sess, err := q.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		switch actor.Role {
		case "student":
			if err := checkActive(sess, now); err != nil {
				return err
			}
			if err := checkEligible(ctx, q, studentID, sess); err != nil {
				return err
			}
		case "lecturer", "admin":
			if !actor.owns(sess.LecturerID) {
				return ErrSessionNotFound
			}
			exists, err := q.StudentExists(ctx, studentID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrStudentNotFound
			}
		default:
			return ErrForbidden
		}
		var inserted bool
		rec, inserted, err = q.InsertRecord(ctx, Record{
			SessionID:      sess.ID,
			StudentID:      studentID,
			AttendanceTime: now,
			Status:         StatusPresent,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicateRecord
		}
		return nil
	})
	return rec, err
}

// ListSessionRecords pages through the records of a session the actor owns,
// newest first. limit defaults to 50 and is capped at 500.
func (s *Service) ListSessionRecords(ctx context.Context, actor Actor, sessionID string, limit, offset int) ([]Record, error) {
	var records []Record
	err := s.store.WithTx(ctx, func(q Queries) error {
		sess, err := ownedSession(ctx, q, actor, sessionID)
		if err != nil {
			return err
		}
		records, err = q.ListRecords(ctx, RecordFilter{SessionID: sess.ID, Limit: limit, Offset: offset})
		return err
	})
	return records, err
}

// ownedRecord loads a record through its session's ownership.
func ownedRecord(ctx context.Context, q Queries, actor Actor, id string) (Record, error) {
	rec, err := q.GetRecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := ownedSession(ctx, q, actor, rec.SessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// GetRecord returns one record visible to the actor.
func (s *Service) GetRecord(ctx context.Context, actor Actor, id string) (Record, error) {
	var rec Record
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		rec, err = ownedRecord(ctx, q, actor, id)
		return err
	})
	return rec, err
}

// UpdateRecord corrects the status and optionally the time of a record.
func (s *Service) UpdateRecord(ctx context.Context, actor Actor, id string, in RecordUpdate) (Record, error) {
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		rec, err = ownedRecord(ctx, q, actor, id)
		if err != nil {
			return err
		}
		rec.Status = status
		if in.AttendanceTime != nil {
			rec.AttendanceTime = in.AttendanceTime.UTC()
		}
		return q.UpdateRecord(ctx, rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteRecord removes a record the actor owns.
func (s *Service) DeleteRecord(ctx context.Context, actor Actor, id string) error {
	return s.store.WithTx(ctx, func(q Queries) error {
		rec, err := ownedRecord(ctx, q, actor, id)
		if err != nil {
			return err
		}
		return q.DeleteRecord(ctx, rec.ID)
	})
}

// ListSessions lists every session, newest first. Admin only.
func (s *Service) ListSessions(ctx context.Context, actor Actor, limit, offset int) ([]Session, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var sessions []Session
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		sessions, err = q.ListSessions(ctx, limit, offset)
		return err
	})
	return sessions, err
}

// UpdateSession applies an admin correction and recomputes the expiry.
func (s *Service) UpdateSession(ctx context.Context, actor Actor, id string, in SessionUpdate) (Session, error) {
	if !actor.IsAdmin() {
		return Session{}, ErrForbidden
	}
	if in.DurationMinutes != nil && !validDuration(*in.DurationMinutes) {
		return Session{}, ErrInvalidDuration
	}
	var sess Session
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		sess, err = q.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if in.SessionDatetime != nil {
			sess.SessionDatetime = in.SessionDatetime.UTC()
		}
		if in.DurationMinutes != nil {
			sess.DurationMinutes = *in.DurationMinutes
		}
		if in.Location != nil {
			sess.Location = in.Location
		}
		sess.ExpiresAt = expiry(sess.SessionDatetime, sess.DurationMinutes)
		return q.UpdateSession(ctx, sess)
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// DeleteSession removes a session and its records. Admin only.
func (s *Service) DeleteSession(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.store.WithTx(ctx, func(q Queries) error {
		return q.DeleteSession(ctx, id)
	})
}

// ListRecords lists records across sessions. Admin only.
func (s *Service) ListRecords(ctx context.Context, actor Actor, f RecordFilter) ([]Record, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var records []Record
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		records, err = q.ListRecords(ctx, f)
		return err
	})
	return records, err
}

// StudentHistory lists the calling student's own records.
func (s *Service) StudentHistory(ctx context.Context, actor Actor) ([]StudentRecord, error) {
	if actor.Role != "student" {
		return nil, ErrForbidden
	}
	var records []StudentRecord
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		records, err = q.ListStudentRecords(ctx, actor.EntityID)
		return err
	})
	return records, err
}

// RecordContext loads a record with its session, for event consumers.
func (s *Service) RecordContext(ctx context.Context, recordID string) (Record, Session, error) {
	var (
		rec  Record
		sess Session
	)
	err := s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if rec, err = q.GetRecordByID(ctx, recordID); err != nil {
			return err
		}
		sess, err = q.GetSession(ctx, rec.SessionID)
		return err
	})
	return rec, sess, err
}
