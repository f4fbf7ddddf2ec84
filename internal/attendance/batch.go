package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"esas/internal/metrics"
)

// BatchEntry is one line of an administrative submission.
type BatchEntry struct {
	StudentID      string `json:"student_id"`
	Status         string `json:"status"`
	AttendanceTime string `json:"attendance_time,omitempty"`
}

// BatchFailure explains why an entry was skipped.
type BatchFailure struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BatchResult is the per-entry breakdown of a submission.
type BatchResult struct {
	Inserted      []Record       `json:"inserted"`
	Failed        []BatchFailure `json:"failed"`
	InsertedCount int            `json:"inserted_count"`
	FailedCount   int            `json:"failed_count"`
	Total         int            `json:"total"`
}

const (
	reasonMissingStudent = "student_id required"
	reasonUnknownStudent = "student does not exist"
	reasonBadStatus      = "invalid status"
	reasonBadTime        = "invalid attendance_time"
	reasonDuplicate      = "attendance already recorded for this student in this session"
	reasonRepeated       = "student appears more than once in this submission"
)

var errMissingStudent = fmt.Errorf("%w: student_id required", ErrInvalidInput)

// checkEntry validates one administrative entry against a session and builds
// the record to insert. Rejections are ErrInvalidInput, ErrStudentNotFound,
// ErrInvalidStatus or ErrDuplicateRecord; any other error is a storage failure.
func checkEntry(ctx context.Context, q Queries, sess Session, e BatchEntry, now time.Time) (Record, error) {
	studentID := strings.TrimSpace(e.StudentID)
	if studentID == "" {
		return Record{}, errMissingStudent
	}
	exists, err := q.StudentExists(ctx, studentID)
	if err != nil {
		return Record{}, err
	}
	if !exists {
		return Record{}, ErrStudentNotFound
	}
	status, err := ParseStatus(e.Status)
	if err != nil {
		return Record{}, err
	}
	at := now
	if strings.TrimSpace(e.AttendanceTime) != "" {
		if at, err = ParseTimestamp(e.AttendanceTime); err != nil {
			return Record{}, err
		}
	}
	if _, err := q.GetRecord(ctx, sess.ID, studentID); err == nil {
		return Record{}, ErrDuplicateRecord
	} else if !errors.Is(err, ErrRecordNotFound) {
		return Record{}, err
	}
	return Record{SessionID: sess.ID, StudentID: studentID, AttendanceTime: at.UTC(), Status: status}, nil
}

// rejectReason maps a checkEntry rejection to its batch reason. ok is false for
// storage failures.
func rejectReason(err error) (reason string, ok bool) {
	switch {
	case errors.Is(err, errMissingStudent):
		return reasonMissingStudent, true
	case errors.Is(err, ErrStudentNotFound):
		return reasonUnknownStudent, true
	case errors.Is(err, ErrInvalidStatus):
		return reasonBadStatus, true
	case errors.Is(err, ErrInvalidInput):
		return reasonBadTime, true
	case errors.Is(err, ErrDuplicateRecord):
		return reasonDuplicate, true
	}
	return "", false
}

// SubmitBatch records statuses for many students of one session. Entries are
// validated one by one; failures are reported and skipped while the rest are
// written in the same transaction. It neither checks the session window nor
// overwrites existing records.
func (s *Service) SubmitBatch(ctx context.Context, actor Actor, sessionID string, entries []BatchEntry) (BatchResult, error) {
	if len(entries) == 0 {
		return BatchResult{}, fmt.Errorf("%w: at least one entry required", ErrInvalidInput)
	}
	now := s.clock()

	var res BatchResult
	err := s.store.WithTx(ctx, func(q Queries) error {
		res = BatchResult{Inserted: []Record{}, Failed: []BatchFailure{}, Total: len(entries)}
		sess, err := ownedSession(ctx, q, actor, sessionID)
		if err != nil {
			return err
		}

		fail := func(i int, studentID, reason string) {
			res.Failed = append(res.Failed, BatchFailure{Index: i, StudentID: studentID, Reason: reason})
		}
		type pending struct {
			index int
			rec   Record
		}
		seen := map[string]bool{}
		toInsert := []pending{}

		for i, e := range entries {
			rec, err := checkEntry(ctx, q, sess, e, now)
			if err != nil {
				reason, ok := rejectReason(err)
				if !ok {
					return err
				}
				fail(i, strings.TrimSpace(e.StudentID), reason)
				continue
			}
			if seen[rec.StudentID] {
				fail(i, rec.StudentID, reasonRepeated)
				continue
			}
			seen[rec.StudentID] = true
			toInsert = append(toInsert, pending{index: i, rec: rec})
		}

		for _, p := range toInsert {
			rec, inserted, err := q.InsertRecord(ctx, p.rec)
			if err != nil {
				return err
			}
			if !inserted {
				fail(p.index, p.rec.StudentID, reasonDuplicate)
				continue
			}
			res.Inserted = append(res.Inserted, rec)
		}
		res.InsertedCount = len(res.Inserted)
		res.FailedCount = len(res.Failed)
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	metrics.BatchEntries.WithLabelValues("inserted").Add(float64(res.InsertedCount))
	metrics.BatchEntries.WithLabelValues("failed").Add(float64(res.FailedCount))
	return res, nil
}

// CreateRecord inserts a single record with the same validation as a batch
// entry. An existing record for the pair is ErrDuplicateRecord, never updated.
func (s *Service) CreateRecord(ctx context.Context, actor Actor, sessionID string, e BatchEntry) (Record, error) {
	now := s.clock()
	var rec Record
	err := s.store.WithTx(ctx, func(q Queries) error {
		sess, err := ownedSession(ctx, q, actor, sessionID)
		if err != nil {
			return err
		}
		if rec, err = checkEntry(ctx, q, sess, e, now); err != nil {
			return err
		}
		var inserted bool
		if rec, inserted, err = q.InsertRecord(ctx, rec); err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicateRecord
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
