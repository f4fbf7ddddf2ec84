package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pairKey struct{ session, student string }

type enrollmentKey struct{ student, course, year string }

// MemoryStore is a Store kept in process memory, for dev runs and tests.
// Transactions are serialized and a failed transaction leaves no writes behind.
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	assignments map[string]Assignment
	students    map[string]bool
	enrollments map[enrollmentKey]bool
	sessions    map[string]Session
	records     map[string]Record
	pairs       map[pairKey]string
}

// NewMemoryStore creates an empty store. now stamps created_at; nil means wall clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:         now,
		assignments: map[string]Assignment{},
		students:    map[string]bool{},
		enrollments: map[enrollmentKey]bool{},
		sessions:    map[string]Session{},
		records:     map[string]Record{},
		pairs:       map[pairKey]string{},
	}
}

// AddStudent registers a student id.
func (m *MemoryStore) AddStudent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = true
}

// AddAssignment registers a course assignment.
func (m *MemoryStore) AddAssignment(a Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
}

// AddEnrollment binds a student to a course for an academic year.
func (m *MemoryStore) AddEnrollment(studentID, courseID, academicYearID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollmentKey{studentID, courseID, academicYearID}] = true
}

// RecordCount returns how many records exist for a session and student.
func (m *MemoryStore) RecordCount(sessionID, studentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.SessionID == sessionID && r.StudentID == studentID {
			n++
		}
	}
	return n
}

// WithTx implements Store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := cloneMap(m.sessions)
	records := cloneMap(m.records)
	pairs := cloneMap(m.pairs)
	if err := fn(memQueries{m}); err != nil {
		m.sessions, m.records, m.pairs = sessions, records, pairs
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// memQueries runs with m.mu held.
type memQueries struct {
	m *MemoryStore
}

func (q memQueries) GetAssignment(_ context.Context, id string) (Assignment, error) {
	a, ok := q.m.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

func (q memQueries) StudentExists(_ context.Context, studentID string) (bool, error) {
	return q.m.students[studentID], nil
}

func (q memQueries) IsEnrolled(_ context.Context, studentID, courseID, academicYearID string) (bool, error) {
	return q.m.enrollments[enrollmentKey{studentID, courseID, academicYearID}], nil
}

func (q memQueries) InsertSession(_ context.Context, s Session) (Session, error) {
	if _, ok := q.m.assignments[s.AssignmentID]; !ok {
		return Session{}, ErrAssignmentNotFound
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = q.m.now().UTC()
	s.LecturerID, s.CourseID, s.AcademicYearID = "", "", ""
	q.m.sessions[s.ID] = s
	return s, nil
}

func (q memQueries) joined(s Session) Session {
	a := q.m.assignments[s.AssignmentID]
	s.LecturerID = a.LecturerID
	s.CourseID = a.CourseID
	s.AcademicYearID = a.AcademicYearID
	return s
}

func (q memQueries) GetSession(_ context.Context, id string) (Session, error) {
	s, ok := q.m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return q.joined(s), nil
}

func (q memQueries) sortedSessions(keep func(Session) bool) []Session {
	res := []Session{}
	for _, s := range q.m.sessions {
		if keep(s) {
			res = append(res, q.joined(s))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].SessionDatetime.Equal(res[j].SessionDatetime) {
			return res[i].ID < res[j].ID
		}
		return res[i].SessionDatetime.After(res[j].SessionDatetime)
	})
	return res
}

func (q memQueries) ListSessionsByAssignment(_ context.Context, assignmentID string) ([]Session, error) {
	return q.sortedSessions(func(s Session) bool { return s.AssignmentID == assignmentID }), nil
}

func (q memQueries) ListSessions(_ context.Context, limit, offset int) ([]Session, error) {
	limit, offset = page(limit, offset)
	return window(q.sortedSessions(func(Session) bool { return true }), limit, offset), nil
}

func (q memQueries) UpdateSession(_ context.Context, s Session) error {
	cur, ok := q.m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	cur.SessionDatetime = s.SessionDatetime
	cur.DurationMinutes = s.DurationMinutes
	cur.ExpiresAt = s.ExpiresAt
	cur.Location = s.Location
	q.m.sessions[s.ID] = cur
	return nil
}

func (q memQueries) DeleteSession(_ context.Context, id string) error {
	if _, ok := q.m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(q.m.sessions, id)
	for rid, r := range q.m.records {
		if r.SessionID == id {
			delete(q.m.records, rid)
			delete(q.m.pairs, pairKey{r.SessionID, r.StudentID})
		}
	}
	return nil
}

func (q memQueries) InsertRecord(_ context.Context, r Record) (Record, bool, error) {
	if _, ok := q.m.sessions[r.SessionID]; !ok {
		return Record{}, false, ErrSessionNotFound
	}
	if !q.m.students[r.StudentID] {
		return Record{}, false, ErrStudentNotFound
	}
	key := pairKey{r.SessionID, r.StudentID}
	if _, taken := q.m.pairs[key]; taken {
		return Record{}, false, nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = q.m.now().UTC()
	q.m.records[r.ID] = r
	q.m.pairs[key] = r.ID
	return r, true, nil
}

func (q memQueries) GetRecord(_ context.Context, sessionID, studentID string) (Record, error) {
	id, ok := q.m.pairs[pairKey{sessionID, studentID}]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return q.m.records[id], nil
}

func (q memQueries) GetRecordByID(_ context.Context, id string) (Record, error) {
	r, ok := q.m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r, nil
}

func (q memQueries) UpdateRecord(_ context.Context, r Record) error {
	cur, ok := q.m.records[r.ID]
	if !ok {
		return ErrRecordNotFound
	}
	cur.Status = r.Status
	cur.AttendanceTime = r.AttendanceTime
	q.m.records[r.ID] = cur
	return nil
}

func (q memQueries) DeleteRecord(_ context.Context, id string) error {
	r, ok := q.m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	delete(q.m.records, id)
	delete(q.m.pairs, pairKey{r.SessionID, r.StudentID})
	return nil
}

func (q memQueries) ListRecords(_ context.Context, f RecordFilter) ([]Record, error) {
	limit, offset := page(f.Limit, f.Offset)
	res := []Record{}
	for _, r := range q.m.records {
		if f.SessionID != "" && r.SessionID != f.SessionID {
			continue
		}
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].AttendanceTime.Equal(res[j].AttendanceTime) {
			return res[i].ID < res[j].ID
		}
		return res[i].AttendanceTime.After(res[j].AttendanceTime)
	})
	return window(res, limit, offset), nil
}

func (q memQueries) ListStudentRecords(_ context.Context, studentID string) ([]StudentRecord, error) {
	res := []StudentRecord{}
	for _, r := range q.m.records {
		if r.StudentID != studentID {
			continue
		}
		s := q.joined(q.m.sessions[r.SessionID])
		res = append(res, StudentRecord{
			Record:          r,
			CourseID:        s.CourseID,
			AcademicYearID:  s.AcademicYearID,
			SessionDatetime: s.SessionDatetime,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].SessionDatetime.After(res[j].SessionDatetime)
	})
	return res, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ Store = (*MemoryStore)(nil)
