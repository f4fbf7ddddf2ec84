package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgForeignKeyViolation = "23503"

// Repository persists sessions and records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithTx implements Store.
func (r *Repository) WithTx(ctx context.Context, fn func(Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&pgQueries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgQueries struct {
	q dbtx
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (p *pgQueries) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	var a Assignment
	err := p.q.QueryRowContext(ctx, `
		SELECT id, lecturer_id, course_id, academic_year_id
		FROM course_assignments WHERE id = $1
	`, id).Scan(&a.ID, &a.LecturerID, &a.CourseID, &a.AcademicYearID)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, err
}

func (p *pgQueries) StudentExists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID).Scan(&exists)
	return exists, err
}

func (p *pgQueries) IsEnrolled(ctx context.Context, studentID, courseID, academicYearID string) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND course_id = $2 AND academic_year_id = $3
		)
	`, studentID, courseID, academicYearID).Scan(&exists)
	return exists, err
}

func (p *pgQueries) InsertSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := p.q.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, assignment_id, session_datetime, duration_minutes, qr_code_expiry_time, location)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, s.ID, s.AssignmentID, s.SessionDatetime, s.DurationMinutes, s.ExpiresAt, s.Location).Scan(&s.CreatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return Session{}, ErrAssignmentNotFound
		}
		return Session{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

const sessionColumns = `
	s.id, s.assignment_id, s.session_datetime, s.duration_minutes, s.qr_code_expiry_time, s.location, s.created_at,
	ca.lecturer_id, ca.course_id, ca.academic_year_id
	FROM attendance_sessions s
	JOIN course_assignments ca ON ca.id = s.assignment_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.AssignmentID, &s.SessionDatetime, &s.DurationMinutes, &s.ExpiresAt, &s.Location, &s.CreatedAt,
		&s.LecturerID, &s.CourseID, &s.AcademicYearID); err != nil {
		return Session{}, err
	}
	s.SessionDatetime = s.SessionDatetime.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (p *pgQueries) GetSession(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(p.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return s, err
}

func (p *pgQueries) listSessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (p *pgQueries) ListSessionsByAssignment(ctx context.Context, assignmentID string) ([]Session, error) {
	return p.listSessions(ctx, `SELECT `+sessionColumns+`
		WHERE s.assignment_id = $1
		ORDER BY s.session_datetime DESC`, assignmentID)
}

func (p *pgQueries) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	limit, offset = page(limit, offset)
	return p.listSessions(ctx, `SELECT `+sessionColumns+`
		ORDER BY s.session_datetime DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

func (p *pgQueries) UpdateSession(ctx context.Context, s Session) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET session_datetime = $2, duration_minutes = $3, qr_code_expiry_time = $4, location = $5
		WHERE id = $1
	`, s.ID, s.SessionDatetime, s.DurationMinutes, s.ExpiresAt, s.Location)
	return affected(res, err, ErrSessionNotFound)
}

// DeleteSession relies on ON DELETE CASCADE to remove the session's records.
func (p *pgQueries) DeleteSession(ctx context.Context, id string) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, id)
	return affected(res, err, ErrSessionNotFound)
}

func (p *pgQueries) InsertRecord(ctx context.Context, r Record) (Record, bool, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := p.q.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, attendance_time, status)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING created_at
	`, r.ID, r.SessionID, r.StudentID, r.AttendanceTime, string(r.Status)).Scan(&r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return Record{}, false, ErrStudentNotFound
		}
		return Record{}, false, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, true, nil
}

const recordColumns = `id, session_id, student_id, attendance_time, status, created_at`

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var status string
	if err := row.Scan(&r.ID, &r.SessionID, &r.StudentID, &r.AttendanceTime, &status, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.AttendanceTime = r.AttendanceTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (p *pgQueries) GetRecord(ctx context.Context, sessionID, studentID string) (Record, error) {
	r, err := scanRecord(p.q.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return r, err
}

func (p *pgQueries) GetRecordByID(ctx context.Context, id string) (Record, error) {
	r, err := scanRecord(p.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return r, err
}

func (p *pgQueries) UpdateRecord(ctx context.Context, r Record) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE attendance_records SET status = $2, attendance_time = $3 WHERE id = $1
	`, r.ID, string(r.Status), r.AttendanceTime)
	return affected(res, err, ErrRecordNotFound)
}

func (p *pgQueries) DeleteRecord(ctx context.Context, id string) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	return affected(res, err, ErrRecordNotFound)
}

// ListRecords returns records with basic filters, newest first.
func (p *pgQueries) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	limit, offset := page(f.Limit, f.Offset)
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
		clauses = append(clauses, "session_id = $"+strconv.Itoa(len(args)))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY attendance_time DESC, id LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (p *pgQueries) ListStudentRecords(ctx context.Context, studentID string) ([]StudentRecord, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT r.id, r.session_id, r.student_id, r.attendance_time, r.status, r.created_at,
		       ca.course_id, ca.academic_year_id, s.session_datetime
		FROM attendance_records r
		JOIN attendance_sessions s ON s.id = r.session_id
		JOIN course_assignments ca ON ca.id = s.assignment_id
		WHERE r.student_id = $1
		ORDER BY s.session_datetime DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []StudentRecord{}
	for rows.Next() {
		var sr StudentRecord
		var status string
		if err := rows.Scan(&sr.ID, &sr.SessionID, &sr.StudentID, &sr.AttendanceTime, &status, &sr.CreatedAt,
			&sr.CourseID, &sr.AcademicYearID, &sr.SessionDatetime); err != nil {
			return nil, err
		}
		sr.Status = Status(status)
		sr.AttendanceTime = sr.AttendanceTime.UTC()
		sr.CreatedAt = sr.CreatedAt.UTC()
		sr.SessionDatetime = sr.SessionDatetime.UTC()
		res = append(res, sr)
	}
	return res, rows.Err()
}

func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func page(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ Store = (*Repository)(nil)
