package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		full_name  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS course_assignments (
		id               TEXT PRIMARY KEY,
		lecturer_id      TEXT NOT NULL,
		course_id        TEXT NOT NULL,
		academic_year_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_course_assignments_lecturer ON course_assignments(lecturer_id)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		student_id       TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		course_id        TEXT NOT NULL,
		academic_year_id TEXT NOT NULL,
		PRIMARY KEY (student_id, course_id, academic_year_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_sessions (
		id                  TEXT PRIMARY KEY,
		assignment_id       TEXT NOT NULL REFERENCES course_assignments(id) ON DELETE CASCADE,
		session_datetime    TIMESTAMPTZ NOT NULL,
		duration_minutes    INTEGER NOT NULL CHECK (duration_minutes BETWEEN 1 AND 10080),
		qr_code_expiry_time TIMESTAMPTZ NOT NULL,
		location            TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_sessions_assignment ON attendance_sessions(assignment_id, session_datetime DESC)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL REFERENCES attendance_sessions(id) ON DELETE CASCADE,
		student_id      TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		attendance_time TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL CHECK (status IN ('Present', 'Absent', 'Late', 'Excused')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_student ON attendance_records(student_id)`,
	`CREATE TABLE IF NOT EXISTS user_accounts (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('student', 'lecturer', 'admin')),
		entity_id     TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		message    TEXT NOT NULL,
		is_read    BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_student ON notifications(student_id, created_at DESC)`,
}

// EnsureSchema creates the tables the service reads and writes when they are
// missing. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
