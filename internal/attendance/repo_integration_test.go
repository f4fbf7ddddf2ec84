package attendance

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"esas/internal/store"
)

// Set ATTENDANCE_TEST_DATABASE_URL to a disposable Postgres database to run these.
func openTestRepository(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	url := os.Getenv("ATTENDANCE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ATTENDANCE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.EnsureSchema(ctx, db.Client); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewRepository(db.Client), db.Client
}

type pgFixture struct {
	assignmentID string
	lecturerID   string
	studentID    string
	outsiderID   string
}

func seedPostgres(t *testing.T, db *sql.DB) pgFixture {
	t.Helper()
	ctx := context.Background()
	f := pgFixture{
		assignmentID: uuid.NewString(),
		lecturerID:   uuid.NewString(),
		studentID:    uuid.NewString(),
		outsiderID:   uuid.NewString(),
	}
	course, year := "C-"+f.assignmentID[:8], "2024/2025"
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO students (id) VALUES ($1), ($2)`, []any{f.studentID, f.outsiderID}},
		{`INSERT INTO course_assignments (id, lecturer_id, course_id, academic_year_id) VALUES ($1,$2,$3,$4)`,
			[]any{f.assignmentID, f.lecturerID, course, year}},
		{`INSERT INTO enrollments (student_id, course_id, academic_year_id) VALUES ($1,$2,$3)`,
			[]any{f.studentID, course, year}},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.q, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM course_assignments WHERE id = $1`, f.assignmentID)
		_, _ = db.ExecContext(context.Background(), `DELETE FROM students WHERE id IN ($1, $2)`, f.studentID, f.outsiderID)
	})
	return f
}

func TestRepositoryCheckInFlow(t *testing.T) {
	repo, db := openTestRepository(t)
	f := seedPostgres(t, db)
	ctx := context.Background()

	clock := &fakeClock{t: time.Now().UTC().Truncate(time.Microsecond)}
	svc := NewService(repo, clock.Now)
	actor := Actor{Role: "lecturer", EntityID: f.lecturerID}

	sess, err := svc.CreateSession(ctx, actor, CreateSessionInput{AssignmentID: f.assignmentID, DurationMinutes: 30})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !sess.ExpiresAt.Equal(sess.SessionDatetime.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", sess.ExpiresAt)
	}

	res, err := svc.CheckIn(ctx, actor, sess.ID, f.studentID)
	if err != nil || res.Outcome != OutcomeCreated {
		t.Fatalf("first check-in: %v %s", err, res.Outcome)
	}
	res, err = svc.CheckIn(ctx, actor, sess.ID, f.studentID)
	if err != nil || res.Outcome != OutcomeAlreadyPresent {
		t.Fatalf("second check-in: %v %s", err, res.Outcome)
	}
	if _, err := svc.CheckIn(ctx, actor, sess.ID, f.outsiderID); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}

	clock.Set(sess.ExpiresAt.Add(time.Second))
	if _, err := svc.CheckIn(ctx, actor, sess.ID, f.studentID); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}

	records, err := svc.ListSessionRecords(ctx, actor, sess.ID, 0, 0)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Status != StatusPresent {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := svc.DeleteSession(ctx, Actor{Role: "admin"}, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM attendance_records WHERE session_id = $1`, sess.ID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cascade delete, %d records left", n)
	}
}

func TestRepositoryConcurrentCheckIns(t *testing.T) {
	repo, db := openTestRepository(t)
	f := seedPostgres(t, db)
	ctx := context.Background()
	svc := NewService(repo, nil)
	actor := Actor{Role: "lecturer", EntityID: f.lecturerID}

	sess, err := svc.CreateSession(ctx, actor, CreateSessionInput{AssignmentID: f.assignmentID, DurationMinutes: 10})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CheckIn(ctx, actor, sess.ID, f.studentID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent check-in: %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM attendance_records WHERE session_id = $1 AND student_id = $2`,
		sess.ID, f.studentID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
}

func TestRepositoryBatchSkipsExisting(t *testing.T) {
	repo, db := openTestRepository(t)
	f := seedPostgres(t, db)
	ctx := context.Background()
	svc := NewService(repo, nil)
	actor := Actor{Role: "lecturer", EntityID: f.lecturerID}

	sess, err := svc.CreateSession(ctx, actor, CreateSessionInput{AssignmentID: f.assignmentID, DurationMinutes: 10})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.CheckIn(ctx, actor, sess.ID, f.studentID); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	res, err := svc.SubmitBatch(ctx, actor, sess.ID, []BatchEntry{
		{StudentID: f.studentID, Status: "Absent"},
		{StudentID: f.outsiderID, Status: "Excused"},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if res.InsertedCount != 1 || res.FailedCount != 1 {
		t.Fatalf("unexpected batch result: %+v", res)
	}
}
