package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"esas/internal/attendance"
	"esas/internal/queue"
)

func setup(t *testing.T) (*attendance.Service, attendance.Record, *MemoryStore) {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	st := attendance.NewMemoryStore(clock)
	st.AddAssignment(attendance.Assignment{ID: "asg1", LecturerID: "lec1", CourseID: "CSC101", AcademicYearID: "2024/2025"})
	st.AddStudent("stu1")
	st.AddEnrollment("stu1", "CSC101", "2024/2025")

	svc := attendance.NewService(st, clock)
	lec := attendance.Actor{Role: "lecturer", EntityID: "lec1"}
	sess, err := svc.CreateSession(context.Background(), lec, attendance.CreateSessionInput{AssignmentID: "asg1", DurationMinutes: 15})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	res, err := svc.CheckIn(context.Background(), lec, sess.ID, "stu1")
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	return svc, res.Record, NewMemoryStore(clock)
}

func TestHandleWritesNotification(t *testing.T) {
	svc, rec, store := setup(t)
	n := NewNotifier(svc, store)

	if err := n.Handle(context.Background(), queue.Message{Type: queue.TypeCheckIn, Body: []byte(rec.ID)}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	list, err := store.ListForStudent(context.Background(), "stu1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if !strings.Contains(list[0].Message, "Present") || !strings.Contains(list[0].Message, "CSC101") {
		t.Fatalf("unexpected message %q", list[0].Message)
	}
}

func TestHandleSkipsUnknownAndForeignMessages(t *testing.T) {
	svc, _, store := setup(t)
	n := NewNotifier(svc, store)
	ctx := context.Background()

	if err := n.Handle(ctx, queue.Message{Type: "other", Body: []byte("x")}); err != nil {
		t.Fatalf("foreign type: %v", err)
	}
	if err := n.Handle(ctx, queue.Message{Type: queue.TypeCheckIn, Body: []byte("missing")}); err != nil {
		t.Fatalf("missing record: %v", err)
	}
	list, _ := store.ListForStudent(ctx, "stu1", 10)
	if len(list) != 0 {
		t.Fatalf("expected no notifications, got %d", len(list))
	}
}

func TestRunDrainsQueue(t *testing.T) {
	svc, rec, store := setup(t)
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, queue.Message{Type: queue.TypeCheckIn, Body: []byte(rec.ID)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- NewNotifier(svc, store).Run(ctx, q) }()

	deadline := time.After(2 * time.Second)
	for {
		list, _ := store.ListForStudent(context.Background(), "stu1", 10)
		if len(list) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("notification not written")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("notifier did not stop")
	}
}

func TestMemoryStoreListPagesAcrossStudents(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()
	for _, id := range []string{"stu1", "stu2", "stu1"} {
		now = now.Add(time.Minute)
		if _, err := store.Insert(ctx, Notification{StudentID: id, Message: "hi " + id}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(all))
	}
	if all[0].StudentID != "stu1" || all[1].StudentID != "stu2" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	tail, _ := store.List(ctx, 2, 1)
	if len(tail) != 2 || tail[0].ID != all[1].ID || tail[1].ID != all[2].ID {
		t.Fatalf("unexpected page: %+v", tail)
	}
	if past, _ := store.List(ctx, 10, 5); len(past) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(past))
	}
	if mine, _ := store.ListForStudent(ctx, "stu2", 10); len(mine) != 1 {
		t.Fatalf("student filter broken: %d", len(mine))
	}
}
