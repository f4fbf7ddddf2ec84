package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"esas/internal/attendance"
	"esas/internal/metrics"
	"esas/internal/queue"
)

// Notification is a message shown to a student.
type Notification struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	// ListForStudent returns the student's notifications, newest first.
	ListForStudent(ctx context.Context, studentID string, limit int) ([]Notification, error)
	// List pages through every student's notifications, newest first.
	List(ctx context.Context, limit, offset int) ([]Notification, error)
}

// RecordLoader resolves a record id carried by a check-in event.
type RecordLoader interface {
	RecordContext(ctx context.Context, recordID string) (attendance.Record, attendance.Session, error)
}

// Notifier turns check-in events into student notifications.
type Notifier struct {
	records RecordLoader
	store   Store
}

func NewNotifier(records RecordLoader, store Store) *Notifier {
	return &Notifier{records: records, store: store}
}

// Run consumes q until ctx is cancelled or the queue closes its channel.
func (n *Notifier) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for msg := range messages {
		if err := n.Handle(ctx, msg); err != nil {
			log.Printf("notify: %s %s: %v", msg.Type, msg.Body, err)
		}
	}
	return ctx.Err()
}

// Handle processes one message. Messages of other types are ignored, and a
// record deleted before the event is processed is skipped.
func (n *Notifier) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeCheckIn {
		return nil
	}
	rec, sess, err := n.records.RecordContext(ctx, string(msg.Body))
	if errors.Is(err, attendance.ErrRecordNotFound) || errors.Is(err, attendance.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := n.store.Insert(ctx, Notification{StudentID: rec.StudentID, Message: message(rec, sess)}); err != nil {
		return err
	}
	metrics.NotificationsSent.Inc()
	return nil
}

func message(rec attendance.Record, sess attendance.Session) string {
	return fmt.Sprintf("Attendance marked %s for %s (%s), session of %s at %s UTC.",
		rec.Status, sess.CourseID, sess.AcademicYearID,
		sess.SessionDatetime.UTC().Format("2006-01-02 15:04"),
		rec.AttendanceTime.UTC().Format("15:04"))
}
