package notify

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores notifications in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, student_id, message)
		VALUES ($1,$2,$3)
		RETURNING is_read, created_at
	`, n.ID, n.StudentID, n.Message).Scan(&n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

func (r *Repository) ListForStudent(ctx context.Context, studentID string, limit int) ([]Notification, error) {
	limit, _ = page(limit, 0)
	return r.query(ctx, `
		SELECT id, student_id, message, is_read, created_at
		FROM notifications
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, studentID, limit)
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Notification, error) {
	limit, offset = page(limit, offset)
	return r.query(ctx, `
		SELECT id, student_id, message, is_read, created_at
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.StudentID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		res = append(res, n)
	}
	return res, rows.Err()
}

// page defaults limit to 50, caps it at 200 and clamps offset at zero.
func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MemoryStore keeps notifications in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	byID map[string]Notification
}

// NewMemoryStore creates an empty store; nil now means wall clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, byID: map[string]Notification{}}
}

func (m *MemoryStore) Insert(_ context.Context, n Notification) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = m.now().UTC()
	m.byID[n.ID] = n
	return n, nil
}

func (m *MemoryStore) ListForStudent(_ context.Context, studentID string, limit int) ([]Notification, error) {
	limit, _ = page(limit, 0)
	return m.list(limit, 0, func(n Notification) bool { return n.StudentID == studentID }), nil
}

func (m *MemoryStore) List(_ context.Context, limit, offset int) ([]Notification, error) {
	limit, offset = page(limit, offset)
	return m.list(limit, offset, func(Notification) bool { return true }), nil
}

func (m *MemoryStore) list(limit, offset int, keep func(Notification) bool) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []Notification{}
	for _, n := range m.byID {
		if keep(n) {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if offset >= len(res) {
		return []Notification{}
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
