package attendance

import "context"

// Queries is the data access the service needs. Lookups of a single row return
// the package's not-found sentinel when nothing matches.
type Queries interface {
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	StudentExists(ctx context.Context, studentID string) (bool, error)
	IsEnrolled(ctx context.Context, studentID, courseID, academicYearID string) (bool, error)

	InsertSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessionsByAssignment(ctx context.Context, assignmentID string) ([]Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id string) error

	// InsertRecord inserts r unless a record for (SessionID, StudentID) exists.
	// inserted is false when the pair was already taken.
	InsertRecord(ctx context.Context, r Record) (rec Record, inserted bool, err error)
	GetRecord(ctx context.Context, sessionID, studentID string) (Record, error)
	GetRecordByID(ctx context.Context, id string) (Record, error)
	UpdateRecord(ctx context.Context, r Record) error
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)
	ListStudentRecords(ctx context.Context, studentID string) ([]StudentRecord, error)
}

// Store runs fn inside one transaction. It commits when fn returns nil and rolls
// back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(Queries) error) error
}
