package attendance

import (
	"context"
	"time"

	"faceattend/internal/face"
)

// Record is one durable attendance event. Created exactly once per accepted
// request and never mutated afterwards.
type Record struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"user_id"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusPresent is the only status this core writes. Rejections are API
// responses, not stored facts.
const StatusPresent = "present"

// User is a registered identity record owned by the external store.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemStats is recomputed on every request and never cached.
type SystemStats struct {
	TotalUsers     int       `json:"total_users"`
	PresentToday   int       `json:"present_today"`
	AttendanceRate float64   `json:"attendance_rate"`
	SystemStatus   string    `json:"system_status"`
	LastUpdated    time.Time `json:"last_updated"`
}

// CapturedEncoding is the audit-trail message queued after a comparison.
type CapturedEncoding struct {
	SubjectID string        `json:"subject_id"`
	Encoding  face.Encoding `json:"encoding"`
}

// UserStore reads identity records from the external store.
type UserStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
}

// EncodingStore persists face encodings. A subject has at most one reference
// encoding (SaveReference overwrites) and any number of captured ones
// (SaveCaptured appends).
type EncodingStore interface {
	SaveReference(ctx context.Context, subjectID string, enc face.Encoding) error
	SaveCaptured(ctx context.Context, subjectID string, enc face.Encoding) error
	GetReference(ctx context.Context, subjectID string) (face.Encoding, error)
}

// RecordStore persists attendance records.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, start, end *time.Time) ([]Record, error)
	CountPresentBetween(ctx context.Context, start, end time.Time) (int, error)
}
