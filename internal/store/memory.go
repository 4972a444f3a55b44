package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/attendance"
	"faceattend/internal/face"
)

// Memory is an in-memory store for development and tests. Same interfaces
// as Postgres, serialized by a single mutex.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]attendance.User
	refs     map[string]face.Encoding
	captured map[string][]face.Encoding
	records  []attendance.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]attendance.User),
		refs:     make(map[string]face.Encoding),
		captured: make(map[string][]face.Encoding),
	}
}

// AddUser registers a user record.
func (m *Memory) AddUser(u attendance.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
}

// GetUserRole returns the subject's role, or "" when unknown.
func (m *Memory) GetUserRole(_ context.Context, subjectID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[subjectID].Role, nil
}

// ListUsers returns all users ordered by creation time.
func (m *Memory) ListUsers(_ context.Context) ([]attendance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]attendance.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// CountUsers returns the number of users.
func (m *Memory) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// SaveReference overwrites the subject's reference encoding.
func (m *Memory) SaveReference(_ context.Context, subjectID string, enc face.Encoding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[subjectID] = enc
	return nil
}

// SaveCaptured appends a captured encoding.
func (m *Memory) SaveCaptured(_ context.Context, subjectID string, enc face.Encoding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured[subjectID] = append(m.captured[subjectID], enc)
	return nil
}

// GetReference returns the subject's reference encoding, nil when absent.
func (m *Memory) GetReference(_ context.Context, subjectID string) (face.Encoding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[subjectID], nil
}

// CapturedCount reports stored captured encodings for a subject.
func (m *Memory) CapturedCount(subjectID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.captured[subjectID])
}

// Insert writes a new attendance record.
func (m *Memory) Insert(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	m.records = append(m.records, rec)
	return rec, nil
}

// List returns records newest first, optionally bounded.
func (m *Memory) List(_ context.Context, start, end *time.Time) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.Record
	for _, rec := range m.records {
		if start != nil && rec.Timestamp.Before(*start) {
			continue
		}
		if end != nil && !rec.Timestamp.Before(*end) {
			continue
		}
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	return res, nil
}

// CountPresentBetween counts present records in [start, end).
func (m *Memory) CountPresentBetween(_ context.Context, start, end time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.Status != attendance.StatusPresent {
			continue
		}
		if rec.Timestamp.Before(start) || !rec.Timestamp.Before(end) {
			continue
		}
		n++
	}
	return n, nil
}
