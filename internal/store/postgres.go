package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/attendance"
	"faceattend/internal/face"
)

// Postgres persists users, face encodings, and attendance records. It is the
// sole point of concurrency control; this core holds no locks of its own.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a store on an open connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// GetUserRole returns the subject's role, or "" when no user record exists.
func (p *Postgres) GetUserRole(ctx context.Context, subjectID string) (string, error) {
	row := p.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, subjectID)
	var role string
	if err := row.Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return role, nil
}

// ListUsers returns all registered users.
func (p *Postgres) ListUsers(ctx context.Context) ([]attendance.User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, COALESCE(name, ''), role, created_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []attendance.User
	for rows.Next() {
		var u attendance.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered users.
func (p *Postgres) CountUsers(ctx context.Context) (int, error) {
	row := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var n int
	err := row.Scan(&n)
	return n, err
}

// SaveReference overwrites the subject's reference encoding. Concurrent
// overwrites for the same subject are last-write-wins.
func (p *Postgres) SaveReference(ctx context.Context, subjectID string, enc face.Encoding) error {
	payload, err := json.Marshal(enc)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM face_encodings WHERE subject_id = $1 AND is_reference
	`, subjectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO face_encodings (id, subject_id, encoding, is_reference)
		VALUES ($1, $2, $3, TRUE)
	`, uuid.NewString(), subjectID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveCaptured appends a non-reference encoding as a historical record.
func (p *Postgres) SaveCaptured(ctx context.Context, subjectID string, enc face.Encoding) error {
	payload, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO face_encodings (id, subject_id, encoding, is_reference)
		VALUES ($1, $2, $3, FALSE)
	`, uuid.NewString(), subjectID, payload)
	return err
}

// GetReference returns the subject's reference encoding, or nil when none
// exists.
func (p *Postgres) GetReference(ctx context.Context, subjectID string) (face.Encoding, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT encoding FROM face_encodings
		WHERE subject_id = $1 AND is_reference
		ORDER BY created_at DESC
		LIMIT 1
	`, subjectID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var enc face.Encoding
	if err := json.Unmarshal(payload, &enc); err != nil {
		return nil, fmt.Errorf("decode encoding: %w", err)
	}
	return enc, nil
}

// Insert writes a new attendance record.
func (p *Postgres) Insert(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, subject_id, confidence, occurred_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, rec.ID, rec.SubjectID, rec.Confidence, rec.Timestamp, rec.Status)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

// List returns records ordered newest first, optionally bounded by start and
// end.
func (p *Postgres) List(ctx context.Context, start, end *time.Time) ([]attendance.Record, error) {
	query := `SELECT id, subject_id, confidence, occurred_at, status, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if start != nil {
		args = append(args, *start)
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		clauses = append(clauses, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Confidence, &rec.Timestamp, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountPresentBetween counts present records in [start, end).
func (p *Postgres) CountPresentBetween(ctx context.Context, start, end time.Time) (int, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE status = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, attendance.StatusPresent, start, end)
	var n int
	err := row.Scan(&n)
	return n, err
}
