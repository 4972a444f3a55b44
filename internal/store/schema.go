package store

import "database/sql"

// Migrate applies the schema. Safe to run repeatedly.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		email       TEXT UNIQUE NOT NULL,
		name        TEXT,
		role        TEXT NOT NULL DEFAULT 'user',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS face_encodings (
		id           TEXT PRIMARY KEY,
		subject_id   TEXT NOT NULL,
		encoding     JSONB NOT NULL,
		is_reference BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id          TEXT PRIMARY KEY,
		subject_id  TEXT NOT NULL,
		confidence  DOUBLE PRECISION NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL DEFAULT 'present',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_encodings_subject ON face_encodings(subject_id, is_reference);
	CREATE INDEX IF NOT EXISTS idx_records_time      ON attendance_records(occurred_at);
	`
	_, err := db.Exec(schema)
	return err
}
