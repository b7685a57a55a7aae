package store

import (
	"fmt"
	"time"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrations are applied in order and recorded in schema_migrations. The DDL
// is valid for both SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		name:    "detections",
		statements: []string{
			// Detection log - append-only record of every prediction made
			// during an assessment
			`CREATE TABLE IF NOT EXISTS detections (
				id TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL,
				lesson_id INTEGER NOT NULL,
				label TEXT NOT NULL,
				confidence DOUBLE PRECISION NOT NULL,
				detected_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_detections_subject_lesson
				ON detections(subject_id, lesson_id, detected_at)`,
		},
	},
	{
		version: 2,
		name:    "progress",
		statements: []string{
			// Lessons a subject has completed by passing its assessment
			`CREATE TABLE IF NOT EXISTS lesson_completions (
				subject_id TEXT NOT NULL,
				lesson_id INTEGER NOT NULL,
				completed_at BIGINT NOT NULL,
				PRIMARY KEY (subject_id, lesson_id)
			)`,
			// Titles of assessments a subject has passed
			`CREATE TABLE IF NOT EXISTS assessment_passes (
				subject_id TEXT NOT NULL,
				title TEXT NOT NULL,
				passed_at BIGINT NOT NULL,
				PRIMARY KEY (subject_id, title)
			)`,
		},
	},
}

// runMigrations executes all pending database migrations.
func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(
			s.rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
			m.version, m.name, time.Now().Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}
