package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/vitals-triage-server/internal/domain"
)

// SQLiteStore implements Store using SQLite. Times are stored as unix milliseconds.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := newSQLiteStore(db, logger)
	s.dbPath = dbPath

	logger.WithField("path", dbPath).Info("SQLite store opened")
	return s, nil
}

func newSQLiteStore(db *sql.DB, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patient_profiles (
		patient_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		year_of_birth INTEGER,
		conditions TEXT NOT NULL DEFAULT '[]',
		thresholds TEXT,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		patient_id TEXT NOT NULL,
		id TEXT NOT NULL,
		recorded_at_ms INTEGER NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		risk_score INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		PRIMARY KEY (patient_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_patient_recorded ON entries(patient_id, recorded_at_ms DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(s scanner) (*domain.PatientProfile, error) {
	profile := &domain.PatientProfile{}
	var (
		yearOfBirth          sql.NullInt64
		conditions           string
		thresholds           sql.NullString
		createdAt, updatedAt int64
	)

	if err := s.Scan(&profile.PatientID, &profile.DisplayName, &yearOfBirth, &conditions, &thresholds, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if yearOfBirth.Valid {
		year := int(yearOfBirth.Int64)
		profile.YearOfBirth = &year
	}
	if err := json.Unmarshal([]byte(conditions), &profile.Conditions); err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}
	if thresholds.Valid && thresholds.String != "" {
		profile.Thresholds = &domain.Thresholds{}
		if err := json.Unmarshal([]byte(thresholds.String), profile.Thresholds); err != nil {
			return nil, fmt.Errorf("decoding thresholds: %w", err)
		}
	}
	profile.CreatedAt = time.UnixMilli(createdAt).UTC()
	profile.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return profile, nil
}

func scanEntry(s scanner) (*domain.Entry, error) {
	var (
		patientID, id        string
		recordedAt           int64
		payload              string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&patientID, &id, &recordedAt, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entry, err := decodePayload([]byte(payload))
	if err != nil {
		return nil, err
	}
	entry.PatientID = patientID
	entry.ID = id
	entry.Timestamp = time.UnixMilli(recordedAt).UTC()
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	entry.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return entry, nil
}

// GetProfile returns the profile for patientID or domain.ErrNotFound.
func (s *SQLiteStore) GetProfile(ctx context.Context, patientID string) (*domain.PatientProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT patient_id, display_name, year_of_birth, conditions, thresholds, created_at_ms, updated_at_ms
		FROM patient_profiles WHERE patient_id = ?`, patientID)

	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", patientID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// UpsertProfile inserts or replaces a profile. CreatedAt is preserved on update.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.PatientProfile) error {
	conditions, err := json.Marshal(conditionsOrEmpty(profile.Conditions))
	if err != nil {
		return fmt.Errorf("encoding conditions: %w", err)
	}
	var thresholds sql.NullString
	if profile.Thresholds != nil {
		data, err := json.Marshal(profile.Thresholds)
		if err != nil {
			return fmt.Errorf("encoding thresholds: %w", err)
		}
		thresholds = sql.NullString{String: string(data), Valid: true}
	}
	var yearOfBirth sql.NullInt64
	if profile.YearOfBirth != nil {
		yearOfBirth = sql.NullInt64{Int64: int64(*profile.YearOfBirth), Valid: true}
	}

	now := s.now().UTC()
	var createdAt int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO patient_profiles (
			patient_id, display_name, year_of_birth, conditions, thresholds, created_at_ms, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			display_name = excluded.display_name,
			year_of_birth = excluded.year_of_birth,
			conditions = excluded.conditions,
			thresholds = excluded.thresholds,
			updated_at_ms = excluded.updated_at_ms
		RETURNING created_at_ms`,
		profile.PatientID,
		profile.DisplayName,
		yearOfBirth,
		string(conditions),
		thresholds,
		now.UnixMilli(),
		now.UnixMilli(),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	profile.CreatedAt = time.UnixMilli(createdAt).UTC()
	profile.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return nil
}

// SaveEntry inserts or merges an entry keyed by (patient_id, id). The recorded timestamp
// and creation time of an existing entry are kept.
func (s *SQLiteStore) SaveEntry(ctx context.Context, entry *domain.Entry) error {
	entry.EnsureID()
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	var recordedAt, createdAt int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO entries (
			patient_id, id, recorded_at_ms, payload, status, risk_score, created_at_ms, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id, id) DO UPDATE SET
			payload = excluded.payload,
			status = excluded.status,
			risk_score = excluded.risk_score,
			updated_at_ms = excluded.updated_at_ms
		RETURNING recorded_at_ms, created_at_ms`,
		entry.PatientID,
		entry.ID,
		entry.Timestamp.UnixMilli(),
		string(payload),
		string(entry.Status),
		entry.RiskScore,
		now.UnixMilli(),
		now.UnixMilli(),
	).Scan(&recordedAt, &createdAt)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": entry.PatientID,
			"entry_id":   entry.ID,
			"error":      err,
		}).Error("Failed to save entry")
		return fmt.Errorf("failed to save entry: %w", err)
	}

	entry.Timestamp = time.UnixMilli(recordedAt).UTC()
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	entry.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return nil
}

// GetEntry returns one entry or domain.ErrNotFound.
func (s *SQLiteStore) GetEntry(ctx context.Context, patientID, id string) (*domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT patient_id, id, recorded_at_ms, payload, created_at_ms, updated_at_ms
		FROM entries WHERE patient_id = ? AND id = ?`, patientID, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s/%s: %w", patientID, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns a page of entries, newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context, patientID string, limit, offset int) ([]*domain.Entry, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, id, recorded_at_ms, payload, created_at_ms, updated_at_ms
		FROM entries WHERE patient_id = ?
		ORDER BY recorded_at_ms DESC, id DESC
		LIMIT ? OFFSET ?`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return collectEntries(rows)
}

// ListEntriesInRange returns entries recorded within [from, to], newest first.
func (s *SQLiteStore) ListEntriesInRange(ctx context.Context, patientID string, from, to time.Time) ([]*domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, id, recorded_at_ms, payload, created_at_ms, updated_at_ms
		FROM entries WHERE patient_id = ? AND recorded_at_ms BETWEEN ? AND ?
		ORDER BY recorded_at_ms DESC, id DESC`, patientID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list entries in range: %w", err)
	}
	return collectEntries(rows)
}

// DeleteEntry removes one entry or returns domain.ErrNotFound.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, patientID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE patient_id = ? AND id = ?", patientID, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s/%s: %w", patientID, id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func collectEntries(rows *sql.Rows) ([]*domain.Entry, error) {
	defer rows.Close()

	entries := []*domain.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

func conditionsOrEmpty(c domain.Conditions) domain.Conditions {
	if c == nil {
		return domain.Conditions{}
	}
	return c
}
