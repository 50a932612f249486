package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool. The schema comes from the
// database migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresStore creates a store on an existing pool. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return &PostgresStore{pool: pool, log: logger}, nil
}

// GetProfile returns the profile for patientID or domain.ErrNotFound.
func (s *PostgresStore) GetProfile(ctx context.Context, patientID string) (*domain.PatientProfile, error) {
	query := `
		SELECT patient_id, display_name, year_of_birth, conditions, thresholds, created_at, updated_at
		FROM patient_profiles
		WHERE patient_id = $1`

	var (
		profile     domain.PatientProfile
		yearOfBirth *int32
		conditions  []string
		thresholds  []byte
	)
	err := s.pool.QueryRow(ctx, query, patientID).Scan(
		&profile.PatientID,
		&profile.DisplayName,
		&yearOfBirth,
		&conditions,
		&thresholds,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", patientID, domain.ErrNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to get profile")
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if yearOfBirth != nil {
		year := int(*yearOfBirth)
		profile.YearOfBirth = &year
	}
	profile.Conditions = make(domain.Conditions, len(conditions))
	for i, c := range conditions {
		profile.Conditions[i] = domain.Condition(c)
	}
	if len(thresholds) > 0 {
		profile.Thresholds = &domain.Thresholds{}
		if err := json.Unmarshal(thresholds, profile.Thresholds); err != nil {
			return nil, fmt.Errorf("decoding thresholds: %w", err)
		}
	}
	return &profile, nil
}

// UpsertProfile inserts or replaces a profile. CreatedAt is preserved on update.
func (s *PostgresStore) UpsertProfile(ctx context.Context, profile *domain.PatientProfile) error {
	query := `
		INSERT INTO patient_profiles (
			patient_id, display_name, year_of_birth, conditions, thresholds, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (patient_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			year_of_birth = EXCLUDED.year_of_birth,
			conditions = EXCLUDED.conditions,
			thresholds = EXCLUDED.thresholds,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	var thresholds []byte
	if profile.Thresholds != nil {
		data, err := json.Marshal(profile.Thresholds)
		if err != nil {
			return fmt.Errorf("encoding thresholds: %w", err)
		}
		thresholds = data
	}

	err := s.pool.QueryRow(ctx, query,
		profile.PatientID,
		profile.DisplayName,
		profile.YearOfBirth,
		conditionsOrEmpty(profile.Conditions).Strings(),
		thresholds,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": profile.PatientID,
			"error":      err,
		}).Error("Failed to upsert profile")
		return fmt.Errorf("upserting profile: %w", err)
	}

	s.log.WithField("patient_id", profile.PatientID).Info("Profile saved")
	return nil
}

// SaveEntry inserts or merges an entry keyed by (patient_id, id). The recorded timestamp
// and creation time of an existing entry are kept.
func (s *PostgresStore) SaveEntry(ctx context.Context, entry *domain.Entry) error {
	entry.EnsureID()
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entries (
			patient_id, id, recorded_at, payload, status, risk_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (patient_id, id) DO UPDATE SET
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			risk_score = EXCLUDED.risk_score,
			updated_at = NOW()
		RETURNING recorded_at, created_at, updated_at`

	err = s.pool.QueryRow(ctx, query,
		entry.PatientID,
		entry.ID,
		entry.Timestamp.UTC(),
		payload,
		string(entry.Status),
		entry.RiskScore,
	).Scan(&entry.Timestamp, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": entry.PatientID,
			"entry_id":   entry.ID,
			"error":      err,
		}).Error("Failed to save entry")
		return fmt.Errorf("saving entry: %w", err)
	}

	entry.Timestamp = entry.Timestamp.UTC()
	return nil
}

// GetEntry returns one entry or domain.ErrNotFound.
func (s *PostgresStore) GetEntry(ctx context.Context, patientID, id string) (*domain.Entry, error) {
	query := `
		SELECT patient_id, id, recorded_at, payload, created_at, updated_at
		FROM entries
		WHERE patient_id = $1 AND id = $2`

	entry, err := scanPgEntry(s.pool.QueryRow(ctx, query, patientID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %s/%s: %w", patientID, id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns a page of entries, newest first.
func (s *PostgresStore) ListEntries(ctx context.Context, patientID string, limit, offset int) ([]*domain.Entry, error) {
	limit, offset = normalizePage(limit, offset)
	query := `
		SELECT patient_id, id, recorded_at, payload, created_at, updated_at
		FROM entries
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return collectPgEntries(rows)
}

// ListEntriesInRange returns entries recorded within [from, to], newest first.
func (s *PostgresStore) ListEntriesInRange(ctx context.Context, patientID string, from, to time.Time) ([]*domain.Entry, error) {
	query := `
		SELECT patient_id, id, recorded_at, payload, created_at, updated_at
		FROM entries
		WHERE patient_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, patientID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing entries in range: %w", err)
	}
	return collectPgEntries(rows)
}

// DeleteEntry removes one entry or returns domain.ErrNotFound.
func (s *PostgresStore) DeleteEntry(ctx context.Context, patientID, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM entries WHERE patient_id = $1 AND id = $2", patientID, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s/%s: %w", patientID, id, domain.ErrNotFound)
	}

	s.log.WithFields(logrus.Fields{
		"patient_id": patientID,
		"entry_id":   id,
	}).Info("Entry deleted")
	return nil
}

// Close is a no-op; the pool is closed by its owner.
func (s *PostgresStore) Close() error {
	return nil
}

func scanPgEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		patientID, id        string
		recordedAt           time.Time
		payload              []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&patientID, &id, &recordedAt, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entry, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	entry.PatientID = patientID
	entry.ID = id
	entry.Timestamp = recordedAt.UTC()
	entry.CreatedAt = createdAt.UTC()
	entry.UpdatedAt = updatedAt.UTC()
	return entry, nil
}

func collectPgEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	defer rows.Close()

	entries := []*domain.Entry{}
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}
