// Package store persists patient profiles and assessed measurement entries.
// Two backends are provided: SQLite for single-node and lite deployments and PostgreSQL for
// the full server. Both store the measurement groups as a JSON payload next to the indexed
// scalar outputs of the rule engine.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/vitals-triage-server/internal/domain"
)

// Store combines profile and entry persistence.
type Store interface {
	domain.ProfileRepository
	domain.EntryRepository

	// Close releases the underlying connections.
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// normalizePage clamps pagination arguments.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func encodePayload(entry *domain.Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding entry payload: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte) (*domain.Entry, error) {
	entry := &domain.Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("decoding entry payload: %w", err)
	}
	return entry, nil
}
