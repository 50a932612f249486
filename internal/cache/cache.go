// Package cache provides the two cache tiers used to resolve patient profiles: an in-process
// expiring LRU and a shared Redis cache.
package cache

import (
	"context"

	"github.com/vitals-triage-server/internal/domain"
)

// ProfileCache stores patient profiles by patient ID. A miss is reported as (nil, false, nil).
type ProfileCache interface {
	Get(ctx context.Context, patientID string) (*domain.PatientProfile, bool, error)
	Set(ctx context.Context, profile *domain.PatientProfile) error
	Delete(ctx context.Context, patientID string) error
}

// Stats represents cache performance statistics
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// cloneProfile returns a deep copy so cached values cannot be mutated by callers.
func cloneProfile(p *domain.PatientProfile) *domain.PatientProfile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Conditions != nil {
		out.Conditions = append(domain.Conditions(nil), p.Conditions...)
	}
	if p.Thresholds != nil {
		t := *p.Thresholds
		out.Thresholds = &t
	}
	if p.YearOfBirth != nil {
		y := *p.YearOfBirth
		out.YearOfBirth = &y
	}
	return &out
}
