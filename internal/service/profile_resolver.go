package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/vitals-triage-server/internal/cache"
	"github.com/vitals-triage-server/internal/domain"
)

// ErrProfileStoreUnavailable is returned while the circuit breaker around profile reads is open.
var ErrProfileStoreUnavailable = errors.New("profile store unavailable")

// ProfileResolver resolves patient profiles through an in-process cache, an optional shared
// cache and finally the profile store. Store reads run behind a circuit breaker; a missing
// profile is not a failure and resolves to the default profile.
type ProfileResolver struct {
	store   domain.ProfileRepository
	memory  cache.ProfileCache
	shared  cache.ProfileCache
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger

	stats   ResolverStats
	statsMu sync.RWMutex
}

// ResolverStats represents profile resolution statistics
type ResolverStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	SharedHits    int64     `json:"shared_hits"`
	StoreReads    int64     `json:"store_reads"`
	DefaultsUsed  int64     `json:"defaults_used"`
	ErrorCount    int64     `json:"error_count"`
	TotalRequests int64     `json:"total_requests"`
	LastReset     time.Time `json:"last_reset"`
}

// ProfileResolverConfig configures the store circuit breaker
type ProfileResolverConfig struct {
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultProfileResolverConfig returns breaker settings suitable for a local database.
func DefaultProfileResolverConfig() ProfileResolverConfig {
	return ProfileResolverConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
	}
}

// NewProfileResolver creates a resolver. shared may be nil when no Redis is configured.
func NewProfileResolver(store domain.ProfileRepository, memory, shared cache.ProfileCache, config ProfileResolverConfig, logger *logrus.Logger) *ProfileResolver {
	r := &ProfileResolver{
		store:  store,
		memory: memory,
		shared: shared,
		log:    logger,
		stats:  ResolverStats{LastReset: time.Now()},
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ProfileStore",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return r
}

// Resolve returns the profile for patientID. When the patient has no stored profile the
// default profile (no conditions, no personal thresholds) is returned.
func (r *ProfileResolver) Resolve(ctx context.Context, patientID string) (*domain.PatientProfile, error) {
	r.recordRequest()

	if profile, ok, _ := r.memory.Get(ctx, patientID); ok {
		r.update(func(s *ResolverStats) { s.MemoryHits++ })
		return profile, nil
	}

	if r.shared != nil {
		profile, ok, err := r.shared.Get(ctx, patientID)
		if err != nil {
			r.log.WithError(err).WithField("patient_id", patientID).Warn("Shared profile cache unavailable")
		} else if ok {
			r.update(func(s *ResolverStats) { s.SharedHits++ })
			_ = r.memory.Set(ctx, profile)
			return profile, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.store.GetProfile(ctx, patientID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.update(func(s *ResolverStats) { s.DefaultsUsed++ })
			return DefaultProfile(patientID), nil
		}
		r.update(func(s *ResolverStats) { s.ErrorCount++ })
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrProfileStoreUnavailable, err)
		}
		return nil, fmt.Errorf("resolving profile %s: %w", patientID, err)
	}

	profile := result.(*domain.PatientProfile)
	r.update(func(s *ResolverStats) { s.StoreReads++ })

	_ = r.memory.Set(ctx, profile)
	if r.shared != nil {
		if err := r.shared.Set(ctx, profile); err != nil {
			r.log.WithError(err).WithField("patient_id", patientID).Warn("Failed to populate shared profile cache")
		}
	}

	return profile, nil
}

// Invalidate drops patientID from both cache tiers.
func (r *ProfileResolver) Invalidate(ctx context.Context, patientID string) error {
	if err := r.memory.Delete(ctx, patientID); err != nil {
		return err
	}
	if r.shared != nil {
		if err := r.shared.Delete(ctx, patientID); err != nil {
			return fmt.Errorf("invalidating shared cache: %w", err)
		}
	}
	return nil
}

// BreakerState returns the current circuit breaker state.
func (r *ProfileResolver) BreakerState() gobreaker.State {
	return r.breaker.State()
}

// Stats returns a snapshot of resolution statistics.
func (r *ProfileResolver) Stats() ResolverStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func (r *ProfileResolver) recordRequest() {
	r.update(func(s *ResolverStats) { s.TotalRequests++ })
}

func (r *ProfileResolver) update(fn func(s *ResolverStats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}

// DefaultProfile is the profile used for patients without a stored one.
func DefaultProfile(patientID string) *domain.PatientProfile {
	return &domain.PatientProfile{
		PatientID:  patientID,
		Conditions: domain.Conditions{},
	}
}
