package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// EntryStore is the persistence the assessment service needs.
type EntryStore interface {
	domain.ProfileRepository
	domain.EntryRepository
}

// AssessmentService is the caller of the rule engine: it validates input at the boundary,
// resolves the patient's profile, runs the engine and persists the assessed entry.
type AssessmentService struct {
	engine    *HealthRuleEngine
	profiles  *ProfileResolver
	store     EntryStore
	publisher domain.EntryPublisher
	log       *logrus.Logger
	now       func() time.Time
}

// NewAssessmentService wires the service. publisher may be nil.
func NewAssessmentService(engine *HealthRuleEngine, profiles *ProfileResolver, store EntryStore, publisher domain.EntryPublisher, logger *logrus.Logger) *AssessmentService {
	return &AssessmentService{
		engine:    engine,
		profiles:  profiles,
		store:     store,
		publisher: publisher,
		log:       logger,
		now:       time.Now,
	}
}

// Engine returns the underlying rule engine.
func (s *AssessmentService) Engine() *HealthRuleEngine {
	return s.engine
}

// Assess validates a record and runs the engine without touching storage. A nil thresholds
// pointer selects the engine defaults.
func (s *AssessmentService) Assess(record *domain.Entry, thresholds *domain.Thresholds, conditions []string) (*domain.Assessment, error) {
	if err := domain.ValidateEntry(record); err != nil {
		return nil, err
	}

	t := s.engine.Defaults()
	if thresholds != nil {
		if err := domain.ValidateThresholds(*thresholds); err != nil {
			return nil, err
		}
		t = *thresholds
	}

	parsed, err := domain.ParseConditions(conditions)
	if err != nil {
		return nil, err
	}

	return s.engine.Assess(record, t, parsed), nil
}

// RecordEntry assesses an entry against the patient's stored profile, attaches the outputs,
// persists it and publishes it to live subscribers.
func (s *AssessmentService) RecordEntry(ctx context.Context, entry *domain.Entry) (*domain.Entry, error) {
	if entry == nil {
		return nil, domain.NewValidationError("entry", "entry is required", nil)
	}
	if strings.TrimSpace(entry.PatientID) == "" {
		return nil, domain.NewValidationError("patient_id", "patient_id is required", entry.PatientID)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	if entry.CreatedByRole == "" {
		entry.CreatedByRole = domain.RolePatient
	}
	if err := domain.ValidateEntry(entry); err != nil {
		return nil, err
	}

	profile, err := s.profiles.Resolve(ctx, entry.PatientID)
	if err != nil {
		return nil, err
	}

	thresholds := profile.EffectiveThresholds(s.engine.Defaults())
	assessment := s.engine.Assess(entry, thresholds, profile.Conditions)
	entry.Apply(assessment)

	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording entry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"patient_id": entry.PatientID,
		"entry_id":   entry.ID,
		"status":     entry.Status.String(),
		"risk_score": entry.RiskScore,
	}).Info("Entry recorded")

	if s.publisher != nil {
		s.publisher.Publish(entry)
	}
	return entry, nil
}

// GetEntry returns one entry.
func (s *AssessmentService) GetEntry(ctx context.Context, patientID, id string) (*domain.Entry, error) {
	return s.store.GetEntry(ctx, patientID, id)
}

// ListEntries returns a page of entries, newest first.
func (s *AssessmentService) ListEntries(ctx context.Context, patientID string, limit, offset int) ([]*domain.Entry, error) {
	if limit < 0 {
		return nil, domain.NewValidationError("limit", "must not be negative", limit)
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative", offset)
	}
	return s.store.ListEntries(ctx, patientID, limit, offset)
}

// ListEntriesInRange returns entries recorded within [from, to], newest first.
func (s *AssessmentService) ListEntriesInRange(ctx context.Context, patientID string, from, to time.Time) ([]*domain.Entry, error) {
	if to.Before(from) {
		return nil, domain.NewValidationError("to", "must not be before from", to)
	}
	return s.store.ListEntriesInRange(ctx, patientID, from, to)
}

// DeleteEntry removes one entry.
func (s *AssessmentService) DeleteEntry(ctx context.Context, patientID, id string) error {
	return s.store.DeleteEntry(ctx, patientID, id)
}

// GetProfile returns the patient's effective profile. Patients without a stored profile
// get the default one.
func (s *AssessmentService) GetProfile(ctx context.Context, patientID string) (*domain.PatientProfile, error) {
	return s.profiles.Resolve(ctx, patientID)
}

// UpsertProfile validates and stores a profile, then invalidates cached copies.
func (s *AssessmentService) UpsertProfile(ctx context.Context, profile *domain.PatientProfile) (*domain.PatientProfile, error) {
	if profile == nil {
		return nil, domain.NewValidationError("profile", "profile is required", nil)
	}
	conditions, err := domain.ParseConditions(profile.Conditions.Strings())
	if err != nil {
		return nil, err
	}
	profile.Conditions = conditions
	if err := domain.ValidateProfile(profile); err != nil {
		return nil, err
	}

	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	if err := s.profiles.Invalidate(ctx, profile.PatientID); err != nil {
		s.log.WithError(err).WithField("patient_id", profile.PatientID).Warn("Failed to invalidate cached profile")
	}
	return profile, nil
}
