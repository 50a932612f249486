package domain

import (
	"context"
	"time"
)

// ThresholdEvaluator derives the severity status and reason codes for a record
type ThresholdEvaluator interface {
	Evaluate(record *Entry, thresholds Thresholds, conditions Conditions) *EvaluationResult
}

// RiskScorer computes a non-negative risk score independently of the evaluator
type RiskScorer interface {
	Score(record *Entry, thresholds Thresholds, conditions Conditions) int
}

// ActionRecommender derives recommended next steps from a record and its evaluation.
// A nil thresholds pointer selects the engine's default profile.
type ActionRecommender interface {
	Recommend(record *Entry, result *EvaluationResult, conditions Conditions, thresholds *Thresholds) []ActionCode
}

// ProfileRepository defines the interface for patient profile persistence
type ProfileRepository interface {
	GetProfile(ctx context.Context, patientID string) (*PatientProfile, error)
	UpsertProfile(ctx context.Context, profile *PatientProfile) error
}

// EntryRepository defines the interface for measurement entry persistence
type EntryRepository interface {
	SaveEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, patientID, id string) (*Entry, error)
	ListEntries(ctx context.Context, patientID string, limit, offset int) ([]*Entry, error)
	ListEntriesInRange(ctx context.Context, patientID string, from, to time.Time) ([]*Entry, error)
	DeleteEntry(ctx context.Context, patientID, id string) error
}

// EntryPublisher receives newly assessed entries for live delivery
type EntryPublisher interface {
	Publish(entry *Entry)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
