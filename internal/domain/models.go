package domain

import (
	"strconv"
	"time"
)

// BloodPressure is a single systolic/diastolic reading in mmHg.
type BloodPressure struct {
	Sys int `json:"sys"`
	Dia int `json:"dia"`
}

// Glucose is a blood glucose reading in mmol/L.
type Glucose struct {
	Mmol    float64        `json:"mmol"`
	Context GlucoseContext `json:"context"`
}

// Medication records whether the patient took their medication.
type Medication struct {
	Taken bool     `json:"taken"`
	Names []string `json:"names,omitempty"`
}

// Food holds self-reported salt and carbohydrate intake on a 1..5 scale.
type Food struct {
	Salt  int    `json:"salt"`
	Carb  int    `json:"carb"`
	Notes string `json:"notes,omitempty"`
}

// Exercise holds minutes of physical activity.
type Exercise struct {
	Minutes int `json:"minutes"`
}

// Entry is one clinical observation snapshot. Every measurement group is optional and
// pointer-typed so an absent group is distinguishable from a zero value.
type Entry struct {
	ID            string         `json:"id,omitempty"`
	PatientID     string         `json:"patient_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	BP            *BloodPressure `json:"bp,omitempty"`
	Glucose       *Glucose       `json:"glucose,omitempty"`
	Meds          *Medication    `json:"meds,omitempty"`
	Food          *Food          `json:"food,omitempty"`
	Exercise      *Exercise      `json:"exercise,omitempty"`
	Alcohol       *float64       `json:"alcohol,omitempty"`
	Cigarettes    *float64       `json:"cigarettes,omitempty"`
	Herbs         []string       `json:"herbs,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedByRole CreatorRole    `json:"created_by_role,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`

	// Populated only by the rule engine.
	Status        Status       `json:"status,omitempty"`
	StatusReasons []ReasonCode `json:"status_reasons,omitempty"`
	RiskScore     int          `json:"risk_score"`
	Actions       []ActionCode `json:"actions,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EnsureID derives the entry ID from the timestamp in milliseconds when none is set.
func (e *Entry) EnsureID() string {
	if e.ID == "" {
		e.ID = strconv.FormatInt(e.Timestamp.UnixMilli(), 10)
	}
	return e.ID
}

// Apply attaches the engine outputs to the entry.
func (e *Entry) Apply(a *Assessment) {
	e.Status = a.Status
	e.StatusReasons = append([]ReasonCode(nil), a.Reasons...)
	e.RiskScore = a.RiskScore
	e.Actions = append([]ActionCode(nil), a.Actions...)
}

// Thresholds are the patient-specific clinical cut-offs.
type Thresholds struct {
	BPSysHigh          float64 `json:"bp_sys_high" mapstructure:"bp_sys_high"`
	BPDiaHigh          float64 `json:"bp_dia_high" mapstructure:"bp_dia_high"`
	BPSysVeryHigh      float64 `json:"bp_sys_very_high" mapstructure:"bp_sys_very_high"`
	BPDiaVeryHigh      float64 `json:"bp_dia_very_high" mapstructure:"bp_dia_very_high"`
	GlucoseFastingHigh float64 `json:"glucose_fasting_high" mapstructure:"glucose_fasting_high"`
	GlucoseRandomHigh  float64 `json:"glucose_random_high" mapstructure:"glucose_random_high"`
	GlucoseVeryHigh    float64 `json:"glucose_very_high" mapstructure:"glucose_very_high"`
	GlucoseLow         float64 `json:"glucose_low" mapstructure:"glucose_low"`
}

// DefaultThresholds is the profile used for patients without personalized cut-offs.
var DefaultThresholds = Thresholds{
	BPSysHigh:          140,
	BPDiaHigh:          90,
	BPSysVeryHigh:      180,
	BPDiaVeryHigh:      120,
	GlucoseFastingHigh: 7,
	GlucoseRandomHigh:  10,
	GlucoseVeryHigh:    13,
	GlucoseLow:         3.9,
}

// GlucoseHighFor returns the "high" cut-off for the given reading context.
func (t Thresholds) GlucoseHighFor(ctx GlucoseContext) float64 {
	if ctx == GlucoseFasting {
		return t.GlucoseFastingHigh
	}
	return t.GlucoseRandomHigh
}

// PatientProfile carries the per-patient inputs the engine needs.
type PatientProfile struct {
	PatientID   string      `json:"patient_id"`
	DisplayName string      `json:"display_name,omitempty"`
	YearOfBirth *int        `json:"year_of_birth,omitempty"`
	Conditions  Conditions  `json:"conditions"`
	Thresholds  *Thresholds `json:"thresholds,omitempty"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty"`
}

// EffectiveThresholds returns the patient's own thresholds, or defaults when unset.
func (p *PatientProfile) EffectiveThresholds(defaults Thresholds) Thresholds {
	if p == nil || p.Thresholds == nil {
		return defaults
	}
	return *p.Thresholds
}

// EvaluationResult is the Threshold Evaluator output.
type EvaluationResult struct {
	Status  Status       `json:"status"`
	Reasons []ReasonCode `json:"reasons"`
}

// HasReason reports whether code was emitted.
func (r *EvaluationResult) HasReason(code ReasonCode) bool {
	for _, reason := range r.Reasons {
		if reason == code {
			return true
		}
	}
	return false
}

// Assessment bundles all four engine outputs for one record.
type Assessment struct {
	Status     Status       `json:"status"`
	Reasons    []ReasonCode `json:"status_reasons"`
	RiskScore  int          `json:"risk_score"`
	Actions    []ActionCode `json:"actions"`
	Thresholds Thresholds   `json:"thresholds"`
	Conditions Conditions   `json:"conditions"`
}
