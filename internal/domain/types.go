// Package domain contains the core entities for classifying a single health measurement:
// the measurement record, the patient's threshold profile and chronic conditions, and the
// status, reason and action vocabularies produced by the rule engine.
//
// Reason and action codes are stable identifiers. Translating them into patient-facing text
// is left to the presentation layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the overall severity of a measurement record.
// Statuses are totally ordered: green < yellow < red.
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

// GlucoseContext describes when a glucose reading was taken.
type GlucoseContext string

const (
	GlucoseFasting GlucoseContext = "fasting"
	GlucoseRandom  GlucoseContext = "random"
)

// Condition is a chronic condition that gates condition-specific reasons and actions.
type Condition string

const (
	ConditionHypertension Condition = "hypertension"
	ConditionDiabetes     Condition = "diabetes"
)

// CreatorRole identifies who recorded an entry.
type CreatorRole string

const (
	RolePatient  CreatorRole = "patient"
	RoleProvider CreatorRole = "provider"
)

// ReasonCode explains why a status was reached.
type ReasonCode string

const (
	ReasonBPCrisis               ReasonCode = "bp.crisis"
	ReasonBPSysVeryHigh          ReasonCode = "bp.sys.veryHigh"
	ReasonBPDiaVeryHigh          ReasonCode = "bp.dia.veryHigh"
	ReasonBPSysHigh              ReasonCode = "bp.sys.high"
	ReasonBPDiaHigh              ReasonCode = "bp.dia.high"
	ReasonBPElevated             ReasonCode = "bp.elevated"
	ReasonGlucoseFastingVeryHigh ReasonCode = "glucose.fast.veryHigh"
	ReasonGlucoseRandomVeryHigh  ReasonCode = "glucose.random.veryHigh"
	ReasonGlucoseHigh            ReasonCode = "glucose.high"
	ReasonGlucoseLow             ReasonCode = "glucose.low"
	ReasonGlucoseVeryLow         ReasonCode = "glucose.veryLow"
	ReasonMedsMissed             ReasonCode = "meds.missed"
	ReasonAlcoholHigh            ReasonCode = "alcohol.high"
	ReasonSaltHighWithBP         ReasonCode = "salt.highWithBP"
	ReasonCarbHighWithGlucose    ReasonCode = "carb.highWithGlucose"
)

// ActionCode identifies a recommended next step.
type ActionCode string

const (
	ActionSeekImmediateCare     ActionCode = "seekImmediateCare"
	ActionBPCrisis              ActionCode = "bpCrisis"
	ActionContactProvider       ActionCode = "contactProvider"
	ActionGlucoseVeryHigh       ActionCode = "glucoseVeryHigh"
	ActionCheckKetones          ActionCode = "checkKetones"
	ActionGlucoseVeryLow        ActionCode = "glucoseVeryLow"
	ActionConsumeGlucose        ActionCode = "consumeGlucose"
	ActionMonitorBP             ActionCode = "monitorBP"
	ActionReduceSalt            ActionCode = "reduceSalt"
	ActionReduceSaltImmediately ActionCode = "reduceSaltImmediately"
	ActionWatchSalt             ActionCode = "watchSalt"
	ActionLightWalk             ActionCode = "lightWalk"
	ActionLimitAlcohol          ActionCode = "limitAlcohol"
	ActionAlcoholBPNote         ActionCode = "alcoholBPNote"
	ActionLifestyleChange       ActionCode = "lifestyleChange"
	ActionReviewDiabetesMeds    ActionCode = "reviewDiabetesMeds"
	ActionFollowMealPlan        ActionCode = "followMealPlan"
	ActionReduceCarbs           ActionCode = "reduceCarbs"
	ActionWatchCarbs            ActionCode = "watchCarbs"
	ActionMonitorGlucose        ActionCode = "monitorGlucose"
	ActionReviewMeds            ActionCode = "reviewMeds"
	ActionTakeMeds              ActionCode = "takeMeds"
	ActionTakeMedsBPNote        ActionCode = "takeMedsBPNote"
	ActionTakeMedsGlucoseNote   ActionCode = "takeMedsGlucoseNote"
	ActionKeepRoutine           ActionCode = "keepRoutine"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidContext   = errors.New("invalid glucose context")
)

// IsValid reports whether s is one of the three severity levels.
func (s Status) IsValid() bool {
	switch s {
	case StatusGreen, StatusYellow, StatusRed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Rank returns the position of s in the severity order. Unknown values rank below green.
func (s Status) Rank() int {
	switch s {
	case StatusGreen:
		return 0
	case StatusYellow:
		return 1
	case StatusRed:
		return 2
	default:
		return -1
	}
}

// MaxStatus returns the more severe of a and b.
func MaxStatus(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsValid reports whether c is a known glucose context.
func (c GlucoseContext) IsValid() bool {
	return c == GlucoseFasting || c == GlucoseRandom
}

// IsValid reports whether c is a supported chronic condition.
func (c Condition) IsValid() bool {
	return c == ConditionHypertension || c == ConditionDiabetes
}

// IsValid reports whether r is a known creator role.
func (r CreatorRole) IsValid() bool {
	return r == RolePatient || r == RoleProvider
}

// Conditions is the set of chronic conditions attached to a patient.
type Conditions []Condition

// Has reports whether c is present in the set.
func (cs Conditions) Has(c Condition) bool {
	for _, existing := range cs {
		if existing == c {
			return true
		}
	}
	return false
}

// ParseConditions normalizes, validates and de-duplicates raw condition names.
func ParseConditions(raw []string) (Conditions, error) {
	conditions := make(Conditions, 0, len(raw))
	for _, name := range raw {
		c := Condition(strings.ToLower(strings.TrimSpace(name)))
		if !c.IsValid() {
			return nil, NewValidationError("conditions", ErrInvalidCondition.Error(), name)
		}
		if !conditions.Has(c) {
			conditions = append(conditions, c)
		}
	}
	return conditions, nil
}

// Strings returns the condition names.
func (cs Conditions) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
