package domain

import (
	"fmt"
	"strings"
)

const (
	minLevel = 1
	maxLevel = 5
)

// ValidateEntry rejects records whose present fields fall outside their documented ranges.
// Absent groups are always valid.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return NewValidationError("entry", "entry is required", nil)
	}
	if e.Timestamp.IsZero() {
		return NewValidationError("timestamp", "timestamp is required", nil)
	}
	if e.ID != "" && strings.ContainsAny(e.ID, "/ ") {
		return NewValidationError("id", "id must not contain slashes or spaces", e.ID)
	}

	if bp := e.BP; bp != nil {
		if bp.Sys <= 0 {
			return NewValidationError("bp.sys", "must be positive", bp.Sys)
		}
		if bp.Dia <= 0 {
			return NewValidationError("bp.dia", "must be positive", bp.Dia)
		}
	}

	if g := e.Glucose; g != nil {
		if g.Mmol < 0 {
			return NewValidationError("glucose.mmol", "must not be negative", g.Mmol)
		}
		if !g.Context.IsValid() {
			return NewValidationError("glucose.context", ErrInvalidContext.Error(), g.Context)
		}
	}

	if f := e.Food; f != nil {
		if f.Salt < minLevel || f.Salt > maxLevel {
			return NewValidationError("food.salt", levelMessage(), f.Salt)
		}
		if f.Carb < minLevel || f.Carb > maxLevel {
			return NewValidationError("food.carb", levelMessage(), f.Carb)
		}
	}

	if e.Exercise != nil && e.Exercise.Minutes < 0 {
		return NewValidationError("exercise.minutes", "must not be negative", e.Exercise.Minutes)
	}
	if e.Alcohol != nil && *e.Alcohol < 0 {
		return NewValidationError("alcohol", "must not be negative", *e.Alcohol)
	}
	if e.Cigarettes != nil && *e.Cigarettes < 0 {
		return NewValidationError("cigarettes", "must not be negative", *e.Cigarettes)
	}
	if e.CreatedByRole != "" && !e.CreatedByRole.IsValid() {
		return NewValidationError("created_by_role", "must be patient or provider", e.CreatedByRole)
	}

	return nil
}

// ValidateThresholds checks that every cut-off is positive and that each "high" tier sits
// below its "very high" tier.
func ValidateThresholds(t Thresholds) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"bp_sys_high", t.BPSysHigh},
		{"bp_dia_high", t.BPDiaHigh},
		{"bp_sys_very_high", t.BPSysVeryHigh},
		{"bp_dia_very_high", t.BPDiaVeryHigh},
		{"glucose_fasting_high", t.GlucoseFastingHigh},
		{"glucose_random_high", t.GlucoseRandomHigh},
		{"glucose_very_high", t.GlucoseVeryHigh},
		{"glucose_low", t.GlucoseLow},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return NewValidationError("thresholds."+f.name, "must be positive", f.value)
		}
	}

	if t.BPSysHigh > t.BPSysVeryHigh {
		return NewValidationError("thresholds.bp_sys_high", "must not exceed bp_sys_very_high", t.BPSysHigh)
	}
	if t.BPDiaHigh > t.BPDiaVeryHigh {
		return NewValidationError("thresholds.bp_dia_high", "must not exceed bp_dia_very_high", t.BPDiaHigh)
	}
	if t.GlucoseFastingHigh > t.GlucoseVeryHigh {
		return NewValidationError("thresholds.glucose_fasting_high", "must not exceed glucose_very_high", t.GlucoseFastingHigh)
	}
	if t.GlucoseRandomHigh > t.GlucoseVeryHigh {
		return NewValidationError("thresholds.glucose_random_high", "must not exceed glucose_very_high", t.GlucoseRandomHigh)
	}
	return nil
}

// ValidateProfile validates a patient profile before it is stored.
func ValidateProfile(p *PatientProfile) error {
	if p == nil {
		return NewValidationError("profile", "profile is required", nil)
	}
	if strings.TrimSpace(p.PatientID) == "" {
		return NewValidationError("patient_id", "patient_id is required", p.PatientID)
	}
	for _, c := range p.Conditions {
		if !c.IsValid() {
			return NewValidationError("conditions", ErrInvalidCondition.Error(), c)
		}
	}
	if p.Thresholds != nil {
		if err := ValidateThresholds(*p.Thresholds); err != nil {
			return err
		}
	}
	if p.YearOfBirth != nil && (*p.YearOfBirth < 1900 || *p.YearOfBirth > 2100) {
		return NewValidationError("year_of_birth", "out of range", *p.YearOfBirth)
	}
	return nil
}

func levelMessage() string {
	return fmt.Sprintf("must be between %d and %d", minLevel, maxLevel)
}
