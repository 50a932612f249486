package domain

import (
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func TestValidateEntry(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		entry     *Entry
		wantField string
	}{
		{"valid empty record", &Entry{Timestamp: ts}, ""},
		{"valid full record", &Entry{
			Timestamp: ts,
			BP:        &BloodPressure{Sys: 120, Dia: 80},
			Glucose:   &Glucose{Mmol: 5.5, Context: GlucoseFasting},
			Meds:      &Medication{Taken: true},
			Food:      &Food{Salt: 3, Carb: 2},
			Exercise:  &Exercise{Minutes: 0},
			Alcohol:   floatPtr(0),
		}, ""},
		{"nil entry", nil, "entry"},
		{"missing timestamp", &Entry{}, "timestamp"},
		{"zero systolic", &Entry{Timestamp: ts, BP: &BloodPressure{Sys: 0, Dia: 80}}, "bp.sys"},
		{"negative diastolic", &Entry{Timestamp: ts, BP: &BloodPressure{Sys: 120, Dia: -1}}, "bp.dia"},
		{"negative glucose", &Entry{Timestamp: ts, Glucose: &Glucose{Mmol: -0.1, Context: GlucoseRandom}}, "glucose.mmol"},
		{"unknown context", &Entry{Timestamp: ts, Glucose: &Glucose{Mmol: 5, Context: "bedtime"}}, "glucose.context"},
		{"salt out of range", &Entry{Timestamp: ts, Food: &Food{Salt: 6, Carb: 3}}, "food.salt"},
		{"carb below range", &Entry{Timestamp: ts, Food: &Food{Salt: 3, Carb: 0}}, "food.carb"},
		{"negative exercise", &Entry{Timestamp: ts, Exercise: &Exercise{Minutes: -5}}, "exercise.minutes"},
		{"negative alcohol", &Entry{Timestamp: ts, Alcohol: floatPtr(-1)}, "alcohol"},
		{"negative cigarettes", &Entry{Timestamp: ts, Cigarettes: floatPtr(-2)}, "cigarettes"},
		{"unknown role", &Entry{Timestamp: ts, CreatedByRole: "nurse"}, "created_by_role"},
		{"id with slash", &Entry{ID: "a/b", Timestamp: ts}, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.entry)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, ve.Field)
			}
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	if err := ValidateThresholds(DefaultThresholds); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}

	zero := DefaultThresholds
	zero.GlucoseLow = 0
	if err := ValidateThresholds(zero); !IsValidationError(err) {
		t.Errorf("Expected validation error for zero glucose_low, got %v", err)
	}

	inverted := DefaultThresholds
	inverted.BPSysHigh = 200
	if err := ValidateThresholds(inverted); !IsValidationError(err) {
		t.Errorf("Expected validation error for high above very high, got %v", err)
	}
}

func TestValidateProfile(t *testing.T) {
	if err := ValidateProfile(&PatientProfile{PatientID: "p1", Conditions: Conditions{ConditionDiabetes}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateProfile(&PatientProfile{}); !IsValidationError(err) {
		t.Errorf("Expected validation error for missing patient id, got %v", err)
	}
	if err := ValidateProfile(&PatientProfile{PatientID: "p1", Conditions: Conditions{"gout"}}); !IsValidationError(err) {
		t.Errorf("Expected validation error for unknown condition, got %v", err)
	}
	year := 1800
	if err := ValidateProfile(&PatientProfile{PatientID: "p1", YearOfBirth: &year}); !IsValidationError(err) {
		t.Errorf("Expected validation error for year of birth, got %v", err)
	}
}
