package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// Risk score weights. Contributions are additive and independent of one another.
const (
	riskBase = 10.0

	riskSysExcessWeight = 0.5
	riskDiaExcessWeight = 0.3
	riskBPVeryHigh      = 30.0

	riskGlucoseVeryHigh     = 25.0
	riskGlucoseExcessWeight = 1.2
	riskGlucoseLowWeight    = 2.0
	riskGlucoseCritical     = 20.0

	riskMedsMissed        = 15.0
	riskMedsWithBP        = 5.0
	riskMedsWithGlucose   = 5.0
	riskLowExercise       = 5.0
	riskVeryLowExercise   = 3.0
	riskSaltHypertensive  = 3.0
	riskSaltWithBP        = 5.0
	riskAlcoholUnitWeight = 2.0
)

// Score computes the risk score for a record. It never consults the evaluator output;
// both read the same threshold comparisons.
func (e *HealthRuleEngine) Score(record *domain.Entry, thresholds domain.Thresholds, conditions domain.Conditions) int {
	r := readRecord(record, thresholds)
	score := riskBase

	if r.hasBP {
		score += riskSysExcessWeight * math.Max(0, r.sys-thresholds.BPSysHigh)
		score += riskDiaExcessWeight * math.Max(0, r.dia-thresholds.BPDiaHigh)
		if r.bpVeryHigh() {
			score += riskBPVeryHigh
		}
	}

	if r.hasGlucose {
		switch {
		case r.glucose == glucoseVeryHighTier:
			score += riskGlucoseVeryHigh
		case r.mmol >= r.contextHigh:
			score += riskGlucoseExcessWeight * (r.mmol - r.contextHigh)
		case r.mmol <= r.glucoseLow:
			score += riskGlucoseLowWeight * (r.glucoseLow - r.mmol)
			if r.mmol < glucoseCriticalFloor {
				score += riskGlucoseCritical
			}
		}
	}

	if r.medsMissed {
		score += riskMedsMissed
		if r.bpElevated() {
			score += riskMedsWithBP
		}
		if r.glucoseAboveContextHigh() {
			score += riskMedsWithGlucose
		}
	}

	// Missing exercise counts as low exercise here, unlike everywhere else.
	if !r.hasExercise || r.exerciseMinutes < exerciseLowMins {
		score += riskLowExercise
	}
	if r.hasExercise && r.exerciseMinutes < exerciseVeryLow {
		score += riskVeryLowExercise
	}

	if r.highSalt() && conditions.Has(domain.ConditionHypertension) {
		score += riskSaltHypertensive
		if r.bpElevated() {
			score += riskSaltWithBP
		}
	}

	if r.highAlcohol() {
		score += riskAlcoholUnitWeight * r.alcohol
	}

	result := int(math.Max(0, math.Round(score)))

	e.logger.WithFields(logrus.Fields{
		"risk_score": result,
		"raw_score":  score,
	}).Debug("Scored measurement record")

	return result
}
