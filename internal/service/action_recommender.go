package service

import (
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// Recommend derives the recommended actions for a record and its evaluation result.
// Groups run in a fixed order: the red cascade first, then the independent yellow/red layers,
// then the green fallback. A nil thresholds pointer selects the engine defaults.
func (e *HealthRuleEngine) Recommend(record *domain.Entry, result *domain.EvaluationResult, conditions domain.Conditions, thresholds *domain.Thresholds) []domain.ActionCode {
	t := e.defaults
	if thresholds != nil {
		t = *thresholds
	}
	status := domain.StatusGreen
	if result != nil {
		status = result.Status
	}

	r := readRecord(record, t)
	actions := NewActionSet()

	if status == domain.StatusRed {
		recommendUrgent(r, conditions, actions)
	}

	if status == domain.StatusYellow || status == domain.StatusRed {
		recommendBloodPressure(r, actions)
		recommendGlucose(r, status, conditions, actions)
		recommendMedication(r, conditions, actions)
		recommendLifestyle(r, conditions, actions)
	}

	if actions.Len() == 0 {
		actions.Add(domain.ActionKeepRoutine)
		if conditions.Has(domain.ConditionHypertension) && r.hasFood && r.salt >= dietModerateLevel {
			actions.Add(domain.ActionWatchSalt)
		}
		if conditions.Has(domain.ConditionDiabetes) && r.hasFood && r.carb >= dietModerateLevel {
			actions.Add(domain.ActionWatchCarbs)
		}
	}

	codes := actions.Codes()

	e.logger.WithFields(logrus.Fields{
		"status":  status.String(),
		"actions": len(codes),
	}).Debug("Recommended actions")

	return codes
}

// recommendUrgent is the exclusive red cascade; the first matching branch wins.
func recommendUrgent(r *readings, conditions domain.Conditions, actions *ActionSet) {
	switch {
	case r.bpCrisis:
		actions.Add(domain.ActionSeekImmediateCare, domain.ActionBPCrisis)
	case r.glucose == glucoseVeryHighTier:
		actions.Add(domain.ActionContactProvider, domain.ActionGlucoseVeryHigh)
		if conditions.Has(domain.ConditionDiabetes) {
			actions.Add(domain.ActionCheckKetones)
		}
	case r.glucose == glucoseVeryLowTier:
		actions.Add(domain.ActionSeekImmediateCare, domain.ActionGlucoseVeryLow, domain.ActionConsumeGlucose)
	default:
		actions.Add(domain.ActionContactProvider)
	}
}

func recommendBloodPressure(r *readings, actions *ActionSet) {
	if r.bpHighNotCrisis() {
		actions.Add(domain.ActionMonitorBP)
		if r.hasFood {
			switch {
			case r.salt >= dietHighLevel:
				actions.Add(domain.ActionReduceSaltImmediately)
			case r.salt == dietModerateLevel:
				actions.Add(domain.ActionReduceSalt)
			}
		}
		if r.lowExercise() {
			actions.Add(domain.ActionLightWalk)
		}
		if r.alcohol > 0 {
			actions.Add(domain.ActionLimitAlcohol)
		}
	}

	if r.bpElevatedOnly() {
		actions.Add(domain.ActionLifestyleChange, domain.ActionWatchSalt)
	}
}

func recommendGlucose(r *readings, status domain.Status, conditions domain.Conditions, actions *ActionSet) {
	switch r.glucose {
	case glucoseHighTier:
		if conditions.Has(domain.ConditionDiabetes) {
			actions.Add(domain.ActionReviewDiabetesMeds)
		} else {
			actions.Add(domain.ActionFollowMealPlan)
		}
		if r.highCarb() {
			actions.Add(domain.ActionReduceCarbs)
		}
	case glucoseLowTier:
		// Skipped when another rule already made the record red.
		if status != domain.StatusRed {
			actions.Add(domain.ActionConsumeGlucose, domain.ActionMonitorGlucose, domain.ActionReviewMeds)
		}
	}
}

func recommendMedication(r *readings, conditions domain.Conditions, actions *ActionSet) {
	if !r.medsMissed {
		return
	}
	actions.Add(domain.ActionTakeMeds)
	if conditions.Has(domain.ConditionHypertension) && r.bpElevated() {
		actions.Add(domain.ActionTakeMedsBPNote)
	}
	if conditions.Has(domain.ConditionDiabetes) && r.glucoseAboveContextHigh() {
		actions.Add(domain.ActionTakeMedsGlucoseNote)
	}
}

func recommendLifestyle(r *readings, conditions domain.Conditions, actions *ActionSet) {
	if r.lowExercise() {
		actions.Add(domain.ActionLightWalk)
	}

	if r.highSalt() {
		if conditions.Has(domain.ConditionHypertension) {
			actions.Add(domain.ActionReduceSaltImmediately)
		} else {
			actions.Add(domain.ActionReduceSalt)
		}
	}

	if r.highAlcohol() {
		actions.Add(domain.ActionLimitAlcohol)
		if conditions.Has(domain.ConditionHypertension) {
			actions.Add(domain.ActionAlcoholBPNote)
		}
	}
}
