package service

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitals-triage-server/internal/domain"
)

func newTestEngine() *HealthRuleEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return NewHealthRuleEngine(logger, domain.DefaultThresholds)
}

func float(v float64) *float64 { return &v }

func record() *domain.Entry {
	return &domain.Entry{Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func withBP(e *domain.Entry, sys, dia int) *domain.Entry {
	e.BP = &domain.BloodPressure{Sys: sys, Dia: dia}
	return e
}

func withGlucose(e *domain.Entry, mmol float64, ctx domain.GlucoseContext) *domain.Entry {
	e.Glucose = &domain.Glucose{Mmol: mmol, Context: ctx}
	return e
}

func withFood(e *domain.Entry, salt, carb int) *domain.Entry {
	e.Food = &domain.Food{Salt: salt, Carb: carb}
	return e
}

func TestHealthRuleEngine_RuleOrder(t *testing.T) {
	engine := newTestEngine()
	assert.Equal(t, []string{"bloodPressure", "glucose", "medication", "alcohol", "diet"}, engine.Rules())
}

func TestHealthRuleEngine_Scenarios(t *testing.T) {
	engine := newTestEngine()
	hypertension := domain.Conditions{domain.ConditionHypertension}

	t.Run("A: blood pressure crisis", func(t *testing.T) {
		e := withBP(record(), 190, 130)
		a := engine.Assess(e, domain.DefaultThresholds, nil)

		assert.Equal(t, domain.StatusRed, a.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonBPCrisis}, a.Reasons)
		assert.Equal(t, []domain.ActionCode{domain.ActionSeekImmediateCare, domain.ActionBPCrisis}, a.Actions)
		// 10 + 0.5*50 + 0.3*40 + 30 + 5 (no exercise)
		assert.Equal(t, 82, a.RiskScore)
	})

	t.Run("B: fasting 2.5 with defaults follows the low branch", func(t *testing.T) {
		e := withGlucose(record(), 2.5, domain.GlucoseFasting)
		a := engine.Assess(e, domain.DefaultThresholds, nil)

		assert.Equal(t, domain.StatusRed, a.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonGlucoseLow, domain.ReasonGlucoseVeryLow}, a.Reasons)
		assert.NotContains(t, a.Reasons, domain.ReasonGlucoseFastingVeryHigh)
	})

	t.Run("B: very high branch takes precedence over the low branch", func(t *testing.T) {
		thresholds := domain.DefaultThresholds
		thresholds.GlucoseFastingHigh = 2.0
		thresholds.GlucoseRandomHigh = 2.2
		thresholds.GlucoseVeryHigh = 2.4
		thresholds.GlucoseLow = 1.5

		e := withGlucose(record(), 2.5, domain.GlucoseFasting)
		a := engine.Assess(e, thresholds, nil)

		assert.Equal(t, domain.StatusRed, a.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonGlucoseFastingVeryHigh}, a.Reasons)
		assert.NotContains(t, a.Reasons, domain.ReasonGlucoseVeryLow)
		assert.Equal(t, []domain.ActionCode{domain.ActionContactProvider, domain.ActionGlucoseVeryHigh}, a.Actions)
	})

	t.Run("C: random 2.5 escalates through the critical floor", func(t *testing.T) {
		e := withGlucose(record(), 2.5, domain.GlucoseRandom)
		a := engine.Assess(e, domain.DefaultThresholds, nil)

		assert.Equal(t, domain.StatusRed, a.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonGlucoseLow, domain.ReasonGlucoseVeryLow}, a.Reasons)
		assert.Equal(t, []domain.ActionCode{
			domain.ActionSeekImmediateCare, domain.ActionGlucoseVeryLow, domain.ActionConsumeGlucose,
		}, a.Actions)
		// 10 + 2.0*1.4 + 20 + 5 (no exercise) = 37.8
		assert.Equal(t, 38, a.RiskScore)
	})

	t.Run("D: low exercise only", func(t *testing.T) {
		e := record()
		e.Exercise = &domain.Exercise{Minutes: 10}
		a := engine.Assess(e, domain.DefaultThresholds, nil)

		assert.Equal(t, domain.StatusGreen, a.Status)
		assert.Empty(t, a.Reasons)
		assert.Equal(t, 18, a.RiskScore)
		assert.Equal(t, []domain.ActionCode{domain.ActionKeepRoutine}, a.Actions)
	})

	t.Run("E: high salt with systolic high", func(t *testing.T) {
		e := withFood(withBP(record(), 145, 70), 4, 2)
		a := engine.Assess(e, domain.DefaultThresholds, hypertension)

		assert.Equal(t, domain.StatusYellow, a.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonBPSysHigh, domain.ReasonSaltHighWithBP}, a.Reasons)
		assert.Equal(t, []domain.ActionCode{domain.ActionMonitorBP, domain.ActionReduceSaltImmediately}, a.Actions)
		assert.False(t, containsBoth(a.Actions, domain.ActionReduceSalt, domain.ActionReduceSaltImmediately))
		// 10 + 0.5*5 + 5 (no exercise) + 3 + 5 = 25.5
		assert.Equal(t, 26, a.RiskScore)
	})
}

func TestHealthRuleEngine_EvaluateBoundaries(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name    string
		entry   *domain.Entry
		status  domain.Status
		reasons []domain.ReasonCode
	}{
		{"empty record", record(), domain.StatusGreen, []domain.ReasonCode{}},
		{"normal bp", withBP(record(), 129, 79), domain.StatusGreen, []domain.ReasonCode{}},
		{"elevated by systolic", withBP(record(), 130, 70), domain.StatusYellow, []domain.ReasonCode{domain.ReasonBPElevated}},
		{"elevated by diastolic", withBP(record(), 120, 80), domain.StatusYellow, []domain.ReasonCode{domain.ReasonBPElevated}},
		{"both axes high at cut-off", withBP(record(), 140, 90), domain.StatusYellow, []domain.ReasonCode{domain.ReasonBPSysHigh, domain.ReasonBPDiaHigh}},
		{"just below high", withBP(record(), 139, 89), domain.StatusYellow, []domain.ReasonCode{domain.ReasonBPElevated}},
		{"systolic very high only", withBP(record(), 180, 119), domain.StatusRed, []domain.ReasonCode{domain.ReasonBPSysVeryHigh}},
		{"diastolic very high only", withBP(record(), 150, 120), domain.StatusRed, []domain.ReasonCode{domain.ReasonBPDiaVeryHigh}},
		{"crisis at cut-off", withBP(record(), 180, 120), domain.StatusRed, []domain.ReasonCode{domain.ReasonBPCrisis}},
		{"fasting at high", withGlucose(record(), 7.0, domain.GlucoseFasting), domain.StatusYellow, []domain.ReasonCode{domain.ReasonGlucoseHigh}},
		{"fasting below high", withGlucose(record(), 6.9, domain.GlucoseFasting), domain.StatusGreen, []domain.ReasonCode{}},
		{"random below high", withGlucose(record(), 9.9, domain.GlucoseRandom), domain.StatusGreen, []domain.ReasonCode{}},
		{"random at very high", withGlucose(record(), 13, domain.GlucoseRandom), domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseRandomVeryHigh}},
		{"fasting at very high", withGlucose(record(), 13, domain.GlucoseFasting), domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseFastingVeryHigh}},
		{"glucose at low", withGlucose(record(), 3.9, domain.GlucoseRandom), domain.StatusYellow, []domain.ReasonCode{domain.ReasonGlucoseLow}},
		{"glucose at critical floor", withGlucose(record(), 3.0, domain.GlucoseRandom), domain.StatusYellow, []domain.ReasonCode{domain.ReasonGlucoseLow}},
		{"glucose below critical floor", withGlucose(record(), 2.99, domain.GlucoseRandom), domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseLow, domain.ReasonGlucoseVeryLow}},
		{"alcohol at limit", func() *domain.Entry { e := record(); e.Alcohol = float(2); return e }(), domain.StatusGreen, []domain.ReasonCode{}},
		{"alcohol above limit", func() *domain.Entry { e := record(); e.Alcohol = float(2.5); return e }(), domain.StatusYellow, []domain.ReasonCode{domain.ReasonAlcoholHigh}},
		{"meds missed", func() *domain.Entry { e := record(); e.Meds = &domain.Medication{Taken: false}; return e }(), domain.StatusYellow, []domain.ReasonCode{domain.ReasonMedsMissed}},
		{"meds taken", func() *domain.Entry { e := record(); e.Meds = &domain.Medication{Taken: true}; return e }(), domain.StatusGreen, []domain.ReasonCode{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Evaluate(tt.entry, domain.DefaultThresholds, nil)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.reasons, result.Reasons)
		})
	}
}

func TestHealthRuleEngine_DietReasons(t *testing.T) {
	engine := newTestEngine()

	t.Run("salt needs hypertension and elevated bp", func(t *testing.T) {
		e := withFood(withBP(record(), 132, 70), 4, 1)

		with := engine.Evaluate(e, domain.DefaultThresholds, domain.Conditions{domain.ConditionHypertension})
		assert.Equal(t, []domain.ReasonCode{domain.ReasonBPElevated, domain.ReasonSaltHighWithBP}, with.Reasons)

		without := engine.Evaluate(e, domain.DefaultThresholds, nil)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonBPElevated}, without.Reasons)
	})

	t.Run("salt without bp reading emits nothing", func(t *testing.T) {
		e := withFood(record(), 5, 1)
		result := engine.Evaluate(e, domain.DefaultThresholds, domain.Conditions{domain.ConditionHypertension})
		assert.Equal(t, domain.StatusGreen, result.Status)
		assert.Empty(t, result.Reasons)
	})

	t.Run("carb reason never raises status", func(t *testing.T) {
		// 8.0 random is above fasting-high but below random-high.
		e := withFood(withGlucose(record(), 8.0, domain.GlucoseRandom), 1, 4)
		result := engine.Evaluate(e, domain.DefaultThresholds, domain.Conditions{domain.ConditionDiabetes})
		assert.Equal(t, domain.StatusGreen, result.Status)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonCarbHighWithGlucose}, result.Reasons)
	})
}

func TestHealthRuleEngine_MonotonicEscalation(t *testing.T) {
	engine := newTestEngine()

	// Each step adds one more finding; status must never step down.
	steps := []func(e *domain.Entry){
		func(e *domain.Entry) { e.Exercise = &domain.Exercise{Minutes: 5} },
		func(e *domain.Entry) { e.Food = &domain.Food{Salt: 5, Carb: 5} },
		func(e *domain.Entry) { e.Alcohol = float(4) },
		func(e *domain.Entry) { e.Meds = &domain.Medication{Taken: false} },
		func(e *domain.Entry) { e.BP = &domain.BloodPressure{Sys: 150, Dia: 85} },
		func(e *domain.Entry) { e.Glucose = &domain.Glucose{Mmol: 2.0, Context: domain.GlucoseFasting} },
	}

	e := record()
	previous := engine.Evaluate(e, domain.DefaultThresholds, nil).Status
	for i, step := range steps {
		step(e)
		current := engine.Evaluate(e, domain.DefaultThresholds, nil).Status
		assert.GreaterOrEqual(t, current.Rank(), previous.Rank(), "step %d lowered status", i)
		previous = current
	}
	assert.Equal(t, domain.StatusRed, previous)
}

func TestHealthRuleEngine_Idempotent(t *testing.T) {
	engine := newTestEngine()
	conditions := domain.Conditions{domain.ConditionHypertension, domain.ConditionDiabetes}
	e := withFood(withGlucose(withBP(record(), 150, 95), 11, domain.GlucoseRandom), 4, 4)
	e.Meds = &domain.Medication{Taken: false}
	e.Exercise = &domain.Exercise{Minutes: 20}
	e.Alcohol = float(3)

	first := engine.Assess(e, domain.DefaultThresholds, conditions)
	second := engine.Assess(e, domain.DefaultThresholds, conditions)
	assert.Equal(t, first, second)
}

func TestHealthRuleEngine_ReasonsAreUnique(t *testing.T) {
	engine := newTestEngine()
	e := withFood(withGlucose(withBP(record(), 200, 130), 20, domain.GlucoseFasting), 5, 5)
	e.Meds = &domain.Medication{Taken: false}
	e.Alcohol = float(6)

	result := engine.Evaluate(e, domain.DefaultThresholds, domain.Conditions{domain.ConditionHypertension, domain.ConditionDiabetes})
	seen := map[domain.ReasonCode]bool{}
	for _, reason := range result.Reasons {
		require.False(t, seen[reason], "duplicate reason %s", reason)
		seen[reason] = true
	}
	assert.Equal(t, []domain.ReasonCode{
		domain.ReasonBPCrisis,
		domain.ReasonGlucoseFastingVeryHigh,
		domain.ReasonMedsMissed,
		domain.ReasonAlcoholHigh,
		domain.ReasonSaltHighWithBP,
		domain.ReasonCarbHighWithGlucose,
	}, result.Reasons)
}

func TestHealthRuleEngine_Score(t *testing.T) {
	engine := newTestEngine()
	hypertension := domain.Conditions{domain.ConditionHypertension}

	tests := []struct {
		name       string
		entry      *domain.Entry
		conditions domain.Conditions
		want       int
	}{
		{"baseline without exercise", record(), nil, 15},
		{"exercise at 30 minutes", func() *domain.Entry { e := record(); e.Exercise = &domain.Exercise{Minutes: 30}; return e }(), nil, 10},
		{"exercise at 15 minutes", func() *domain.Entry { e := record(); e.Exercise = &domain.Exercise{Minutes: 15}; return e }(), nil, 15},
		{"glucose high excess", withGlucose(record(), 12, domain.GlucoseRandom), nil, 17},     // 10 + 1.2*2 + 5 = 17.4
		{"glucose very high flat", withGlucose(record(), 20, domain.GlucoseRandom), nil, 40}, // 10 + 25 + 5
		{"glucose low", withGlucose(record(), 3.4, domain.GlucoseRandom), nil, 16},           // 10 + 2.0*0.5 + 5
		{"meds missed with elevated bp", func() *domain.Entry {
			e := withBP(record(), 132, 70)
			e.Meds = &domain.Medication{Taken: false}
			return e
		}(), nil, 35}, // 10 + 15 + 5 + 5
		{"salt hypertensive without bp", withFood(record(), 4, 1), hypertension, 18}, // 10 + 3 + 5
		{"alcohol above limit", func() *domain.Entry { e := record(); e.Alcohol = float(3); return e }(), nil, 21},
		{"alcohol at limit", func() *domain.Entry { e := record(); e.Alcohol = float(2); return e }(), nil, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Score(tt.entry, domain.DefaultThresholds, tt.conditions))
		})
	}
}

func TestHealthRuleEngine_ScoreIsNonNegative(t *testing.T) {
	engine := newTestEngine()
	assert.GreaterOrEqual(t, engine.Score(nil, domain.DefaultThresholds, nil), 0)
	assert.GreaterOrEqual(t, engine.Score(withBP(record(), 60, 40), domain.DefaultThresholds, nil), 0)
}

func TestHealthRuleEngine_Recommend(t *testing.T) {
	engine := newTestEngine()
	hypertension := domain.Conditions{domain.ConditionHypertension}
	diabetes := domain.Conditions{domain.ConditionDiabetes}
	both := domain.Conditions{domain.ConditionHypertension, domain.ConditionDiabetes}

	tests := []struct {
		name       string
		entry      *domain.Entry
		conditions domain.Conditions
		want       []domain.ActionCode
	}{
		{
			name: "bp high with moderate salt, short walk and a drink",
			entry: func() *domain.Entry {
				e := withFood(withBP(record(), 150, 85), 3, 1)
				e.Exercise = &domain.Exercise{Minutes: 20}
				e.Alcohol = float(1)
				return e
			}(),
			want: []domain.ActionCode{domain.ActionMonitorBP, domain.ActionReduceSalt, domain.ActionLightWalk, domain.ActionLimitAlcohol},
		},
		{
			name:  "elevated band with high salt replaces watchSalt",
			entry: withFood(withBP(record(), 132, 70), 4, 1),
			want:  []domain.ActionCode{domain.ActionLifestyleChange, domain.ActionReduceSalt},
		},
		{
			name:       "elevated band with hypertensive high salt",
			entry:      withFood(withBP(record(), 132, 70), 5, 1),
			conditions: hypertension,
			want:       []domain.ActionCode{domain.ActionLifestyleChange, domain.ActionReduceSaltImmediately},
		},
		{
			name:       "glucose high diabetic with high carbs",
			entry:      withFood(withGlucose(record(), 8, domain.GlucoseFasting), 1, 4),
			conditions: diabetes,
			want:       []domain.ActionCode{domain.ActionReviewDiabetesMeds, domain.ActionReduceCarbs},
		},
		{
			name:  "glucose high without diabetes",
			entry: withGlucose(record(), 11, domain.GlucoseRandom),
			want:  []domain.ActionCode{domain.ActionFollowMealPlan},
		},
		{
			name:  "glucose low but not critical",
			entry: withGlucose(record(), 3.5, domain.GlucoseFasting),
			want:  []domain.ActionCode{domain.ActionConsumeGlucose, domain.ActionMonitorGlucose, domain.ActionReviewMeds},
		},
		{
			name:  "glucose low suppressed when red for bp crisis",
			entry: withGlucose(withBP(record(), 185, 125), 3.5, domain.GlucoseFasting),
			want:  []domain.ActionCode{domain.ActionSeekImmediateCare, domain.ActionBPCrisis},
		},
		{
			name:  "red without a specific cascade branch",
			entry: withBP(record(), 185, 100),
			want:  []domain.ActionCode{domain.ActionContactProvider, domain.ActionMonitorBP},
		},
		{
			name:       "glucose very high diabetic",
			entry:      withGlucose(record(), 15, domain.GlucoseRandom),
			conditions: diabetes,
			want:       []domain.ActionCode{domain.ActionContactProvider, domain.ActionGlucoseVeryHigh, domain.ActionCheckKetones},
		},
		{
			name: "missed meds with condition notes",
			entry: func() *domain.Entry {
				e := withGlucose(withBP(record(), 150, 95), 11, domain.GlucoseRandom)
				e.Meds = &domain.Medication{Taken: false}
				return e
			}(),
			conditions: both,
			want: []domain.ActionCode{
				domain.ActionMonitorBP,
				domain.ActionReviewDiabetesMeds,
				domain.ActionTakeMeds,
				domain.ActionTakeMedsBPNote,
				domain.ActionTakeMedsGlucoseNote,
			},
		},
		{
			name:       "high alcohol hypertensive",
			entry:      func() *domain.Entry { e := record(); e.Alcohol = float(3); return e }(),
			conditions: hypertension,
			want:       []domain.ActionCode{domain.ActionLimitAlcohol, domain.ActionAlcoholBPNote},
		},
		{
			name:       "green with gentle reminders",
			entry:      withFood(withBP(record(), 120, 70), 3, 3),
			conditions: both,
			want:       []domain.ActionCode{domain.ActionKeepRoutine, domain.ActionWatchSalt, domain.ActionWatchCarbs},
		},
		{
			name:  "green exercise alone does not add a walk",
			entry: func() *domain.Entry { e := record(); e.Exercise = &domain.Exercise{Minutes: 5}; return e }(),
			want:  []domain.ActionCode{domain.ActionKeepRoutine},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Evaluate(tt.entry, domain.DefaultThresholds, tt.conditions)
			actions := engine.Recommend(tt.entry, result, tt.conditions, nil)
			assert.Equal(t, tt.want, actions)
			assert.False(t, containsBoth(actions, domain.ActionReduceSalt, domain.ActionReduceSaltImmediately))
		})
	}
}

func TestHealthRuleEngine_RecommendUsesInjectedDefaults(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	strict := domain.DefaultThresholds
	strict.BPSysHigh = 125
	engine := NewHealthRuleEngine(logger, strict)

	e := withBP(record(), 126, 70)
	result := &domain.EvaluationResult{Status: domain.StatusYellow, Reasons: []domain.ReasonCode{domain.ReasonBPSysHigh}}

	assert.Equal(t, []domain.ActionCode{domain.ActionMonitorBP}, engine.Recommend(e, result, nil, nil))
	assert.Equal(t, strict, engine.Defaults())
}

func containsBoth(actions []domain.ActionCode, a, b domain.ActionCode) bool {
	var hasA, hasB bool
	for _, action := range actions {
		hasA = hasA || action == a
		hasB = hasB || action == b
	}
	return hasA && hasB
}
