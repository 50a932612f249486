package service

import (
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// HealthRuleEngine classifies a single measurement record. It evaluates status and reasons,
// computes a risk score and recommends actions. The engine holds only immutable configuration
// and is safe for concurrent use.
type HealthRuleEngine struct {
	logger   *logrus.Logger
	defaults domain.Thresholds
	rules    []StatusRule
}

// StatusRule is one named rule group of the threshold evaluator. Each rule proposes a status
// and the reason codes it emitted; proposals are folded with a monotonic max.
type StatusRule struct {
	Name     string
	Evaluate func(r *readings, conditions domain.Conditions) (domain.Status, []domain.ReasonCode)
}

// NewHealthRuleEngine creates a new rule engine using defaults wherever a caller supplies no
// thresholds.
func NewHealthRuleEngine(logger *logrus.Logger, defaults domain.Thresholds) *HealthRuleEngine {
	engine := &HealthRuleEngine{
		logger:   logger,
		defaults: defaults,
	}

	engine.initializeRules()

	return engine
}

// Defaults returns the engine's default threshold profile.
func (e *HealthRuleEngine) Defaults() domain.Thresholds {
	return e.defaults
}

// Rules returns the rule group names in evaluation order.
func (e *HealthRuleEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name
	}
	return names
}

// Evaluate runs every rule group in order and folds the results. Status never decreases
// during the fold and each reason code appears at most once.
func (e *HealthRuleEngine) Evaluate(record *domain.Entry, thresholds domain.Thresholds, conditions domain.Conditions) *domain.EvaluationResult {
	r := readRecord(record, thresholds)

	result := &domain.EvaluationResult{
		Status:  domain.StatusGreen,
		Reasons: []domain.ReasonCode{},
	}
	seen := make(map[domain.ReasonCode]struct{})

	for _, rule := range e.rules {
		status, reasons := rule.Evaluate(r, conditions)
		result.Status = domain.MaxStatus(result.Status, status)
		for _, reason := range reasons {
			if _, dup := seen[reason]; dup {
				continue
			}
			seen[reason] = struct{}{}
			result.Reasons = append(result.Reasons, reason)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"status":  result.Status.String(),
		"reasons": len(result.Reasons),
	}).Debug("Evaluated measurement record")

	return result
}

// Assess runs evaluator, scorer and recommender against one record.
func (e *HealthRuleEngine) Assess(record *domain.Entry, thresholds domain.Thresholds, conditions domain.Conditions) *domain.Assessment {
	result := e.Evaluate(record, thresholds, conditions)
	score := e.Score(record, thresholds, conditions)
	actions := e.Recommend(record, result, conditions, &thresholds)

	return &domain.Assessment{
		Status:     result.Status,
		Reasons:    result.Reasons,
		RiskScore:  score,
		Actions:    actions,
		Thresholds: thresholds,
		Conditions: conditions,
	}
}

func (e *HealthRuleEngine) initializeRules() {
	e.addRule("bloodPressure", evaluateBloodPressure)
	e.addRule("glucose", evaluateGlucose)
	e.addRule("medication", evaluateMedication)
	e.addRule("alcohol", evaluateAlcohol)
	e.addRule("diet", evaluateDiet)
}

func (e *HealthRuleEngine) addRule(name string, evaluate func(r *readings, conditions domain.Conditions) (domain.Status, []domain.ReasonCode)) {
	e.rules = append(e.rules, StatusRule{Name: name, Evaluate: evaluate})
}

func evaluateBloodPressure(r *readings, _ domain.Conditions) (domain.Status, []domain.ReasonCode) {
	if !r.hasBP {
		return domain.StatusGreen, nil
	}

	if r.bpCrisis {
		return domain.StatusRed, []domain.ReasonCode{domain.ReasonBPCrisis}
	}

	if r.bpVeryHigh() {
		var reasons []domain.ReasonCode
		if r.sysVeryHigh {
			reasons = append(reasons, domain.ReasonBPSysVeryHigh)
		}
		if r.diaVeryHigh {
			reasons = append(reasons, domain.ReasonBPDiaVeryHigh)
		}
		return domain.StatusRed, reasons
	}

	if r.sysHigh || r.diaHigh {
		var reasons []domain.ReasonCode
		if r.sysHigh {
			reasons = append(reasons, domain.ReasonBPSysHigh)
		}
		if r.diaHigh {
			reasons = append(reasons, domain.ReasonBPDiaHigh)
		}
		return domain.StatusYellow, reasons
	}

	if r.bpBand {
		return domain.StatusYellow, []domain.ReasonCode{domain.ReasonBPElevated}
	}

	return domain.StatusGreen, nil
}

func evaluateGlucose(r *readings, _ domain.Conditions) (domain.Status, []domain.ReasonCode) {
	switch r.glucose {
	case glucoseVeryHighTier:
		if r.glucoseCtx == domain.GlucoseFasting {
			return domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseFastingVeryHigh}
		}
		return domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseRandomVeryHigh}
	case glucoseHighTier:
		return domain.StatusYellow, []domain.ReasonCode{domain.ReasonGlucoseHigh}
	case glucoseLowTier:
		return domain.StatusYellow, []domain.ReasonCode{domain.ReasonGlucoseLow}
	case glucoseVeryLowTier:
		return domain.StatusRed, []domain.ReasonCode{domain.ReasonGlucoseLow, domain.ReasonGlucoseVeryLow}
	default:
		return domain.StatusGreen, nil
	}
}

func evaluateMedication(r *readings, _ domain.Conditions) (domain.Status, []domain.ReasonCode) {
	if r.medsMissed {
		return domain.StatusYellow, []domain.ReasonCode{domain.ReasonMedsMissed}
	}
	return domain.StatusGreen, nil
}

func evaluateAlcohol(r *readings, _ domain.Conditions) (domain.Status, []domain.ReasonCode) {
	if r.highAlcohol() {
		return domain.StatusYellow, []domain.ReasonCode{domain.ReasonAlcoholHigh}
	}
	return domain.StatusGreen, nil
}

// evaluateDiet only adds context reasons; it never raises status on its own.
func evaluateDiet(r *readings, conditions domain.Conditions) (domain.Status, []domain.ReasonCode) {
	var reasons []domain.ReasonCode
	if r.highSalt() && conditions.Has(domain.ConditionHypertension) && r.bpElevated() {
		reasons = append(reasons, domain.ReasonSaltHighWithBP)
	}
	if r.highCarb() && conditions.Has(domain.ConditionDiabetes) && r.hasGlucose && r.atFastingHigh {
		reasons = append(reasons, domain.ReasonCarbHighWithGlucose)
	}
	return domain.StatusGreen, reasons
}
