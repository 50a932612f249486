package service

import (
	"github.com/vitals-triage-server/internal/domain"
)

const (
	// Pre-hypertension band, fixed regardless of the patient's thresholds.
	bpElevatedSys = 130
	bpElevatedDia = 80

	// Critical hypoglycaemia floor in mmol/L. Not patient-configurable.
	glucoseCriticalFloor = 3.0

	alcoholHighUnits  = 2
	dietHighLevel     = 4
	dietModerateLevel = 3
	exerciseLowMins   = 30
	exerciseVeryLow   = 15
)

// glucoseTier is the outcome of the mutually exclusive glucose branches.
type glucoseTier int

const (
	glucoseNone glucoseTier = iota
	glucoseInRange
	glucoseVeryHighTier
	glucoseHighTier
	glucoseLowTier
	glucoseVeryLowTier
)

// readings holds every threshold comparison the evaluator, scorer and recommender share.
// It is derived once per call so the three components cannot disagree about a boundary.
type readings struct {
	hasBP       bool
	sys, dia    float64
	bpCrisis    bool
	sysVeryHigh bool
	diaVeryHigh bool
	sysHigh     bool
	diaHigh     bool
	bpBand      bool

	hasGlucose    bool
	mmol          float64
	glucoseCtx    domain.GlucoseContext
	contextHigh   float64
	glucoseLow    float64
	glucose       glucoseTier
	atFastingHigh bool

	medsMissed bool

	hasExercise     bool
	exerciseMinutes int

	hasFood bool
	salt    int
	carb    int

	alcohol float64
}

func readRecord(record *domain.Entry, t domain.Thresholds) *readings {
	r := &readings{}
	if record == nil {
		return r
	}

	if bp := record.BP; bp != nil {
		r.hasBP = true
		r.sys = float64(bp.Sys)
		r.dia = float64(bp.Dia)
		r.sysVeryHigh = r.sys >= t.BPSysVeryHigh
		r.diaVeryHigh = r.dia >= t.BPDiaVeryHigh
		r.bpCrisis = r.sysVeryHigh && r.diaVeryHigh
		r.sysHigh = r.sys >= t.BPSysHigh
		r.diaHigh = r.dia >= t.BPDiaHigh
		r.bpBand = r.sys >= bpElevatedSys || r.dia >= bpElevatedDia
	}

	if g := record.Glucose; g != nil {
		r.hasGlucose = true
		r.mmol = g.Mmol
		r.glucoseCtx = g.Context
		r.contextHigh = t.GlucoseHighFor(g.Context)
		r.glucoseLow = t.GlucoseLow
		r.atFastingHigh = g.Mmol >= t.GlucoseFastingHigh

		switch {
		case g.Mmol >= t.GlucoseVeryHigh:
			r.glucose = glucoseVeryHighTier
		case g.Mmol >= r.contextHigh:
			r.glucose = glucoseHighTier
		case g.Mmol <= t.GlucoseLow && g.Mmol < glucoseCriticalFloor:
			r.glucose = glucoseVeryLowTier
		case g.Mmol <= t.GlucoseLow:
			r.glucose = glucoseLowTier
		default:
			r.glucose = glucoseInRange
		}
	}

	if m := record.Meds; m != nil {
		r.medsMissed = !m.Taken
	}
	if ex := record.Exercise; ex != nil {
		r.hasExercise = true
		r.exerciseMinutes = ex.Minutes
	}
	if f := record.Food; f != nil {
		r.hasFood = true
		r.salt = f.Salt
		r.carb = f.Carb
	}
	if record.Alcohol != nil {
		r.alcohol = *record.Alcohol
	}
	return r
}

// bpVeryHigh reports whether either axis reached its very-high cut-off.
func (r *readings) bpVeryHigh() bool {
	return r.sysVeryHigh || r.diaVeryHigh
}

// bpHighNotCrisis reports whether at least one axis is in the high or very-high tier
// without both axes reaching crisis.
func (r *readings) bpHighNotCrisis() bool {
	return r.hasBP && !r.bpCrisis && (r.bpVeryHigh() || r.sysHigh || r.diaHigh)
}

// bpElevatedOnly reports the pre-hypertension band with no higher tier firing.
func (r *readings) bpElevatedOnly() bool {
	return r.hasBP && !r.bpVeryHigh() && !r.sysHigh && !r.diaHigh && r.bpBand
}

// bpElevated reports whether any BP tier fires.
func (r *readings) bpElevated() bool {
	return r.hasBP && (r.bpVeryHigh() || r.sysHigh || r.diaHigh || r.bpBand)
}

// glucoseAboveContextHigh reports mmol at or above the context "high" cut-off,
// including the very-high tier.
func (r *readings) glucoseAboveContextHigh() bool {
	return r.hasGlucose && r.mmol >= r.contextHigh
}

func (r *readings) lowExercise() bool {
	return r.hasExercise && r.exerciseMinutes < exerciseLowMins
}

func (r *readings) highSalt() bool {
	return r.hasFood && r.salt >= dietHighLevel
}

func (r *readings) highCarb() bool {
	return r.hasFood && r.carb >= dietHighLevel
}

func (r *readings) highAlcohol() bool {
	return r.alcohol > alcoholHighUnits
}
