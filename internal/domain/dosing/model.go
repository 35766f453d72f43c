package dosing

import "fmt"

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Patient is the physiological snapshot a calculation runs against.
type Patient struct {
	Age              int     `json:"age"`
	Sex              Sex     `json:"sex"`
	WeightKG         float64 `json:"weight_kg"`
	HeightCM         float64 `json:"height_cm"`
	ASA              int     `json:"asa"`
	OpioidTolerant   bool    `json:"opioid_tolerant"`
	LowPainThreshold bool    `json:"low_pain_threshold"`
	RenalImpairment  bool    `json:"renal_impairment"`
}

func (p Patient) Validate() error {
	if p.Age < 0 || p.Age > 120 {
		return fmt.Errorf("age must be between 0 and 120")
	}
	if p.Sex != SexMale && p.Sex != SexFemale {
		return fmt.Errorf("sex must be %q or %q", SexMale, SexFemale)
	}
	if p.WeightKG <= 0 {
		return fmt.Errorf("weight_kg must be positive")
	}
	if p.HeightCM <= 0 {
		return fmt.Errorf("height_cm must be positive")
	}
	if p.ASA < 1 || p.ASA > 5 {
		return fmt.Errorf("asa must be between 1 and 5")
	}
	return nil
}

// AdjuvantUse references a non-opioid drug given alongside the opioid.
// Dose is in the drug's own units and only matters for drugs with a
// reference dose (e.g. clonidine), whose potency scales linearly with it.
type AdjuvantUse struct {
	DrugID string  `json:"drug_id"`
	Dose   float64 `json:"dose,omitempty"`
}

// Request is the input to a dose calculation.
type Request struct {
	UserID          string        `json:"user_id,omitempty"`
	ProcedureID     string        `json:"procedure_id"`
	Patient         Patient       `json:"patient"`
	Adjuvants       []AdjuvantUse `json:"adjuvants,omitempty"`
	FentanylDoseMCG float64       `json:"fentanyl_dose_mcg,omitempty"`
}

func (r Request) Validate() error {
	if r.ProcedureID == "" {
		return fmt.Errorf("procedure_id is required")
	}
	if err := r.Patient.Validate(); err != nil {
		return err
	}
	if r.FentanylDoseMCG < 0 {
		return fmt.Errorf("fentanyl_dose_mcg must not be negative")
	}
	for i, a := range r.Adjuvants {
		if a.DrugID == "" {
			return fmt.Errorf("adjuvants[%d]: drug_id is required", i)
		}
		if a.Dose < 0 {
			return fmt.Errorf("adjuvants[%d]: dose must not be negative", i)
		}
	}
	return nil
}

// Step records one pipeline stage for explainability. Factor is set for
// multiplicative stages, Delta for additive ones.
type Step struct {
	Stage  string  `json:"stage"`
	Factor float64 `json:"factor,omitempty"`
	Delta  float64 `json:"delta,omitempty"`
	MME    float64 `json:"mme"`
	Detail string  `json:"detail,omitempty"`
}

// Interpolation describes how a fine-bucket factor was obtained.
type Interpolation struct {
	Method      string  `json:"method"` // direct, interpolated, default
	Factor      float64 `json:"factor"`
	NearbyCount int     `json:"nearby_count,omitempty"`
	Sources     []int   `json:"sources,omitempty"`
}

const (
	MethodDirect       = "direct"
	MethodInterpolated = "interpolated"
	MethodDefault      = "default"
)

// Recommendation is the result of a calculation.
type Recommendation struct {
	ProcedureID         string        `json:"procedure_id"`
	DoseMME             float64       `json:"dose_mme"`
	BaseBeforeAdjuvants float64       `json:"base_before_adjuvants_mme"`
	AdjustedBodyWeight  float64       `json:"adjusted_body_weight_kg"`
	CompositeKey        string        `json:"composite_key"`
	AgeInterpolation    Interpolation `json:"age_interpolation"`
	WeightInterpolation Interpolation `json:"weight_interpolation"`
	Steps               []Step        `json:"steps"`
}
