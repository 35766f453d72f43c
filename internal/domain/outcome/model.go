package outcome

import (
	"fmt"

	"github.com/opidose/opidose/internal/domain/dosing"
)

// Quality classifies how well the recommended dose matched the patient's
// actual requirement.
type Quality string

const (
	QualityPerfect    Quality = "perfect"
	QualityUnderdosed Quality = "underdosed"
	QualityOverdosed  Quality = "overdosed"
	QualityAcceptable Quality = "acceptable"
)

// Report is what the clinician observed after the case.
type Report struct {
	GivenDoseMME  float64 `json:"given_dose_mme"`
	RescueDoseMME float64 `json:"rescue_dose_mme"`
	VAS           float64 `json:"vas"`
	RescueEarly   bool    `json:"rescue_early"`
	RescueLate    bool    `json:"rescue_late"`
	Respiratory   bool    `json:"respiratory_issue"`
}

func (r Report) Validate() error {
	if r.GivenDoseMME <= 0 {
		return fmt.Errorf("given_dose_mme must be positive")
	}
	if r.RescueDoseMME < 0 {
		return fmt.Errorf("rescue_dose_mme must not be negative")
	}
	if r.VAS < 0 || r.VAS > 10 {
		return fmt.Errorf("vas must be between 0 and 10")
	}
	return nil
}

// CaseContext carries the calculation-time facts a learning pass needs to
// attribute the prediction error.
type CaseContext struct {
	UserID          string
	ProcedureID     string
	Patient         dosing.Patient
	Adjuvants       []dosing.AdjuvantUse
	FentanylDoseMCG float64
	RecommendedMME  float64
	CompositeKey    string
}

// Requirement is the back-calculated estimate of what the patient actually
// needed, with the strength of the learning signal derived from it.
type Requirement struct {
	Quality           Quality `json:"quality"`
	ActualRequirement float64 `json:"actual_requirement_mme"`
	PredictionError   float64 `json:"prediction_error_mme"`
	GivenTotal        float64 `json:"given_total_mme"`
	LearningRate      float64 `json:"learning_rate"`
	Magnitude         float64 `json:"learning_magnitude"`
	Outlier           bool    `json:"outlier"`
}

// Result of one learning pass: the requirement analysis plus a human-readable
// description of every factor that moved.
type Result struct {
	Requirement
	Changes []string `json:"changes"`
}
