package catalog

import "time"

// Drug classes. Opioids contribute to the requirement; the rest reduce it.
const (
	ClassOpioid   = "Opioid"
	ClassNSAID    = "NSAID"
	ClassAdjuvant = "Adjuvant"
	ClassRegional = "Regional"
)

// PainScores is a 3-dimensional pain profile: how well a drug covers, or how
// strongly a procedure expresses, each pain quality on a 0-10 scale.
type PainScores struct {
	Somatic     float64 `db:"somatic" json:"somatic"`
	Visceral    float64 `db:"visceral" json:"visceral"`
	Neuropathic float64 `db:"neuropathic" json:"neuropathic"`
}

// Drug maps to the drug table. PotencyPercent is the fraction of the
// pre-adjuvant opioid requirement the drug can remove before the pain-profile
// mismatch penalty; it is the default the calibration layer learns away from.
type Drug struct {
	ID               string     `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Class            string     `db:"class" json:"class"`
	Pain             PainScores `json:"pain"`
	PotencyPercent   float64    `db:"potency_percent" json:"potency_percent"`
	ReferenceDoseMCG float64    `db:"reference_dose_mcg" json:"reference_dose_mcg,omitempty"`
	Units            string     `db:"units" json:"units"`
	OnsetMinutes     int        `db:"onset_minutes" json:"onset_minutes"`
	PeakMinutes      int        `db:"peak_minutes" json:"peak_minutes"`
	DurationMinutes  int        `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdjuvant reports whether the drug participates in the adjuvant reduction
// stage of the dose pipeline.
func (d *Drug) IsAdjuvant() bool {
	return d.Class == ClassNSAID || d.Class == ClassAdjuvant || d.Class == ClassRegional
}

// Procedure maps to the procedure table. BaseMME is the default opioid
// requirement in morphine milligram equivalents; the calibration layer keeps
// a learned override beside it.
type Procedure struct {
	ID        string     `db:"id" json:"id"`
	Specialty string     `db:"specialty" json:"specialty"`
	Name      string     `db:"name" json:"name"`
	KVACode   string     `db:"kva_code" json:"kva_code,omitempty"`
	BaseMME   float64    `db:"base_mme" json:"base_mme"`
	Pain      PainScores `json:"pain"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
