package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/opidose/opidose/internal/domain/dosing"
	"github.com/opidose/opidose/internal/domain/outcome"
)

type Status string

const (
	// StatusOpen: recommendation issued, outcome not yet recorded.
	StatusOpen Status = "open"
	// StatusCompleted: outcome recorded and learned from. Immutable
	// except through an explicit amendment.
	StatusCompleted Status = "completed"
)

// Case is one clinical encounter: the inputs and recommendation at
// calculation time, and later the observed outcome.
type Case struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	UserID          string                 `db:"user_id" json:"user_id,omitempty"`
	ProcedureID     string                 `db:"procedure_id" json:"procedure_id"`
	Patient         dosing.Patient         `db:"patient" json:"patient"`
	Adjuvants       []dosing.AdjuvantUse   `db:"adjuvants" json:"adjuvants,omitempty"`
	FentanylDoseMCG float64                `db:"fentanyl_dose_mcg" json:"fentanyl_dose_mcg,omitempty"`
	Recommendation  *dosing.Recommendation `db:"recommendation" json:"recommendation"`
	Status          Status                 `db:"status" json:"status"`
	Outcome         *outcome.Report        `db:"outcome" json:"outcome,omitempty"`
	Quality         string                 `db:"quality" json:"quality,omitempty"`
	LearnedChanges  []string               `db:"learned_changes" json:"learned_changes,omitempty"`
	Amendments      []Amendment            `db:"amendments" json:"amendments,omitempty"`
	CompletedAt     *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
}

// Amendment preserves the outcome a correction replaced.
type Amendment struct {
	Previous outcome.Report `json:"previous"`
	Reason   string         `json:"reason,omitempty"`
	At       time.Time      `json:"at"`
}
