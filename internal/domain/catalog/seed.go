package catalog

import (
	"context"
	"errors"
)

// DefaultDrugs returns the built-in drug catalog. Potency percentages are
// clinical starting points; the calibration layer learns per-drug overrides.
func DefaultDrugs() []*Drug {
	return []*Drug{
		{ID: "fentanyl", Name: "Fentanyl", Class: ClassOpioid,
			Pain: PainScores{Somatic: 5, Visceral: 5, Neuropathic: 3},
			Units: "mcg", OnsetMinutes: 2, PeakMinutes: 5, DurationMinutes: 30},
		{ID: "oxycodone", Name: "Oxycodone", Class: ClassOpioid,
			Pain: PainScores{Somatic: 5, Visceral: 5, Neuropathic: 3},
			Units: "mg", OnsetMinutes: 30, PeakMinutes: 60, DurationMinutes: 240},

		{ID: "paracetamol_1g", Name: "Paracetamol 1g", Class: ClassNSAID,
			Pain:           PainScores{Somatic: 7, Visceral: 3, Neuropathic: 1},
			PotencyPercent: 0.15, Units: "mg", OnsetMinutes: 30, PeakMinutes: 60, DurationMinutes: 240},
		{ID: "ibuprofen_400mg", Name: "Ibuprofen 400mg", Class: ClassNSAID,
			Pain:           PainScores{Somatic: 9, Visceral: 2, Neuropathic: 1},
			PotencyPercent: 0.175, Units: "mg", OnsetMinutes: 30, PeakMinutes: 60, DurationMinutes: 360},
		{ID: "ketorolac_30mg", Name: "Ketorolac 30mg", Class: ClassNSAID,
			Pain:           PainScores{Somatic: 9, Visceral: 2, Neuropathic: 1},
			PotencyPercent: 0.20, Units: "mg", OnsetMinutes: 10, PeakMinutes: 30, DurationMinutes: 300},
		{ID: "parecoxib_40mg", Name: "Parecoxib 40mg (COX-2)", Class: ClassNSAID,
			Pain:           PainScores{Somatic: 9, Visceral: 2, Neuropathic: 1},
			PotencyPercent: 0.20, Units: "mg", OnsetMinutes: 15, PeakMinutes: 45, DurationMinutes: 360},

		{ID: "clonidine", Name: "Clonidine (alpha-2 agonist)", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 3, Visceral: 7, Neuropathic: 6},
			PotencyPercent: 0.075, ReferenceDoseMCG: 75, Units: "mcg",
			OnsetMinutes: 30, PeakMinutes: 90, DurationMinutes: 480},

		{ID: "ketamine_small_bolus", Name: "Ketamine small bolus (0.05-0.1 mg/kg)", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 5, Neuropathic: 9},
			PotencyPercent: 0.10, Units: "mg/kg", OnsetMinutes: 5, PeakMinutes: 15, DurationMinutes: 60},
		{ID: "ketamine_large_bolus", Name: "Ketamine large bolus (0.5-1 mg/kg)", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 5, Neuropathic: 9},
			PotencyPercent: 0.20, Units: "mg/kg", OnsetMinutes: 5, PeakMinutes: 15, DurationMinutes: 90},
		{ID: "ketamine_small_infusion", Name: "Ketamine infusion (0.10-0.15 mg/kg/h)", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 5, Neuropathic: 9},
			PotencyPercent: 0.30, Units: "mg/kg/h", OnsetMinutes: 10, PeakMinutes: 30, DurationMinutes: 180},
		{ID: "ketamine_large_infusion", Name: "Ketamine infusion (3 mg/kg/h)", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 5, Neuropathic: 9},
			PotencyPercent: 0.50, Units: "mg/kg/h", OnsetMinutes: 10, PeakMinutes: 30, DurationMinutes: 240},

		{ID: "lidocaine_bolus", Name: "Lidocaine bolus", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 6, Neuropathic: 7},
			PotencyPercent: 0.20, Units: "mg", OnsetMinutes: 5, PeakMinutes: 15, DurationMinutes: 60},
		{ID: "lidocaine_infusion", Name: "Lidocaine infusion", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 4, Visceral: 6, Neuropathic: 7},
			PotencyPercent: 0.35, Units: "mg/h", OnsetMinutes: 10, PeakMinutes: 30, DurationMinutes: 180},

		{ID: "betamethasone_4mg", Name: "Betamethasone 4mg", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 6, Visceral: 4, Neuropathic: 2},
			PotencyPercent: 0.025, Units: "mg", OnsetMinutes: 120, PeakMinutes: 240, DurationMinutes: 720},
		{ID: "betamethasone_8mg", Name: "Betamethasone 8mg", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 6, Visceral: 4, Neuropathic: 2},
			PotencyPercent: 0.05, Units: "mg", OnsetMinutes: 120, PeakMinutes: 240, DurationMinutes: 720},

		{ID: "droperidol", Name: "Droperidol", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 5, Visceral: 5, Neuropathic: 4},
			PotencyPercent: 0.30, Units: "mg", OnsetMinutes: 10, PeakMinutes: 30, DurationMinutes: 180},

		{ID: "sevoflurane", Name: "Sevoflurane", Class: ClassAdjuvant,
			Pain:           PainScores{Somatic: 5, Visceral: 5, Neuropathic: 3},
			PotencyPercent: 0.08, Units: "vol%", OnsetMinutes: 2, PeakMinutes: 5, DurationMinutes: 30},

		{ID: "infiltration", Name: "Local infiltration", Class: ClassRegional,
			Pain:           PainScores{Somatic: 10, Visceral: 1, Neuropathic: 8},
			PotencyPercent: 0.15, Units: "ml", OnsetMinutes: 5, PeakMinutes: 15, DurationMinutes: 180},
	}
}

// DefaultProcedures returns a starter set of procedures. Installations
// typically replace these with their own registry import.
func DefaultProcedures() []*Procedure {
	return []*Procedure{
		{ID: "lap_chole", Specialty: "General surgery", Name: "Laparoscopic cholecystectomy",
			KVACode: "JKA21", BaseMME: 12, Pain: PainScores{Somatic: 4, Visceral: 7, Neuropathic: 2}},
		{ID: "open_inguinal_hernia", Specialty: "General surgery", Name: "Open inguinal hernia repair",
			KVACode: "JAB10", BaseMME: 10, Pain: PainScores{Somatic: 8, Visceral: 2, Neuropathic: 4}},
		{ID: "knee_arthroscopy", Specialty: "Orthopedics", Name: "Knee arthroscopy",
			KVACode: "NGA11", BaseMME: 8, Pain: PainScores{Somatic: 8, Visceral: 1, Neuropathic: 2}},
		{ID: "total_hip_replacement", Specialty: "Orthopedics", Name: "Total hip replacement",
			KVACode: "NFB29", BaseMME: 25, Pain: PainScores{Somatic: 9, Visceral: 2, Neuropathic: 3}},
		{ID: "lap_hysterectomy", Specialty: "Gynecology", Name: "Laparoscopic hysterectomy",
			KVACode: "LCD11", BaseMME: 15, Pain: PainScores{Somatic: 4, Visceral: 8, Neuropathic: 2}},
		{ID: "thyroidectomy", Specialty: "ENT", Name: "Thyroidectomy",
			KVACode: "BAA40", BaseMME: 8, Pain: PainScores{Somatic: 6, Visceral: 3, Neuropathic: 2}},
	}
}

// Seed inserts the default catalog, skipping entries that already exist.
// Returns the number of inserted records.
func (s *Service) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, d := range DefaultDrugs() {
		err := s.drugs.Create(ctx, d)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	for _, p := range DefaultProcedures() {
		err := s.procedures.Create(ctx, p)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
