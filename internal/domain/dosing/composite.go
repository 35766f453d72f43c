package dosing

import (
	"fmt"
	"sort"
	"strings"
)

// CompositeKey identifies a clinical scenario for per-user calibration:
// procedure, ASA class, tolerance status and the set of adjuvants given.
// Two cases with the same key are comparable enough to share a correction.
func CompositeKey(procedureID string, patient Patient, adjuvants []AdjuvantUse) string {
	tol := "N"
	if patient.OpioidTolerant {
		tol = "T"
	}
	adj := "none"
	if len(adjuvants) > 0 {
		ids := make([]string, 0, len(adjuvants))
		for _, a := range adjuvants {
			ids = append(ids, a.DrugID)
		}
		sort.Strings(ids)
		adj = strings.Join(ids, "+")
	}
	return fmt.Sprintf("%s:ASA%d:%s:%s", procedureID, patient.ASA, tol, adj)
}
