package ranking

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// RankedCSVHeader is the column order of the ranked output table.
var RankedCSVHeader = []string{
	"drug_id", "disease_id", "disease_name",
	"mechanism_score", "safety_penalty", "trial_penalty", "risk_multiplier",
	"phenotype_boost", "final_score",
	"ci_lower", "ci_upper", "ci_width", "confidence_tier", "n_evidence_paths",
}

// WriteRankedCSV writes one row per surviving pair in ranked order.
func WriteRankedCSV(path string, pairs []*RankedPair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(RankedCSVHeader); err != nil {
		return err
	}
	for _, p := range pairs {
		record := []string{
			p.DrugID, p.DiseaseID, p.DiseaseName,
			formatScore(p.MechanismScore), formatScore(p.SafetyPenalty),
			formatScore(p.TrialPenalty), formatScore(p.RiskMultiplier),
			formatScore(p.PhenotypeBoost), formatScore(p.FinalScore),
			formatScore(p.CILower), formatScore(p.CIUpper), formatScore(p.CIWidth),
			string(p.ConfidenceTier), strconv.Itoa(p.NEvidencePaths),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write ranked table: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
