package tables

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// MissingInputError reports a required table that is absent or lacks required
// columns. It is fatal: the run aborts with the full list of missing columns.
type MissingInputError struct {
	Table   string
	Missing []string
}

func (e *MissingInputError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("input table %q is missing or unreadable", e.Table)
	}
	return fmt.Sprintf("input table %q is missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// InputPaths names the CSV files backing each table. Empty optional paths are
// skipped; empty required paths produce a MissingInputError.
type InputPaths struct {
	DrugTargets     string `yaml:"drug_targets"`
	TargetPathways  string `yaml:"target_pathways"`
	PathwayDiseases string `yaml:"pathway_diseases"`
	Affinities      string `yaml:"affinities"`
	AdverseEvents   string `yaml:"adverse_events"`
	Trials          string `yaml:"trials"`
	Phenotypes      string `yaml:"phenotypes"`
}

// Load reads and validates every configured table. Required tables fail fast;
// optional tables are loaded only when a path is set.
func Load(paths InputPaths) (*InputSet, error) {
	set := &InputSet{}

	var err error
	if set.DrugTargets, err = LoadDrugTargets(paths.DrugTargets); err != nil {
		return nil, err
	}
	if set.TargetPathways, err = LoadTargetPathways(paths.TargetPathways); err != nil {
		return nil, err
	}
	if set.PathwayDiseases, err = LoadPathwayDiseases(paths.PathwayDiseases); err != nil {
		return nil, err
	}

	if paths.Affinities != "" {
		if set.Affinities, err = LoadAffinities(paths.Affinities); err != nil {
			return nil, err
		}
	}
	if paths.AdverseEvents != "" {
		if set.AdverseEvents, err = LoadAdverseEvents(paths.AdverseEvents); err != nil {
			return nil, err
		}
	}
	if paths.Trials != "" {
		if set.Trials, err = LoadTrials(paths.Trials); err != nil {
			return nil, err
		}
	}
	if paths.Phenotypes != "" {
		if set.Phenotypes, err = LoadPhenotypes(paths.Phenotypes); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// row gives column access by header name for one CSV record.
type row struct {
	header map[string]int
	fields []string
}

func (r row) str(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r row) float(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0
	}
	return v
}

func (r row) int(col string) int {
	v, err := strconv.Atoi(r.str(col))
	if err != nil {
		return 0
	}
	return v
}

func (r row) bool(col string) bool {
	switch strings.ToLower(r.str(col)) {
	case "true", "1", "yes", "y", "t":
		return true
	}
	return false
}

// readTable parses a CSV file, validates the required columns against the
// header, and invokes scan once per data row.
func readTable(path, table string, required []string, scan func(row)) error {
	if path == "" {
		return &MissingInputError{Table: table}
	}
	f, err := os.Open(path)
	if err != nil {
		return &MissingInputError{Table: table}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse table %q: %w", table, err)
	}
	if len(records) == 0 {
		return &MissingInputError{Table: table, Missing: required}
	}

	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingInputError{Table: table, Missing: missing}
	}

	for _, fields := range records[1:] {
		scan(row{header: header, fields: fields})
	}
	return nil
}

// LoadDrugTargets reads the drug-target edge table, deduplicated on
// (drug_id, target_id).
func LoadDrugTargets(path string) ([]DrugTargetEdge, error) {
	var out []DrugTargetEdge
	seen := make(map[string]bool)
	err := readTable(path, "drug_targets", []string{"drug_id", "target_id"}, func(r row) {
		e := DrugTargetEdge{DrugID: r.str("drug_id"), TargetID: r.str("target_id")}
		if e.DrugID == "" || e.TargetID == "" {
			return
		}
		key := e.DrugID + "\x00" + e.TargetID
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, e)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTargetPathways reads the target-pathway edge table, deduplicated on
// (target_id, pathway_id).
func LoadTargetPathways(path string) ([]TargetPathwayEdge, error) {
	var out []TargetPathwayEdge
	seen := make(map[string]bool)
	err := readTable(path, "target_pathways", []string{"target_id", "pathway_id"}, func(r row) {
		e := TargetPathwayEdge{
			TargetID:    r.str("target_id"),
			PathwayID:   r.str("pathway_id"),
			PathwayName: r.str("pathway_name"),
		}
		if e.TargetID == "" || e.PathwayID == "" {
			return
		}
		key := e.TargetID + "\x00" + e.PathwayID
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, e)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPathwayDiseases reads the pathway-disease edge table, deduplicated on
// (pathway_id, disease_id).
func LoadPathwayDiseases(path string) ([]PathwayDiseaseEdge, error) {
	required := []string{"pathway_id", "disease_id", "pathway_score", "support_gene_count"}
	var out []PathwayDiseaseEdge
	seen := make(map[string]bool)
	err := readTable(path, "pathway_diseases", required, func(r row) {
		e := PathwayDiseaseEdge{
			PathwayID:        r.str("pathway_id"),
			DiseaseID:        r.str("disease_id"),
			DiseaseName:      r.str("disease_name"),
			PathwayScore:     r.float("pathway_score"),
			SupportGeneCount: r.int("support_gene_count"),
		}
		// A negative association score is invalid input, not weak evidence;
		// keeping it would propagate negative path and final scores.
		if e.PathwayID == "" || e.DiseaseID == "" || e.PathwayScore < 0 {
			return
		}
		key := e.PathwayID + "\x00" + e.DiseaseID
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, e)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAffinities reads the optional normalized drug-target affinity table.
func LoadAffinities(path string) ([]AffinityRecord, error) {
	var out []AffinityRecord
	err := readTable(path, "affinities", []string{"drug_id", "target_id", "affinity"}, func(r row) {
		a := AffinityRecord{DrugID: r.str("drug_id"), TargetID: r.str("target_id"), Affinity: r.float("affinity")}
		if a.DrugID == "" || a.TargetID == "" {
			return
		}
		out = append(out, a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAdverseEvents reads the optional adverse-event table.
func LoadAdverseEvents(path string) ([]AdverseEventRecord, error) {
	var out []AdverseEventRecord
	err := readTable(path, "adverse_events", []string{"drug_id", "ae_term", "report_count", "prr"}, func(r row) {
		a := AdverseEventRecord{
			DrugID:      r.str("drug_id"),
			AETerm:      r.str("ae_term"),
			ReportCount: r.int("report_count"),
			PRR:         r.float("prr"),
		}
		if a.DrugID == "" {
			return
		}
		out = append(out, a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTrials reads the optional trial-outcome table.
func LoadTrials(path string) ([]TrialRecord, error) {
	required := []string{"drug_id", "nct_id", "is_safety_stop", "is_efficacy_stop"}
	var out []TrialRecord
	err := readTable(path, "trials", required, func(r row) {
		t := TrialRecord{
			DrugID:         r.str("drug_id"),
			NCTID:          r.str("nct_id"),
			IsSafetyStop:   r.bool("is_safety_stop"),
			IsEfficacyStop: r.bool("is_efficacy_stop"),
			Conditions:     r.str("conditions"),
		}
		if t.DrugID == "" {
			return
		}
		out = append(out, t)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPhenotypes reads the optional disease-phenotype table.
func LoadPhenotypes(path string) ([]PhenotypeAssociation, error) {
	var out []PhenotypeAssociation
	err := readTable(path, "phenotypes", []string{"disease_id", "phenotype_id", "score"}, func(r row) {
		p := PhenotypeAssociation{
			DiseaseID:     r.str("disease_id"),
			PhenotypeID:   r.str("phenotype_id"),
			PhenotypeName: r.str("phenotype_name"),
			Score:         r.float("score"),
		}
		if p.DiseaseID == "" {
			return
		}
		out = append(out, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
