package evidence

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mechrank/internal/paths"
	"mechrank/internal/tables"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const packSchemaVersion = "v1"

//go:embed evidence_pack.schema.json
var packSchemaJSON string

var (
	packSchemaOnce sync.Once
	packSchema     *jsonschema.Schema
	packSchemaErr  error
)

// PathEvidence is one kept mechanism path rendered for downstream consumers.
type PathEvidence struct {
	Nodes []string `json:"nodes"` // drug, target, pathway, disease
	Edges []string `json:"edges"`
	Score float64  `json:"score"`
	Text  string   `json:"text"`
}

// Pack is the supporting evidence for one surviving pair: its kept paths,
// adverse events, trial history and phenotype associations.
type Pack struct {
	SchemaVersion string                        `json:"schema_version"`
	RunID         string                        `json:"run_id"`
	DrugID        string                        `json:"drug_id"`
	DiseaseID     string                        `json:"disease_id"`
	DiseaseName   string                        `json:"disease_name"`
	GeneratedAt   string                        `json:"generated_at"`
	Paths         []PathEvidence                `json:"paths"`
	AdverseEvents []tables.AdverseEventRecord   `json:"adverse_events,omitempty"`
	Trials        []tables.TrialRecord          `json:"trials,omitempty"`
	Phenotypes    []tables.PhenotypeAssociation `json:"phenotypes,omitempty"`
}

// BuildPack assembles the evidence pack for one pair from its kept paths and
// the drug/disease evidence lists.
func BuildPack(runID string, pair *paths.PairScore, aes []tables.AdverseEventRecord, trials []tables.TrialRecord, phenos []tables.PhenotypeAssociation) *Pack {
	pack := &Pack{
		SchemaVersion: packSchemaVersion,
		RunID:         runID,
		DrugID:        pair.DrugID,
		DiseaseID:     pair.DiseaseID,
		DiseaseName:   pair.DiseaseName,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		AdverseEvents: aes,
		Trials:        trials,
		Phenotypes:    phenos,
	}
	for _, p := range pair.Paths {
		pack.Paths = append(pack.Paths, PathEvidence{
			Nodes: []string{p.DrugID, p.TargetID, p.PathwayID, p.DiseaseID},
			Edges: []string{
				fmt.Sprintf("%s -[targets]-> %s", p.DrugID, p.TargetID),
				fmt.Sprintf("%s -[member_of]-> %s", p.TargetID, p.PathwayID),
				fmt.Sprintf("%s -[associated_with]-> %s", p.PathwayID, p.DiseaseID),
			},
			Score: p.Score,
			Text:  describePath(p),
		})
	}
	return pack
}

// describePath renders the mechanistic chain as one explanatory sentence.
func describePath(p paths.Path) string {
	pathway := p.PathwayName
	if pathway == "" {
		pathway = p.PathwayID
	}
	disease := p.DiseaseName
	if disease == "" {
		disease = p.DiseaseID
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s modulates %s, a member of %s (%d support genes), which is associated with %s (association %.2f; path score %.3f).",
		p.DrugID, p.TargetID, pathway, p.SupportGeneCount, disease, p.PathwayScore, p.Score)
	if p.TargetDegree > 1 {
		fmt.Fprintf(&sb, " Target is hit by %d distinct drugs (hub weight %.2f).", p.TargetDegree, p.HubWeight)
	}
	return sb.String()
}

// Save validates the pack against the embedded JSON Schema and writes it as
// indented JSON.
func Save(dir string, pack *Pack) (string, error) {
	if pack == nil {
		return "", fmt.Errorf("evidence pack is nil")
	}
	if err := validatePack(pack); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s__%s.json", sanitizeID(pack.DrugID), sanitizeID(pack.DiseaseID))
	path := filepath.Join(dir, name)

	b, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return "", err
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func validatePack(pack *Pack) error {
	schema, err := compiledPackSchema()
	if err != nil {
		return fmt.Errorf("failed to compile evidence pack schema: %w", err)
	}

	var v any
	raw, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence pack for schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize evidence pack for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("evidence pack schema validation failed: %w", err)
	}
	return nil
}

func compiledPackSchema() (*jsonschema.Schema, error) {
	packSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("evidence_pack.schema.json", strings.NewReader(packSchemaJSON)); err != nil {
			packSchemaErr = err
			return
		}
		packSchema, packSchemaErr = compiler.Compile("evidence_pack.schema.json")
	})
	return packSchema, packSchemaErr
}

func sanitizeID(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "+", "_")
	return replacer.Replace(id)
}
