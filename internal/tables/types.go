package tables

// DrugTargetEdge links a drug to one of its protein targets.
type DrugTargetEdge struct {
	DrugID   string `json:"drug_id"`
	TargetID string `json:"target_id"`
}

// TargetPathwayEdge links a target to a biological pathway it participates in.
type TargetPathwayEdge struct {
	TargetID    string `json:"target_id"`
	PathwayID   string `json:"pathway_id"`
	PathwayName string `json:"pathway_name"`
}

// PathwayDiseaseEdge carries an externally computed pathway-disease association.
// SupportGeneCount is the number of genes backing the association and acts as a
// breadth measure for the pathway.
type PathwayDiseaseEdge struct {
	PathwayID        string  `json:"pathway_id"`
	DiseaseID        string  `json:"disease_id"`
	DiseaseName      string  `json:"disease_name"`
	PathwayScore     float64 `json:"pathway_score"`
	SupportGeneCount int     `json:"support_gene_count"`
}

// AffinityRecord holds a normalized (0..1) drug-target binding affinity.
type AffinityRecord struct {
	DrugID   string  `json:"drug_id"`
	TargetID string  `json:"target_id"`
	Affinity float64 `json:"affinity"`
}

// AdverseEventRecord is one pharmacovigilance signal for a drug. PRR
// (proportional reporting ratio) is the signal-strength indicator;
// ReportCount only modulates trust in it.
type AdverseEventRecord struct {
	DrugID      string  `json:"drug_id"`
	AETerm      string  `json:"ae_term"`
	ReportCount int     `json:"report_count"`
	PRR         float64 `json:"prr"`
}

// TrialRecord is one historical trial outcome for a drug.
type TrialRecord struct {
	DrugID         string `json:"drug_id"`
	NCTID          string `json:"nct_id"`
	IsSafetyStop   bool   `json:"is_safety_stop"`
	IsEfficacyStop bool   `json:"is_efficacy_stop"`
	Conditions     string `json:"conditions"`
}

// PhenotypeAssociation links a disease to one of its phenotypes.
type PhenotypeAssociation struct {
	DiseaseID     string  `json:"disease_id"`
	PhenotypeID   string  `json:"phenotype_id"`
	PhenotypeName string  `json:"phenotype_name"`
	Score         float64 `json:"score"`
}

// InputSet bundles all loaded input tables for one run. The three edge tables
// are required; the rest are optional and may be nil, in which case the
// corresponding penalty or boost degrades to zero downstream.
type InputSet struct {
	DrugTargets     []DrugTargetEdge
	TargetPathways  []TargetPathwayEdge
	PathwayDiseases []PathwayDiseaseEdge
	Affinities      []AffinityRecord
	AdverseEvents   []AdverseEventRecord
	Trials          []TrialRecord
	Phenotypes      []PhenotypeAssociation
}
