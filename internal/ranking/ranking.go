package ranking

import (
	"sort"

	"mechrank/internal/config"
	"mechrank/internal/evidence"
	"mechrank/internal/paths"
	"mechrank/internal/report"
	"mechrank/internal/risk"
	"mechrank/internal/tables"
	"mechrank/internal/uncertainty"
)

// RankedPair is the output row for one surviving (drug, disease) pair. It is
// created during aggregation, adjusted by the risk stage, annotated once by
// the uncertainty stage, and never mutated afterwards.
type RankedPair struct {
	DrugID         string           `json:"drug_id"`
	DiseaseID      string           `json:"disease_id"`
	DiseaseName    string           `json:"disease_name"`
	MechanismScore float64          `json:"mechanism_score"`
	SafetyPenalty  float64          `json:"safety_penalty"`
	TrialPenalty   float64          `json:"trial_penalty"`
	RiskMultiplier float64          `json:"risk_multiplier"`
	PhenotypeBoost float64          `json:"phenotype_boost"`
	FinalScore     float64          `json:"final_score"`
	CILower        float64          `json:"ci_lower"`
	CIUpper        float64          `json:"ci_upper"`
	CIWidth        float64          `json:"ci_width"`
	ConfidenceTier uncertainty.Tier `json:"confidence_tier"`
	NEvidencePaths int              `json:"n_evidence_paths"`
	Paths          []paths.Path     `json:"-"`
}

// Outcome bundles everything one run produces.
type Outcome struct {
	Ranked      []*RankedPair
	Packs       []*evidence.Pack
	PairsScored int
}

// Orchestrator sequences aggregation, risk adjustment, pruning, uncertainty
// quantification and evidence building. The protocol is deliberately
// two-phase: Phase 1 scores every candidate pair cheaply; Phase 2 runs the
// bootstrap and builds evidence packs only for the top-K survivors, bounding
// cost on large candidate sets.
type Orchestrator struct {
	cfg *config.Config
	rep *report.RunReport
}

// NewOrchestrator wires a run. rep must be non-nil; every stage reports
// through it.
func NewOrchestrator(cfg *config.Config, rep *report.RunReport) *Orchestrator {
	return &Orchestrator{cfg: cfg, rep: rep}
}

func (o *Orchestrator) Run(set *tables.InputSet) (*Outcome, error) {
	runID := o.rep.RunID

	// Phase 1a: join edges into paths and aggregate per pair.
	h := o.rep.BeginStage("aggregate")
	agg := paths.NewAggregator(paths.Params{
		HubLambda:         o.cfg.Scoring.HubLambda,
		PathwayBreadthCap: o.cfg.Scoring.PathwayBreadthCap,
		SupportBoostCoeff: o.cfg.Scoring.SupportBoostCoeff,
		DiversityBonus:    o.cfg.Scoring.DiversityBonus,
		AffinityMin:       o.cfg.Scoring.AffinityMin,
		AffinityMax:       o.cfg.Scoring.AffinityMax,
		TopKPathsPerPair:  o.cfg.Scoring.TopKPathsPerPair,
		ComboSeparator:    o.cfg.Scoring.ComboSeparator,
	})
	pairs := agg.Aggregate(set)
	keptPaths := 0
	for _, p := range pairs {
		keptPaths += len(p.Paths)
	}
	o.rep.EndStage(h, "ok", map[string]float64{
		"pairs": float64(len(pairs)),
		"paths": float64(keptPaths),
	}, nil)

	// Phase 1b: risk-adjust every pair; per-drug and per-disease results are
	// memoized inside the adjuster.
	h = o.rep.BeginStage("risk_adjust")
	adjuster := risk.NewAdjuster(risk.Params{
		SafetyWeight:        o.cfg.Risk.SafetyWeight,
		TrialWeight:         o.cfg.Risk.TrialWeight,
		PhenotypeBoostCoeff: o.cfg.Risk.PhenotypeBoostCoeff,
		MinPRR:              o.cfg.Risk.MinPRR,
		SeriousAEKeywords:   o.cfg.Risk.SeriousAEKeywords,
	}, set)

	scored := make([]*RankedPair, 0, len(pairs))
	degenerateAE := make(map[string]bool)
	for _, pair := range pairs {
		adj := adjuster.Apply(pair.MechanismScore, pair.DrugID, pair.DiseaseID, pair.DiseaseName)
		scored = append(scored, &RankedPair{
			DrugID:         pair.DrugID,
			DiseaseID:      pair.DiseaseID,
			DiseaseName:    pair.DiseaseName,
			MechanismScore: pair.MechanismScore,
			SafetyPenalty:  adj.SafetyPenalty,
			TrialPenalty:   adj.TrialPenalty,
			RiskMultiplier: adj.RiskMultiplier,
			PhenotypeBoost: adj.PhenotypeBoost,
			FinalScore:     adj.FinalScore,
			NEvidencePaths: len(pair.Paths),
			Paths:          pair.Paths,
		})

		// An AE table that yields no usable signal for a drug is a warning,
		// not an error: the penalty is simply zero.
		if !degenerateAE[pair.DrugID] && adjuster.AECount(pair.DrugID) > 0 && adjuster.SafetyPenalty(pair.DrugID).UsedRecords == 0 {
			degenerateAE[pair.DrugID] = true
			o.rep.AddSignal("ae_no_signal", "risk_adjust", "warning",
				"drug "+pair.DrugID+" has adverse-event records but none above the PRR threshold", 0)
		}
	}
	o.rep.EndStage(h, "ok", map[string]float64{"pairs": float64(len(scored))}, nil)

	// Phase 1c: top-K pairs per drug, applied after scoring so pruning
	// reflects final_score.
	h = o.rep.BeginStage("prune")
	survivors := topKPerDrug(scored, o.cfg.Ranking.TopKPairsPerDrug)
	o.rep.EndStage(h, "ok", map[string]float64{"survivors": float64(len(survivors))}, nil)

	// Phase 2a: bootstrap intervals for survivors only. Survivors are
	// processed in deterministic order so the seeded RNG reproduces exactly.
	h = o.rep.BeginStage("uncertainty")
	quantifier := uncertainty.NewQuantifier(uncertainty.Params{
		Bootstrap: o.cfg.Uncertainty.Bootstrap,
		CILevel:   o.cfg.Uncertainty.CILevel,
		Statistic: o.cfg.Uncertainty.Statistic,
		Seed:      o.cfg.Uncertainty.Seed,
	})
	for _, rp := range survivors {
		scores := make([]float64, len(rp.Paths))
		targets := make([]string, len(rp.Paths))
		for i, p := range rp.Paths {
			scores[i] = p.Score
			targets[i] = p.TargetID
		}
		res := quantifier.Quantify(scores, targets)
		rp.CILower = res.Lower
		rp.CIUpper = res.Upper
		rp.CIWidth = res.Width
		rp.ConfidenceTier = res.Tier
		o.rep.RecordTier(string(res.Tier))
	}
	o.rep.EndStage(h, "ok", map[string]float64{"pairs": float64(len(survivors))}, nil)

	// Phase 2b: evidence packs for survivors only.
	h = o.rep.BeginStage("evidence")
	packs := make([]*evidence.Pack, 0, len(survivors))
	for _, rp := range survivors {
		pair := &paths.PairScore{
			DrugID:      rp.DrugID,
			DiseaseID:   rp.DiseaseID,
			DiseaseName: rp.DiseaseName,
			Paths:       rp.Paths,
		}
		packs = append(packs, evidence.BuildPack(runID, pair,
			adjuster.AdverseEvents(rp.DrugID),
			adjuster.Trials(rp.DrugID),
			adjuster.Phenotypes(rp.DiseaseID)))
	}
	o.rep.EndStage(h, "ok", map[string]float64{"packs": float64(len(packs))}, nil)

	o.rep.RecordPairCounts(len(scored), len(survivors), len(packs))

	return &Outcome{
		Ranked:      survivors,
		Packs:       packs,
		PairsScored: len(scored),
	}, nil
}

// topKPerDrug keeps the K highest-final-score pairs for each drug and returns
// all survivors sorted by final score descending (ties broken on IDs for
// stable output).
func topKPerDrug(pairs []*RankedPair, k int) []*RankedPair {
	byDrug := make(map[string][]*RankedPair)
	for _, p := range pairs {
		byDrug[p.DrugID] = append(byDrug[p.DrugID], p)
	}

	var out []*RankedPair
	for _, group := range byDrug {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].FinalScore == group[j].FinalScore {
				return group[i].DiseaseID < group[j].DiseaseID
			}
			return group[i].FinalScore > group[j].FinalScore
		})
		if len(group) > k {
			group = group[:k]
		}
		out = append(out, group...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore == out[j].FinalScore {
			if out[i].DrugID == out[j].DrugID {
				return out[i].DiseaseID < out[j].DiseaseID
			}
			return out[i].DrugID < out[j].DrugID
		}
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}
