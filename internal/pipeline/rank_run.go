package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"mechrank/internal/config"
	"mechrank/internal/evidence"
	"mechrank/internal/ranking"
	"mechrank/internal/report"
	"mechrank/internal/storage"
	"mechrank/internal/tables"
)

// RankRun drives one full ranking run: load inputs, score, prune, quantify,
// and write every artifact.
type RankRun struct {
	ConfigPath string
	DBPath     string
}

func NewRankRun(configPath, dbPath string) *RankRun {
	return &RankRun{ConfigPath: configPath, DBPath: dbPath}
}

func (r *RankRun) Run(ctx context.Context) error {
	cfg, err := config.LoadConfig(r.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rep := report.NewRunReport("rank", cfg.Output.Dir)

	set, err := r.loadInputsStage(cfg, rep)
	if err != nil {
		return err
	}

	fmt.Println("🚀 Scoring candidate pairs...")
	orch := ranking.NewOrchestrator(cfg, rep)
	outcome, err := orch.Run(set)
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}
	fmt.Printf("✅ Scored %d pairs, %d survived top-K pruning.\n", outcome.PairsScored, len(outcome.Ranked))

	if err := r.writeOutputsStage(cfg, rep, outcome); err != nil {
		return err
	}

	if err := r.persistStage(ctx, rep, outcome); err != nil {
		return err
	}

	fmt.Printf("🎉 Run %s complete. Output: %s\n", rep.RunID, cfg.Output.Dir)
	return nil
}

// loadInputsStage reads and validates the edge tables plus whatever optional
// evidence tables are configured. A missing optional table is a signal, not
// an error: its penalty or boost degrades to zero.
func (r *RankRun) loadInputsStage(cfg *config.Config, rep *report.RunReport) (*tables.InputSet, error) {
	h := rep.BeginStage("load_inputs")
	set, err := tables.Load(cfg.Inputs)
	if err != nil {
		rep.EndStage(h, "error", nil, err)
		return nil, err
	}

	counters := map[string]float64{
		"drug_targets":     float64(len(set.DrugTargets)),
		"target_pathways":  float64(len(set.TargetPathways)),
		"pathway_diseases": float64(len(set.PathwayDiseases)),
		"affinities":       float64(len(set.Affinities)),
		"adverse_events":   float64(len(set.AdverseEvents)),
		"trials":           float64(len(set.Trials)),
		"phenotypes":       float64(len(set.Phenotypes)),
	}
	rep.EndStage(h, "ok", counters, nil)

	for name, path := range map[string]string{
		"affinities":     cfg.Inputs.Affinities,
		"adverse_events": cfg.Inputs.AdverseEvents,
		"trials":         cfg.Inputs.Trials,
		"phenotypes":     cfg.Inputs.Phenotypes,
	} {
		if path == "" {
			rep.AddSignal("table_absent", "load_inputs", "info",
				"optional table "+name+" not configured; its adjustment is zero for all pairs", 0)
		}
	}

	fmt.Printf("📂 Loaded %d drug-target, %d target-pathway, %d pathway-disease edges.\n",
		len(set.DrugTargets), len(set.TargetPathways), len(set.PathwayDiseases))
	return set, nil
}

func (r *RankRun) writeOutputsStage(cfg *config.Config, rep *report.RunReport, outcome *ranking.Outcome) error {
	h := rep.BeginStage("write_outputs")

	rankedPath := filepath.Join(cfg.Output.Dir, "ranked.csv")
	if err := ranking.WriteRankedCSV(rankedPath, outcome.Ranked); err != nil {
		rep.EndStage(h, "error", nil, err)
		return fmt.Errorf("failed to write ranked table: %w", err)
	}

	packDir := filepath.Join(cfg.Output.Dir, "evidence")
	saved := 0
	for _, pack := range outcome.Packs {
		if _, err := evidence.Save(packDir, pack); err != nil {
			log.Printf("Warning: failed to save evidence pack for %s/%s: %v", pack.DrugID, pack.DiseaseID, err)
			continue
		}
		saved++
	}
	rep.EndStage(h, "ok", map[string]float64{"packs_saved": float64(saved)}, nil)

	reportPath := filepath.Join(cfg.Output.Dir, "run_report.json")
	if err := rep.Save(reportPath); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	fmt.Printf("💾 Wrote ranked table, %d evidence packs and run report to %s\n", saved, cfg.Output.Dir)
	return nil
}

func (r *RankRun) persistStage(ctx context.Context, rep *report.RunReport, outcome *ranking.Outcome) error {
	if r.DBPath == "" {
		return nil
	}
	store, err := storage.NewSQLiteStore(r.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, rep, outcome.Ranked, outcome.Packs); err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	return nil
}
