package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"mechrank/internal/config"
	"mechrank/internal/pipeline"
	"mechrank/internal/ranking"
	"mechrank/internal/storage"
	"mechrank/internal/tables"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mechrank",
		Short: "Mechanistic drug-repurposing ranking engine",
	}
	dbPath     string
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "mechrank.db", "Path to the local results database (SQLite)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the run configuration (YAML)")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score, risk-adjust and rank all candidate (drug, disease) pairs",
	Run: func(cmd *cobra.Command, args []string) {
		run := pipeline.NewRankRun(configPath, dbPath)
		if err := run.Run(context.Background()); err != nil {
			log.Fatalf("Rank failed: %v", err)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and schema-check the configured input tables without scoring",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		set, err := tables.Load(cfg.Inputs)
		if err != nil {
			log.Fatalf("Input validation failed: %v", err)
		}

		fmt.Println("✅ All configured input tables are valid.")
		fmt.Printf("  -> drug-target edges:     %d\n", len(set.DrugTargets))
		fmt.Printf("  -> target-pathway edges:  %d\n", len(set.TargetPathways))
		fmt.Printf("  -> pathway-disease edges: %d\n", len(set.PathwayDiseases))
		fmt.Printf("  -> affinities:            %d\n", len(set.Affinities))
		fmt.Printf("  -> adverse events:        %d\n", len(set.AdverseEvents))
		fmt.Printf("  -> trials:                %d\n", len(set.Trials))
		fmt.Printf("  -> phenotypes:            %d\n", len(set.Phenotypes))
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Re-emit the ranked table of a stored run as CSV",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		runID := ""
		if len(args) > 0 {
			runID = args[0]
		} else {
			runID, err = store.LatestRunID(ctx)
			if err != nil {
				log.Fatalf("Failed to resolve run: %v", err)
			}
		}

		pairs, err := store.LoadRankedPairs(ctx, runID)
		if err != nil {
			log.Fatalf("Failed to load ranked pairs: %v", err)
		}
		if len(pairs) == 0 {
			log.Fatalf("Run %s has no ranked pairs", runID)
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		out := filepath.Join(cfg.Output.Dir, fmt.Sprintf("ranked_%s.csv", runID))
		if err := ranking.WriteRankedCSV(out, pairs); err != nil {
			log.Fatalf("Failed to write ranked table: %v", err)
		}
		fmt.Printf("✅ Exported %d pairs from run %s to %s\n", len(pairs), runID, out)
	},
}
