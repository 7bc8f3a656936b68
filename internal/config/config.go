package config

import (
	"fmt"
	"os"
	"strconv"

	"mechrank/internal/tables"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Inputs tables.InputPaths `yaml:"inputs"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Scoring struct {
		HubLambda         float64 `yaml:"hub_lambda"`          // hub-penalty exponent
		PathwayBreadthCap float64 `yaml:"pathway_breadth_cap"` // soft cap on support genes
		SupportBoostCoeff float64 `yaml:"support_boost_coeff"`
		DiversityBonus    float64 `yaml:"diversity_bonus"`
		AffinityMin       float64 `yaml:"affinity_min"` // multiplier at affinity 0
		AffinityMax       float64 `yaml:"affinity_max"` // multiplier at affinity 1
		TopKPathsPerPair  int     `yaml:"topk_paths_per_pair"`
		ComboSeparator    string  `yaml:"combo_separator"`
	} `yaml:"scoring"`
	Risk struct {
		SafetyWeight        float64  `yaml:"safety_weight"`
		TrialWeight         float64  `yaml:"trial_weight"`
		PhenotypeBoostCoeff float64  `yaml:"phenotype_boost_coeff"`
		MinPRR              float64  `yaml:"min_prr"`
		SeriousAEKeywords   []string `yaml:"serious_ae_keywords"`
	} `yaml:"risk"`
	Uncertainty struct {
		Bootstrap int     `yaml:"bootstrap"`
		CILevel   float64 `yaml:"ci_level"`
		Statistic string  `yaml:"statistic"` // "mean" or "median"
		Seed      int64   `yaml:"seed"`
	} `yaml:"uncertainty"`
	Ranking struct {
		TopKPairsPerDrug int `yaml:"topk_pairs_per_drug"`
	} `yaml:"ranking"`
}

// Default returns a config with every knob at its documented default.
func Default() *Config {
	cfg := &Config{}
	cfg.Output.Dir = "out"
	cfg.Scoring.HubLambda = 1.0
	cfg.Scoring.PathwayBreadthCap = 50
	cfg.Scoring.SupportBoostCoeff = 0.2
	cfg.Scoring.DiversityBonus = 0.1
	cfg.Scoring.AffinityMin = 0.7
	cfg.Scoring.AffinityMax = 1.8
	cfg.Scoring.TopKPathsPerPair = 10
	cfg.Scoring.ComboSeparator = "+"
	cfg.Risk.SafetyWeight = 1.0
	cfg.Risk.TrialWeight = 1.0
	cfg.Risk.PhenotypeBoostCoeff = 0.1
	cfg.Risk.MinPRR = 2.0
	cfg.Risk.SeriousAEKeywords = []string{
		"death", "fatal", "hepatotoxicity", "liver failure", "cardiac arrest",
		"arrhythmia", "anaphylaxis", "stevens-johnson", "agranulocytosis",
		"rhabdomyolysis", "torsade",
	}
	cfg.Uncertainty.Bootstrap = 1000
	cfg.Uncertainty.CILevel = 0.95
	cfg.Uncertainty.Statistic = "mean"
	cfg.Uncertainty.Seed = 42
	cfg.Ranking.TopKPairsPerDrug = 50
	return cfg
}

// LoadConfig reads the YAML config, overlays it on the defaults, applies
// environment overrides, and normalizes every knob to its valid range.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if dir := os.Getenv("MECHRANK_OUTPUT_DIR"); dir != "" {
		cfg.Output.Dir = dir
	}
	if seed := os.Getenv("MECHRANK_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Uncertainty.Seed = v
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize clamps numeric knobs into their valid ranges and rejects values
// that clamping cannot repair.
func (c *Config) Normalize() error {
	c.Scoring.HubLambda = clamp(c.Scoring.HubLambda, 0, 5)
	if c.Scoring.PathwayBreadthCap < 1 {
		c.Scoring.PathwayBreadthCap = 50
	}
	c.Scoring.SupportBoostCoeff = clamp(c.Scoring.SupportBoostCoeff, 0, 1)
	c.Scoring.DiversityBonus = clamp(c.Scoring.DiversityBonus, 0, 1)
	if c.Scoring.AffinityMax < c.Scoring.AffinityMin {
		return fmt.Errorf("affinity_max (%.2f) must be >= affinity_min (%.2f)", c.Scoring.AffinityMax, c.Scoring.AffinityMin)
	}
	if c.Scoring.TopKPathsPerPair < 1 {
		c.Scoring.TopKPathsPerPair = 10
	}
	if c.Scoring.ComboSeparator == "" {
		c.Scoring.ComboSeparator = "+"
	}

	c.Risk.SafetyWeight = clamp(c.Risk.SafetyWeight, 0, 1)
	c.Risk.TrialWeight = clamp(c.Risk.TrialWeight, 0, 1)
	c.Risk.PhenotypeBoostCoeff = clamp(c.Risk.PhenotypeBoostCoeff, 0, 1)
	if c.Risk.MinPRR < 0 {
		c.Risk.MinPRR = 0
	}

	if c.Uncertainty.Bootstrap < 1 {
		c.Uncertainty.Bootstrap = 1000
	}
	if c.Uncertainty.CILevel <= 0 || c.Uncertainty.CILevel >= 1 {
		c.Uncertainty.CILevel = 0.95
	}
	switch c.Uncertainty.Statistic {
	case "", "mean":
		c.Uncertainty.Statistic = "mean"
	case "median":
	default:
		return fmt.Errorf("unknown uncertainty statistic %q (want mean or median)", c.Uncertainty.Statistic)
	}

	if c.Ranking.TopKPairsPerDrug < 1 {
		c.Ranking.TopKPairsPerDrug = 50
	}
	return nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
