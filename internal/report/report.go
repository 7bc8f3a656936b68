package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunSignal flags a data-quality or scoring condition observed during a run.
// Degenerate-data conditions (an optional table yielding no usable signal for
// a drug or disease) surface here as warnings rather than failing the run.
type RunSignal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type RunSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	PairsScored       int            `json:"pairs_scored"`
	PairsRanked       int            `json:"pairs_ranked"`
	EvidencePacks     int            `json:"evidence_packs"`
	TiersByLabel      map[string]int `json:"tiers_by_label,omitempty"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// RunReport records the stages, counters and signals of one ranking run.
type RunReport struct {
	Version     string        `json:"version"`
	RunID       string        `json:"run_id"`
	Command     string        `json:"command"`
	GeneratedAt string        `json:"generated_at"`
	OutputDir   string        `json:"output_dir"`
	Stages      []StageMetric `json:"stages"`
	Signals     []RunSignal   `json:"signals,omitempty"`
	Summary     RunSummary    `json:"summary"`

	pairsScored   int
	pairsRanked   int
	evidencePacks int
	tierCounts    map[string]int
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(command, outputDir string) *RunReport {
	return &RunReport{
		Version:     "v1",
		RunID:       uuid.NewString(),
		Command:     command,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		OutputDir:   outputDir,
		Stages:      []StageMetric{},
		Signals:     []RunSignal{},
		tierCounts:  map[string]int{},
	}
}

func (r *RunReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *RunReport) EndStage(h StageHandle, status string, counters map[string]float64, err error) {
	if r == nil || h.name == "" {
		return
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *RunReport) AddSignal(code, stage, severity, message string, value float64) {
	if r == nil {
		return
	}
	s := RunSignal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

// RecordPairCounts sets the scored/ranked/evidence-pack totals for the summary.
func (r *RunReport) RecordPairCounts(scored, ranked, packs int) {
	if r == nil {
		return
	}
	r.pairsScored = scored
	r.pairsRanked = ranked
	r.evidencePacks = packs
}

// RecordTier counts one ranked pair under its confidence tier.
func (r *RunReport) RecordTier(tier string) {
	if r == nil {
		return
	}
	if r.tierCounts == nil {
		r.tierCounts = map[string]int{}
	}
	r.tierCounts[tier]++
}

func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	sort.Slice(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})

	severityCount := map[string]int{}
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}
	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary = RunSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		PairsScored:       r.pairsScored,
		PairsRanked:       r.pairsRanked,
		EvidencePacks:     r.evidencePacks,
		TiersByLabel:      r.tierCounts,
		SignalsBySeverity: severityCount,
	}
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
