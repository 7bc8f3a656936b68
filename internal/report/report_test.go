package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunReport(t *testing.T) {
	r := NewRunReport("rank", "out")

	assert.Equal(t, "v1", r.Version)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "rank", r.Command)
	assert.Equal(t, "out", r.OutputDir)
	assert.Empty(t, r.Stages)
}

func TestRunReport_StageLifecycle(t *testing.T) {
	r := NewRunReport("rank", "out")

	h := r.BeginStage("aggregate")
	r.EndStage(h, "ok", map[string]float64{"pairs": 12}, nil)

	h = r.BeginStage("persist")
	r.EndStage(h, "ok", nil, errors.New("disk full"))

	require.Len(t, r.Stages, 2)
	assert.Equal(t, "aggregate", r.Stages[0].Name)
	assert.Equal(t, "ok", r.Stages[0].Status)
	assert.Equal(t, 12.0, r.Stages[0].Counters["pairs"])
	// An error flips an "ok" status to "error".
	assert.Equal(t, "error", r.Stages[1].Status)
	assert.Equal(t, "disk full", r.Stages[1].Error)

	r.Finalize()
	assert.Equal(t, 2, r.Summary.StageCount)
	assert.Equal(t, 1, r.Summary.FailedStages)
}

func TestRunReport_SignalsSortedBySeverity(t *testing.T) {
	r := NewRunReport("rank", "out")
	r.AddSignal("table_absent", "load_inputs", "info", "trials table not configured", 0)
	r.AddSignal("ae_no_signal", "risk_adjust", "warning", "no AE above PRR threshold for D1", 0)
	r.AddSignal("schema_invalid", "evidence", "critical", "pack failed validation", 0)

	r.Finalize()

	require.Len(t, r.Signals, 3)
	assert.Equal(t, "critical", r.Signals[0].Severity)
	assert.Equal(t, "warning", r.Signals[1].Severity)
	assert.Equal(t, "info", r.Signals[2].Severity)
	assert.Equal(t, 1, r.Summary.SignalsBySeverity["warning"])
}

func TestRunReport_AddSignalIgnoresBlankFields(t *testing.T) {
	r := NewRunReport("rank", "out")
	r.AddSignal("", "stage", "warning", "message", 0)
	r.AddSignal("code", "stage", "", "message", 0)

	assert.Empty(t, r.Signals)
}

func TestRunReport_TierCounts(t *testing.T) {
	r := NewRunReport("rank", "out")
	r.RecordTier("HIGH")
	r.RecordTier("LOW")
	r.RecordTier("LOW")
	r.RecordPairCounts(120, 40, 40)

	r.Finalize()

	assert.Equal(t, map[string]int{"HIGH": 1, "LOW": 2}, r.Summary.TiersByLabel)
	assert.Equal(t, 120, r.Summary.PairsScored)
	assert.Equal(t, 40, r.Summary.PairsRanked)
	assert.Equal(t, 40, r.Summary.EvidencePacks)
}

func TestRunReport_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := NewRunReport("rank", dir)
	h := r.BeginStage("aggregate")
	r.EndStage(h, "ok", nil, nil)

	path := filepath.Join(dir, "run_report.json")
	require.NoError(t, r.Save(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded RunReport
	require.NoError(t, json.Unmarshal(b, &loaded))
	assert.Equal(t, r.RunID, loaded.RunID)
	require.Len(t, loaded.Stages, 1)
	assert.Equal(t, "aggregate", loaded.Stages[0].Name)
}
