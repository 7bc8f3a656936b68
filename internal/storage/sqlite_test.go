package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mechrank/internal/evidence"
	"mechrank/internal/ranking"
	"mechrank/internal/report"
	"mechrank/internal/uncertainty"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mechrank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(runID string) (*report.RunReport, []*ranking.RankedPair, []*evidence.Pack) {
	rep := report.NewRunReport("rank", "out")
	rep.RunID = runID
	rep.RecordPairCounts(3, 2, 1)
	rep.Finalize()

	pairs := []*ranking.RankedPair{
		{
			DrugID: "D1", DiseaseID: "X1", DiseaseName: "arthritis",
			MechanismScore: 0.5, FinalScore: 0.4, RiskMultiplier: 0.8,
			CILower: 0.35, CIUpper: 0.45, CIWidth: 0.1,
			ConfidenceTier: uncertainty.TierMedium, NEvidencePaths: 4,
		},
		{
			DrugID: "D2", DiseaseID: "X1", DiseaseName: "arthritis",
			MechanismScore: 0.3, FinalScore: 0.3, RiskMultiplier: 1.0,
			ConfidenceTier: uncertainty.TierLow, NEvidencePaths: 1,
		},
	}
	packs := []*evidence.Pack{
		{
			SchemaVersion: "v1", RunID: runID,
			DrugID: "D1", DiseaseID: "X1", DiseaseName: "arthritis",
			GeneratedAt: "2026-08-30T00:00:00Z",
			Paths: []evidence.PathEvidence{{
				Nodes: []string{"D1", "T1", "P1", "X1"},
				Edges: []string{"a", "b", "c"},
				Score: 0.2,
				Text:  "D1 modulates T1",
			}},
		},
	}
	return rep, pairs, packs
}

func TestSaveRunAndLoadRankedPairs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rep, pairs, packs := testRun("run-1")
	require.NoError(t, store.SaveRun(ctx, rep, pairs, packs))

	loaded, err := store.LoadRankedPairs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Highest final score first.
	assert.Equal(t, "D1", loaded[0].DrugID)
	assert.Equal(t, 0.4, loaded[0].FinalScore)
	assert.Equal(t, uncertainty.TierMedium, loaded[0].ConfidenceTier)
	assert.Equal(t, 4, loaded[0].NEvidencePaths)
	assert.Equal(t, "D2", loaded[1].DrugID)
}

func TestSaveRun_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rep, pairs, packs := testRun("run-1")
	require.NoError(t, store.SaveRun(ctx, rep, pairs, packs))

	pairs[0].FinalScore = 0.9
	require.NoError(t, store.SaveRun(ctx, rep, pairs, packs))

	loaded, err := store.LoadRankedPairs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 0.9, loaded[0].FinalScore)
}

func TestLoadEvidencePack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rep, pairs, packs := testRun("run-1")
	require.NoError(t, store.SaveRun(ctx, rep, pairs, packs))

	pack, err := store.LoadEvidencePack(ctx, "run-1", "D1", "X1")
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "arthritis", pack.DiseaseName)
	require.Len(t, pack.Paths, 1)
	assert.Equal(t, []string{"D1", "T1", "P1", "X1"}, pack.Paths[0].Nodes)

	missing, err := store.LoadEvidencePack(ctx, "run-1", "D9", "X9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLatestRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LatestRunID(ctx)
	assert.Error(t, err)

	rep, pairs, packs := testRun("run-1")
	rep.GeneratedAt = "2026-08-29T00:00:00Z"
	require.NoError(t, store.SaveRun(ctx, rep, pairs, packs))

	rep2, pairs2, packs2 := testRun("run-2")
	rep2.GeneratedAt = "2026-08-30T00:00:00Z"
	require.NoError(t, store.SaveRun(ctx, rep2, pairs2, packs2))

	id, err := store.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", id)
}
