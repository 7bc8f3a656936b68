package ranking

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"mechrank/internal/uncertainty"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRankedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranked.csv")
	pairs := []*RankedPair{
		{
			DrugID: "D1", DiseaseID: "X1", DiseaseName: "arthritis",
			MechanismScore: 0.42, FinalScore: 0.3123456789,
			RiskMultiplier: 0.75, CILower: 0.28, CIUpper: 0.36, CIWidth: 0.08,
			ConfidenceTier: uncertainty.TierHigh, NEvidencePaths: 5,
		},
		{
			DrugID: "D2", DiseaseID: "X2",
			ConfidenceTier: uncertainty.TierLow, NEvidencePaths: 1,
		},
	}

	require.NoError(t, WriteRankedCSV(path, pairs))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, RankedCSVHeader, records[0])
	assert.Equal(t, "D1", records[1][0])
	assert.Equal(t, "arthritis", records[1][2])
	// Scores are printed with fixed six-decimal precision.
	assert.Equal(t, "0.312346", records[1][8])
	assert.Equal(t, "HIGH", records[1][12])
	assert.Equal(t, "5", records[1][13])
	assert.Equal(t, "LOW", records[2][12])
}

func TestWriteRankedCSV_EmptyPairsStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranked.csv")
	require.NoError(t, WriteRankedCSV(path, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RankedCSVHeader, records[0])
}
