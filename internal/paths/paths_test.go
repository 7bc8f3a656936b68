package paths

import (
	"math"
	"testing"

	"mechrank/internal/tables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		HubLambda:         1.0,
		PathwayBreadthCap: 50,
		SupportBoostCoeff: 0.2,
		DiversityBonus:    0.1,
		AffinityMin:       0.7,
		AffinityMax:       1.8,
		TopKPathsPerPair:  10,
		ComboSeparator:    "+",
	}
}

func singlePathSet() *tables.InputSet {
	return &tables.InputSet{
		DrugTargets:    []tables.DrugTargetEdge{{DrugID: "D1", TargetID: "T1"}},
		TargetPathways: []tables.TargetPathwayEdge{{TargetID: "T1", PathwayID: "P1", PathwayName: "Pathway One"}},
		PathwayDiseases: []tables.PathwayDiseaseEdge{
			{PathwayID: "P1", DiseaseID: "X1", DiseaseName: "disease one", PathwayScore: 1.0, SupportGeneCount: 10},
		},
	}
}

func TestAggregate_SinglePath(t *testing.T) {
	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(singlePathSet())
	require.Len(t, pairs, 1)

	pair := pairs[0]
	require.Len(t, pair.Paths, 1)
	p := pair.Paths[0]

	// Degree 1 target: no hub penalty. Support genes below cap: no discount.
	assert.Equal(t, 1, p.TargetDegree)
	assert.Equal(t, 1.0, p.HubWeight)
	assert.Equal(t, 1.0, p.BreadthDiscount)
	assert.Equal(t, 1.0, p.AffinityWeight)

	wantBoost := 1 + 0.2*math.Log1p(10)
	assert.InDelta(t, wantBoost, p.SupportBoost, 1e-12)
	assert.InDelta(t, 1.0*wantBoost, p.Score, 1e-12)

	// Single path: zero diversity bonus, mechanism equals the path score.
	assert.InDelta(t, p.Score, pair.MechanismScore, 1e-12)
	assert.Equal(t, 1, pair.UniqueTargets)
}

func TestAggregate_HubPenaltyDecreasesWithDegree(t *testing.T) {
	set := singlePathSet()
	// A second drug hitting the same target makes T1 a degree-2 hub.
	set.DrugTargets = append(set.DrugTargets, tables.DrugTargetEdge{DrugID: "D2", TargetID: "T1"})

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 2)

	for _, pair := range pairs {
		require.Len(t, pair.Paths, 1)
		assert.Equal(t, 2, pair.Paths[0].TargetDegree)
		assert.InDelta(t, 0.5, pair.Paths[0].HubWeight, 1e-12)
	}
}

func TestAggregate_BreadthDiscountAboveCap(t *testing.T) {
	set := singlePathSet()
	set.PathwayDiseases[0].SupportGeneCount = 200

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 1)
	assert.InDelta(t, 50.0/200.0, pairs[0].Paths[0].BreadthDiscount, 1e-12)
}

func TestAggregate_AffinityWeighting(t *testing.T) {
	tests := []struct {
		name     string
		affinity float64
		want     float64
	}{
		{"zero affinity maps to lower clip", 0.0, 0.7},
		{"full affinity maps to upper clip", 1.0, 1.8},
		{"midpoint is linear", 0.5, 1.25},
		{"out of range is clipped", 4.0, 1.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := singlePathSet()
			set.Affinities = []tables.AffinityRecord{{DrugID: "D1", TargetID: "T1", Affinity: tt.affinity}}

			agg := NewAggregator(testParams())
			pairs := agg.Aggregate(set)
			require.Len(t, pairs, 1)
			assert.InDelta(t, tt.want, pairs[0].Paths[0].AffinityWeight, 1e-12)
		})
	}
}

func TestAggregate_DiversityBonus(t *testing.T) {
	set := &tables.InputSet{
		DrugTargets: []tables.DrugTargetEdge{
			{DrugID: "D1", TargetID: "T1"},
			{DrugID: "D1", TargetID: "T2"},
		},
		TargetPathways: []tables.TargetPathwayEdge{
			{TargetID: "T1", PathwayID: "P1"},
			{TargetID: "T2", PathwayID: "P2"},
		},
		PathwayDiseases: []tables.PathwayDiseaseEdge{
			{PathwayID: "P1", DiseaseID: "X1", PathwayScore: 0.5, SupportGeneCount: 5},
			{PathwayID: "P2", DiseaseID: "X1", PathwayScore: 0.4, SupportGeneCount: 5},
		},
	}

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 1)

	pair := pairs[0]
	require.Len(t, pair.Paths, 2)
	assert.Equal(t, 2, pair.UniqueTargets)

	best := pair.Paths[0].Score
	want := best + 0.1*math.Log1p(1) + 0.05*math.Log1p(1)
	assert.InDelta(t, want, pair.MechanismScore, 1e-12)
	// Multi-route evidence must beat the strongest path alone.
	assert.Greater(t, pair.MechanismScore, best)
}

func TestAggregate_TopKPathsPerPair(t *testing.T) {
	params := testParams()
	params.TopKPathsPerPair = 3

	set := &tables.InputSet{
		DrugTargets:    []tables.DrugTargetEdge{{DrugID: "D1", TargetID: "T1"}},
		TargetPathways: []tables.TargetPathwayEdge{},
	}
	for i := 0; i < 6; i++ {
		pid := string(rune('A' + i))
		set.TargetPathways = append(set.TargetPathways, tables.TargetPathwayEdge{TargetID: "T1", PathwayID: pid})
		set.PathwayDiseases = append(set.PathwayDiseases, tables.PathwayDiseaseEdge{
			PathwayID: pid, DiseaseID: "X1", PathwayScore: 0.1 * float64(i+1), SupportGeneCount: 5,
		})
	}

	agg := NewAggregator(params)
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 1)
	require.Len(t, pairs[0].Paths, 3)

	// Kept paths are the strongest, in descending order.
	scores := pairs[0].Paths
	assert.GreaterOrEqual(t, scores[0].Score, scores[1].Score)
	assert.GreaterOrEqual(t, scores[1].Score, scores[2].Score)
	assert.InDelta(t, 0.6, scores[0].PathwayScore, 1e-12)
}

func TestAggregate_CombinationDrugNormalization(t *testing.T) {
	set := singlePathSet()
	set.DrugTargets[0].DrugID = "D1+D2"

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 1)

	pair := pairs[0]
	assert.Equal(t, 2, pair.Components)
	assert.InDelta(t, pair.Paths[0].Score/2, pair.MechanismScore, 1e-12)
}

func TestAggregate_NoJoinMatchDropsPair(t *testing.T) {
	set := singlePathSet()
	// Break the join: the pathway-disease table references another pathway.
	set.PathwayDiseases[0].PathwayID = "P999"

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	assert.Empty(t, pairs)
}

func TestAggregate_DeterministicOrder(t *testing.T) {
	set := singlePathSet()
	set.DrugTargets = append(set.DrugTargets, tables.DrugTargetEdge{DrugID: "A0", TargetID: "T1"})

	agg := NewAggregator(testParams())
	pairs := agg.Aggregate(set)
	require.Len(t, pairs, 2)
	assert.Equal(t, "A0", pairs[0].DrugID)
	assert.Equal(t, "D1", pairs[1].DrugID)
}

func TestComponentCount(t *testing.T) {
	agg := NewAggregator(testParams())
	assert.Equal(t, 1, agg.componentCount("aspirin"))
	assert.Equal(t, 2, agg.componentCount("aspirin+clopidogrel"))
	assert.Equal(t, 3, agg.componentCount("a+b+c"))
	assert.Equal(t, 1, agg.componentCount(""))
}
