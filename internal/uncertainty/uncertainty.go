package uncertainty

import (
	"math"
	"math/rand"
	"sort"
)

// Tier is the discrete confidence label attached to a pair.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// Params controls the bootstrap. The seed is fixed so repeated runs on
// identical inputs produce bit-identical intervals.
type Params struct {
	Bootstrap int
	CILevel   float64
	Statistic string // "mean" or "median"
	Seed      int64
}

// Result is the uncertainty annotation for one pair.
type Result struct {
	Mean    float64
	Lower   float64
	Upper   float64
	Width   float64
	Tier    Tier
	NPaths  int
	NGroups int
}

// Quantifier turns a pair's path scores into a confidence interval and tier
// via block-bootstrap resampling grouped by target.
type Quantifier struct {
	params Params
	rng    *rand.Rand
}

func NewQuantifier(params Params) *Quantifier {
	return &Quantifier{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// Quantify resamples the scores and assigns a tier. targets[i] attributes
// scores[i] to a target; paths through the same target are correlated and are
// resampled as one block. An empty target list falls back to treating every
// score as its own observation.
func (q *Quantifier) Quantify(scores []float64, targets []string) Result {
	res := Result{NPaths: len(scores)}

	groups := groupByTarget(scores, targets)
	res.NGroups = len(groups)
	res.Mean = q.statistic(scores)

	if len(scores) < 2 {
		// Degenerate case: a trivial zero-width interval, never a failure.
		res.Lower = res.Mean
		res.Upper = res.Mean
	} else {
		lower, upper := q.bootstrapInterval(scores, groups)
		res.Lower = lower
		res.Upper = upper
	}

	// The empirical interval must bracket the point statistic.
	if res.Lower > res.Mean {
		res.Lower = res.Mean
	}
	if res.Upper < res.Mean {
		res.Upper = res.Mean
	}
	res.Width = res.Upper - res.Lower

	res.Tier = AssignTier(res.NPaths, res.NGroups, res.Mean, res.Width)
	return res
}

// bootstrapInterval resamples target groups with replacement; with a single
// group it degrades to a standard per-path bootstrap since block resampling
// would only ever reproduce the original sample.
func (q *Quantifier) bootstrapInterval(scores []float64, groups [][]float64) (float64, float64) {
	stats := make([]float64, q.params.Bootstrap)
	sample := make([]float64, 0, len(scores))

	for i := 0; i < q.params.Bootstrap; i++ {
		sample = sample[:0]
		if len(groups) < 2 {
			for range scores {
				sample = append(sample, scores[q.rng.Intn(len(scores))])
			}
		} else {
			for range groups {
				g := groups[q.rng.Intn(len(groups))]
				sample = append(sample, g...)
			}
		}
		stats[i] = q.statistic(sample)
	}

	sort.Float64s(stats)
	alpha := 1 - q.params.CILevel
	return percentile(stats, alpha/2), percentile(stats, 1-alpha/2)
}

func (q *Quantifier) statistic(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if q.params.Statistic == "median" {
		return median(values)
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// AssignTier applies the deterministic tier rules in order. nGroups is the
// effective independence count; when it is unknown (0), nPaths stands in as a
// conservative approximation. HIGH is never awarded without at least 3
// independent target groups, no matter how tight the interval.
func AssignTier(nPaths, nGroups int, meanScore, ciWidth float64) Tier {
	if nPaths <= 1 {
		return TierLow
	}
	if nPaths == 2 {
		if ciWidth < 0.25 {
			return TierMedium
		}
		return TierLow
	}
	if meanScore < 0.15 {
		// Narrow-but-low intervals are not actionable.
		if ciWidth < 0.15 {
			return TierMedium
		}
		return TierLow
	}

	independence := nGroups
	if independence <= 0 {
		independence = nPaths
	}
	switch {
	case ciWidth < 0.10 && independence >= 3:
		return TierHigh
	case ciWidth < 0.10:
		return TierMedium
	case ciWidth < 0.25:
		return TierMedium
	default:
		return TierLow
	}
}

// groupByTarget buckets scores by target in deterministic (sorted) order so
// resampling is reproducible under a fixed seed.
func groupByTarget(scores []float64, targets []string) [][]float64 {
	if len(targets) != len(scores) {
		groups := make([][]float64, len(scores))
		for i, s := range scores {
			groups[i] = []float64{s}
		}
		return groups
	}

	byTarget := make(map[string][]float64)
	for i, s := range scores {
		byTarget[targets[i]] = append(byTarget[targets[i]], s)
	}
	keys := make([]string, 0, len(byTarget))
	for k := range byTarget {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([][]float64, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, byTarget[k])
	}
	return groups
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile interpolates linearly between order statistics.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
