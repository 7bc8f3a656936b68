package risk

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"mechrank/internal/tables"
)

// Params controls the risk adjustment. Weights are expected pre-clamped to
// [0, 1] by config normalization.
type Params struct {
	SafetyWeight        float64
	TrialWeight         float64
	PhenotypeBoostCoeff float64
	MinPRR              float64
	SeriousAEKeywords   []string
}

// Adjustment is the multiplicative risk/benefit correction for one pair.
type Adjustment struct {
	SafetyPenalty  float64
	TrialPenalty   float64
	RiskMultiplier float64
	PhenotypeBoost float64
	FinalScore     float64
}

// SafetyResult caches the per-drug safety computation alongside the number of
// AE records that passed the PRR threshold, for degenerate-data reporting.
type SafetyResult struct {
	Penalty     float64
	UsedRecords int
}

// Adjuster converts adverse-event, trial-failure and phenotype evidence into
// one multiplicative adjustment per pair. Per-drug and per-disease results are
// memoized in maps owned by the adjuster; its lifetime is one run.
type Adjuster struct {
	params Params

	aeByDrug        map[string][]tables.AdverseEventRecord
	trialsByDrug    map[string][]tables.TrialRecord
	phenosByDisease map[string][]tables.PhenotypeAssociation

	safetyCache    map[string]SafetyResult
	trialCache     map[string]float64 // keyed by drug + disease name
	phenotypeCache map[string]float64
}

const maxAERecords = 10
const maxPhenotypes = 10

// log1p(100) normalizes report-count confidence: 100+ reports mean full trust.
var fullTrustReports = math.Log1p(100)

func NewAdjuster(params Params, set *tables.InputSet) *Adjuster {
	a := &Adjuster{
		params:          params,
		aeByDrug:        make(map[string][]tables.AdverseEventRecord),
		trialsByDrug:    make(map[string][]tables.TrialRecord),
		phenosByDisease: make(map[string][]tables.PhenotypeAssociation),
		safetyCache:     make(map[string]SafetyResult),
		trialCache:      make(map[string]float64),
		phenotypeCache:  make(map[string]float64),
	}
	for _, r := range set.AdverseEvents {
		a.aeByDrug[r.DrugID] = append(a.aeByDrug[r.DrugID], r)
	}
	for _, t := range set.Trials {
		a.trialsByDrug[t.DrugID] = append(a.trialsByDrug[t.DrugID], t)
	}
	for _, p := range set.Phenotypes {
		a.phenosByDisease[p.DiseaseID] = append(a.phenosByDisease[p.DiseaseID], p)
	}
	return a
}

// Apply combines the three signals into final_score =
// mechanism * exp(-w_s*safety - w_t*trial) * (1 + phenotype_boost).
// The risk multiplier is an exponential decay and the phenotype multiplier is
// 1 plus a non-negative term, so the result is never negative.
func (a *Adjuster) Apply(mechanismScore float64, drugID, diseaseID, diseaseName string) Adjustment {
	adj := Adjustment{
		SafetyPenalty:  a.SafetyPenalty(drugID).Penalty,
		TrialPenalty:   a.TrialPenalty(drugID, diseaseName),
		PhenotypeBoost: a.PhenotypeBoost(diseaseID),
	}
	adj.RiskMultiplier = math.Exp(-a.params.SafetyWeight*adj.SafetyPenalty - a.params.TrialWeight*adj.TrialPenalty)
	adj.FinalScore = mechanismScore * adj.RiskMultiplier * (1 + adj.PhenotypeBoost)
	return adj
}

// SafetyPenalty computes the PRR-driven safety penalty for a drug, memoized
// across all its pairs. Report volume only modulates trust in each signal; a
// tanh saturates the cumulative penalty into [0, 1).
func (a *Adjuster) SafetyPenalty(drugID string) SafetyResult {
	if cached, ok := a.safetyCache[drugID]; ok {
		return cached
	}

	records := append([]tables.AdverseEventRecord(nil), a.aeByDrug[drugID]...)
	usable := records[:0]
	for _, r := range records {
		if r.PRR >= a.params.MinPRR && r.PRR > 0 {
			usable = append(usable, r)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].PRR > usable[j].PRR })
	if len(usable) > maxAERecords {
		usable = usable[:maxAERecords]
	}

	sum := 0.0
	for _, r := range usable {
		confidence := math.Log1p(float64(r.ReportCount)) / fullTrustReports
		if confidence > 1 {
			confidence = 1
		}
		penalty := math.Log1p(r.PRR) / 5 * confidence
		if a.isSerious(r.AETerm) {
			penalty *= 2
		}
		sum += penalty
	}

	result := SafetyResult{Penalty: math.Tanh(sum), UsedRecords: len(usable)}
	a.safetyCache[drugID] = result
	return result
}

// TrialPenalty combines safety stops (drug-intrinsic, any indication) with
// efficacy stops restricted to trials whose conditions overlap the target
// disease. Repurposing to a new indication is not penalized by unrelated
// efficacy failures.
func (a *Adjuster) TrialPenalty(drugID, diseaseName string) float64 {
	key := drugID + "\x00" + strings.ToLower(diseaseName)
	if cached, ok := a.trialCache[key]; ok {
		return cached
	}

	safetyStops := 0
	efficacyStops := 0
	for _, t := range a.trialsByDrug[drugID] {
		if t.IsSafetyStop {
			safetyStops++
		}
		if t.IsEfficacyStop && conditionsOverlap(t.Conditions, diseaseName) {
			efficacyStops++
		}
	}

	penalty := 0.1*math.Log1p(float64(safetyStops)) + 0.05*math.Log1p(float64(efficacyStops))
	if penalty > 1 {
		penalty = 1
	}
	a.trialCache[key] = penalty
	return penalty
}

// PhenotypeBoost rewards both quality (average of the top scores) and breadth
// (association count) of phenotype evidence for a disease.
func (a *Adjuster) PhenotypeBoost(diseaseID string) float64 {
	if cached, ok := a.phenotypeCache[diseaseID]; ok {
		return cached
	}

	phenos := append([]tables.PhenotypeAssociation(nil), a.phenosByDisease[diseaseID]...)
	if len(phenos) == 0 {
		a.phenotypeCache[diseaseID] = 0
		return 0
	}
	sort.SliceStable(phenos, func(i, j int) bool { return phenos[i].Score > phenos[j].Score })

	top := phenos
	if len(top) > maxPhenotypes {
		top = top[:maxPhenotypes]
	}
	sum := 0.0
	for _, p := range top {
		sum += p.Score
	}
	avg := sum / float64(len(top))

	boost := a.params.PhenotypeBoostCoeff * avg * math.Log1p(float64(len(phenos)))
	if boost < 0 {
		boost = 0
	}
	a.phenotypeCache[diseaseID] = boost
	return boost
}

// AdverseEvents returns the drug's AE records above the PRR threshold, sorted
// by PRR descending, for evidence packs.
func (a *Adjuster) AdverseEvents(drugID string) []tables.AdverseEventRecord {
	var out []tables.AdverseEventRecord
	for _, r := range a.aeByDrug[drugID] {
		if r.PRR >= a.params.MinPRR && r.PRR > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PRR > out[j].PRR })
	if len(out) > maxAERecords {
		out = out[:maxAERecords]
	}
	return out
}

// AECount returns the raw (pre-threshold) adverse-event record count for a
// drug, for degenerate-data reporting.
func (a *Adjuster) AECount(drugID string) int {
	return len(a.aeByDrug[drugID])
}

// Trials returns all trial records for a drug, for evidence packs.
func (a *Adjuster) Trials(drugID string) []tables.TrialRecord {
	return a.trialsByDrug[drugID]
}

// Phenotypes returns the disease's phenotype associations sorted by score
// descending, for evidence packs.
func (a *Adjuster) Phenotypes(diseaseID string) []tables.PhenotypeAssociation {
	out := append([]tables.PhenotypeAssociation(nil), a.phenosByDisease[diseaseID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (a *Adjuster) isSerious(term string) bool {
	lower := strings.ToLower(term)
	for _, kw := range a.params.SeriousAEKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Generic clinical terms and short filler words that would create false
// condition matches. Two-letter tokens are kept otherwise so abbreviated
// disease names ("MS", "RA") can still match.
var conditionStopwords = map[string]bool{
	"disease": true, "syndrome": true, "disorder": true,
	"chronic": true, "acute": true, "and": true, "the": true, "with": true,
	"of": true, "in": true, "to": true, "on": true, "by": true, "or": true,
	"at": true, "ii": true, "iv": true, "vi": true,
}

// conditionsOverlap reports whether the trial conditions share at least one
// informative whole word with the target disease name.
func conditionsOverlap(conditions, diseaseName string) bool {
	condWords := tokenize(conditions)
	if len(condWords) == 0 {
		return false
	}
	for w := range tokenize(diseaseName) {
		if condWords[w] {
			return true
		}
	}
	return false
}

func tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordSplit.Split(strings.ToLower(text), -1) {
		if len(w) < 2 || conditionStopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
