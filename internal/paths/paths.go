package paths

import (
	"math"
	"sort"
	"strings"

	"mechrank/internal/tables"
)

// Path is one drug→target→pathway→disease evidence chain with its derived
// score. Paths are recomputed each run and live only inside their pair.
type Path struct {
	DrugID           string  `json:"drug_id"`
	TargetID         string  `json:"target_id"`
	PathwayID        string  `json:"pathway_id"`
	PathwayName      string  `json:"pathway_name"`
	DiseaseID        string  `json:"disease_id"`
	DiseaseName      string  `json:"disease_name"`
	PathwayScore     float64 `json:"pathway_score"`
	SupportGeneCount int     `json:"support_gene_count"`
	TargetDegree     int     `json:"target_degree"`
	HubWeight        float64 `json:"hub_weight"`
	BreadthDiscount  float64 `json:"breadth_discount"`
	SupportBoost     float64 `json:"support_boost"`
	AffinityWeight   float64 `json:"affinity_weight"`
	Score            float64 `json:"score"`
}

// PairKey identifies a candidate (drug, disease) pair.
type PairKey struct {
	DrugID    string
	DiseaseID string
}

// PairScore is the aggregate mechanism evidence for one pair. Only the kept
// top-K paths survive here; pairs with no surviving paths are never emitted.
type PairScore struct {
	DrugID         string
	DiseaseID      string
	DiseaseName    string
	MechanismScore float64
	Paths          []Path
	UniqueTargets  int
	Components     int
}

// Params controls path scoring. Zero values are not usable; construct from
// config.Default-derived values.
type Params struct {
	HubLambda         float64
	PathwayBreadthCap float64
	SupportBoostCoeff float64
	DiversityBonus    float64
	AffinityMin       float64
	AffinityMax       float64
	TopKPathsPerPair  int
	ComboSeparator    string
}

// Aggregator joins the edge tables into full paths and reduces them to one
// mechanism score per pair.
type Aggregator struct {
	params Params
}

func NewAggregator(params Params) *Aggregator {
	return &Aggregator{params: params}
}

// Aggregate performs the join, scores every path, keeps the top-K paths per
// pair and computes the pair-level mechanism score. The returned slice is
// sorted by (drug, disease) for deterministic downstream processing.
func (a *Aggregator) Aggregate(set *tables.InputSet) []*PairScore {
	// Index target→pathways and pathway→diseases for the join. Inputs are
	// already deduplicated on natural keys by the loaders.
	pathwaysByTarget := make(map[string][]tables.TargetPathwayEdge)
	for _, e := range set.TargetPathways {
		pathwaysByTarget[e.TargetID] = append(pathwaysByTarget[e.TargetID], e)
	}
	diseasesByPathway := make(map[string][]tables.PathwayDiseaseEdge)
	for _, e := range set.PathwayDiseases {
		diseasesByPathway[e.PathwayID] = append(diseasesByPathway[e.PathwayID], e)
	}
	affinity := make(map[string]float64, len(set.Affinities))
	for _, r := range set.Affinities {
		affinity[r.DrugID+"\x00"+r.TargetID] = r.Affinity
	}

	// Pass 1: enumerate joined paths without scores so target degree can be
	// computed over the full joined set.
	type rawPath struct {
		drug    tables.DrugTargetEdge
		pathway tables.TargetPathwayEdge
		disease tables.PathwayDiseaseEdge
	}
	var raw []rawPath
	drugsByTarget := make(map[string]map[string]bool)
	for _, dt := range set.DrugTargets {
		for _, tp := range pathwaysByTarget[dt.TargetID] {
			for _, pd := range diseasesByPathway[tp.PathwayID] {
				raw = append(raw, rawPath{drug: dt, pathway: tp, disease: pd})
				if drugsByTarget[dt.TargetID] == nil {
					drugsByTarget[dt.TargetID] = make(map[string]bool)
				}
				drugsByTarget[dt.TargetID][dt.DrugID] = true
			}
		}
	}

	// Pass 2: score paths and bucket them per pair.
	pairs := make(map[PairKey]*PairScore)
	for _, rp := range raw {
		degree := len(drugsByTarget[rp.drug.TargetID])
		p := Path{
			DrugID:           rp.drug.DrugID,
			TargetID:         rp.drug.TargetID,
			PathwayID:        rp.pathway.PathwayID,
			PathwayName:      rp.pathway.PathwayName,
			DiseaseID:        rp.disease.DiseaseID,
			DiseaseName:      rp.disease.DiseaseName,
			PathwayScore:     rp.disease.PathwayScore,
			SupportGeneCount: rp.disease.SupportGeneCount,
			TargetDegree:     degree,
		}
		p.HubWeight = a.hubWeight(degree)
		p.BreadthDiscount = a.breadthDiscount(p.SupportGeneCount)
		p.SupportBoost = 1 + a.params.SupportBoostCoeff*math.Log1p(float64(p.SupportGeneCount))
		p.AffinityWeight = a.affinityWeight(affinity, p.DrugID, p.TargetID)
		p.Score = p.PathwayScore * p.HubWeight * p.BreadthDiscount * p.SupportBoost * p.AffinityWeight

		key := PairKey{DrugID: p.DrugID, DiseaseID: p.DiseaseID}
		pair, ok := pairs[key]
		if !ok {
			pair = &PairScore{DrugID: p.DrugID, DiseaseID: p.DiseaseID, DiseaseName: p.DiseaseName}
			pairs[key] = pair
		}
		pair.Paths = append(pair.Paths, p)
	}

	out := make([]*PairScore, 0, len(pairs))
	for _, pair := range pairs {
		a.reducePair(pair)
		if len(pair.Paths) == 0 {
			// No surviving evidence: the pair is dropped, not scored as zero.
			continue
		}
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DrugID == out[j].DrugID {
			return out[i].DiseaseID < out[j].DiseaseID
		}
		return out[i].DrugID < out[j].DrugID
	})
	return out
}

// reducePair keeps the top-K paths and computes the mechanism score:
// strongest path sets the floor, independent pathway and target routes add a
// log-diminishing bonus.
func (a *Aggregator) reducePair(pair *PairScore) {
	sort.SliceStable(pair.Paths, func(i, j int) bool {
		pi, pj := pair.Paths[i], pair.Paths[j]
		if pi.Score == pj.Score {
			if pi.TargetID == pj.TargetID {
				return pi.PathwayID < pj.PathwayID
			}
			return pi.TargetID < pj.TargetID
		}
		return pi.Score > pj.Score
	})
	if len(pair.Paths) > a.params.TopKPathsPerPair {
		pair.Paths = pair.Paths[:a.params.TopKPathsPerPair]
	}
	if len(pair.Paths) == 0 {
		return
	}

	best := pair.Paths[0].Score
	targets := make(map[string]bool)
	for _, p := range pair.Paths {
		targets[p.TargetID] = true
	}
	pair.UniqueTargets = len(targets)

	n := float64(len(pair.Paths))
	score := best +
		a.params.DiversityBonus*math.Log1p(n-1) +
		0.5*a.params.DiversityBonus*math.Log1p(float64(pair.UniqueTargets-1))

	pair.Components = a.componentCount(pair.DrugID)
	if pair.Components > 1 {
		score /= float64(pair.Components)
	}
	pair.MechanismScore = score
}

// hubWeight down-weights promiscuous targets: (1/degree)^lambda, which is
// monotonically decreasing in degree and bounded to (0, 1].
func (a *Aggregator) hubWeight(degree int) float64 {
	if degree < 1 {
		degree = 1
	}
	return math.Pow(1/float64(degree), a.params.HubLambda)
}

// breadthDiscount keeps mega-pathways from inflating scores: above the soft
// cap the path is discounted by cap/support, below it the discount is 1.
func (a *Aggregator) breadthDiscount(supportGenes int) float64 {
	if float64(supportGenes) <= a.params.PathwayBreadthCap {
		return 1.0
	}
	return a.params.PathwayBreadthCap / float64(supportGenes)
}

// affinityWeight maps a normalized binding affinity to a multiplier between
// AffinityMin and AffinityMax, clipped at both ends. Missing affinity data
// leaves the path unweighted.
func (a *Aggregator) affinityWeight(affinity map[string]float64, drugID, targetID string) float64 {
	v, ok := affinity[drugID+"\x00"+targetID]
	if !ok {
		return 1.0
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return a.params.AffinityMin + v*(a.params.AffinityMax-a.params.AffinityMin)
}

// componentCount detects combination drugs by the configured separator token.
func (a *Aggregator) componentCount(drugID string) int {
	sep := a.params.ComboSeparator
	if sep == "" {
		return 1
	}
	count := 0
	for _, part := range strings.Split(drugID, sep) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	if count < 1 {
		return 1
	}
	return count
}
