package dispatch

import (
	"sort"

	"ridecore/internal/domain/entities"
	"ridecore/internal/geo"
)

// scoreWeights is the (alpha, beta, gamma) triple of the composite score.
// standardWeights is distance-heavy; abWeights rebalances toward rating.
type scoreWeights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

var standardWeights = scoreWeights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2}
var abWeights = scoreWeights{Alpha: 0.4, Beta: 0.4, Gamma: 0.2}

// weightsFor selects the scoring weights per the new_scoring_algo flag.
func weightsFor(newScoringAlgo bool) scoreWeights {
	if newScoringAlgo {
		return abWeights
	}
	return standardWeights
}

// missing-metadata defaults.
const (
	defaultRating      = 4.0
	defaultDeclineRate = 0.1
)

// candidate is a scored dispatch candidate.
type candidate struct {
	DriverID   string
	DistanceKm float64
	Score      float64
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// score computes the composite formula: α·1/max(distance,0.01) + β·rating +
// γ·1/max(decline_rate,0.01).
func score(w scoreWeights, distanceKm, rating, declineRate float64) float64 {
	return w.Alpha/maxF(distanceKm, 0.01) + w.Beta*rating + w.Gamma/maxF(declineRate, 0.01)
}

// rankCandidates scores every entry in dists using metadata from lookup,
// defaulting missing rating/decline-rate fields, and returns them sorted
// descending by score. dists arrives ascending by distance (the geo
// index's natural order) and sort.SliceStable preserves the relative order
// of equal-score entries, so ties resolve to ascending distance.
func rankCandidates(dists []geo.DriverDistance, lookup func(driverID string) *entities.DriverMetadata, w scoreWeights) []candidate {
	out := make([]candidate, 0, len(dists))
	for _, d := range dists {
		rating := defaultRating
		declineRate := defaultDeclineRate
		if meta := lookup(d.DriverID); meta != nil {
			if meta.Rating > 0 {
				rating = meta.Rating
			}
			if meta.DeclineRate > 0 {
				declineRate = meta.DeclineRate
			}
		}
		out = append(out, candidate{
			DriverID:   d.DriverID,
			DistanceKm: d.DistanceKm,
			Score:      score(w, d.DistanceKm, rating, declineRate),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
