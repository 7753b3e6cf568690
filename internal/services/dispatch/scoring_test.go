package dispatch

import (
	"testing"

	"ridecore/internal/domain/entities"
	"ridecore/internal/geo"
)

func TestWeightsForSelectsVariant(t *testing.T) {
	if w := weightsFor(false); w != standardWeights {
		t.Fatalf("expected standard weights, got %+v", w)
	}
	if w := weightsFor(true); w != abWeights {
		t.Fatalf("expected A/B weights, got %+v", w)
	}
}

func TestRankCandidatesOrdersByScoreDescending(t *testing.T) {
	meta := map[string]*entities.DriverMetadata{
		"near-poor-rating": {Rating: 3.0, DeclineRate: 0.1},
		"far-great-rating":  {Rating: 4.9, DeclineRate: 0.1},
	}
	dists := []geo.DriverDistance{
		{DriverID: "near-poor-rating", DistanceKm: 0.2},
		{DriverID: "far-great-rating", DistanceKm: 4.5},
	}

	ranked := rankCandidates(dists, func(id string) *entities.DriverMetadata { return meta[id] }, standardWeights)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ranked))
	}
	// distance dominates under the standard (distance-heavy) weights.
	if ranked[0].DriverID != "near-poor-rating" {
		t.Fatalf("expected the near driver to win under standard weights, got %s", ranked[0].DriverID)
	}
}

func TestRankCandidatesTieBreaksByAscendingDistance(t *testing.T) {
	meta := map[string]*entities.DriverMetadata{
		"a": {Rating: defaultRating, DeclineRate: defaultDeclineRate},
		"b": {Rating: defaultRating, DeclineRate: defaultDeclineRate},
	}
	dists := []geo.DriverDistance{
		{DriverID: "a", DistanceKm: 1.0},
		{DriverID: "b", DistanceKm: 1.0},
	}

	ranked := rankCandidates(dists, func(id string) *entities.DriverMetadata { return meta[id] }, standardWeights)
	if ranked[0].DriverID != "a" || ranked[1].DriverID != "b" {
		t.Fatalf("expected stable tie-break preserving input (ascending-distance) order, got %+v", ranked)
	}
}

func TestRankCandidatesDefaultsMissingMetadata(t *testing.T) {
	dists := []geo.DriverDistance{{DriverID: "ghost", DistanceKm: 1.0}}
	ranked := rankCandidates(dists, func(string) *entities.DriverMetadata { return nil }, standardWeights)
	want := score(standardWeights, 1.0, defaultRating, defaultDeclineRate)
	if ranked[0].Score != want {
		t.Fatalf("expected default-metadata score %f, got %f", want, ranked[0].Score)
	}
}
