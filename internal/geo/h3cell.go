package geo

import (
	h3 "github.com/uber/h3-go/v4"
)

// H3 resolutions: res 8 (~0.74 km^2) addresses surge cells, res 9
// (~0.10 km^2) is reserved for finer-grained matching.
const (
	SurgeCellResolution    = 8
	MatchingCellResolution = 9
)

// SurgeCell returns the H3 cell address a coordinate falls into at the surge
// resolution. This is the cell id carried on supply/demand snapshot events
// and geo-cell audit rows.
func SurgeCell(lat, lng float64) string {
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lng), SurgeCellResolution)
	return cell.String()
}

// MatchingCell returns the finer-grained H3 cell reserved for future
// matching-cell indexing; the dispatch loop uses a radius query instead
// today.
func MatchingCell(lat, lng float64) string {
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lng), MatchingCellResolution)
	return cell.String()
}
