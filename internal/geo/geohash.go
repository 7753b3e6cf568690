// Package geo provides the coordinate plumbing behind driver dispatch:
// geohash encoding for coarse proximity bucketing, H3 cell addressing for
// surge cells, haversine distances, and the region-scoped driver index.
package geo

import (
	"strings"
)

// base32 is the geohash alphabet; 'a', 'i', 'l', 'o' are excluded.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Neighbor lookup tables. The geohash bit layout alternates longitude and
// latitude, so the adjacent-cell character mapping depends on whether the
// hash length is even or odd.
var (
	base32Map = map[byte]int{}

	neighborTables = map[string][2]string{
		"n": {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
		"s": {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
		"e": {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		"w": {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borderTables = map[string][2]string{
		"n": {"prxz", "bcfguvyz"},
		"s": {"028b", "0145hjnp"},
		"e": {"bcfguvyz", "prxz"},
		"w": {"0145hjnp", "028b"},
	}
)

func init() {
	for i := 0; i < len(base32); i++ {
		base32Map[base32[i]] = i
	}
}

// Encode converts a coordinate to a geohash of the given precision by
// interleaving longitude and latitude range bisections, five bits per
// output character. Precision is clamped to [1, 12]; 0 falls back to 6
// (~1.2 km cells), the bucketing precision the driver index uses.
func Encode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = 6
	}
	if precision > 12 {
		precision = 12
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var hash strings.Builder
	isEven := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if isEven {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isEven = !isEven
		bit++
		if bit == 5 {
			hash.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// Decode returns the center of the cell a geohash encodes, recovered by
// replaying the binary subdivision.
func Decode(hash string) (lat, lng float64) {
	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0
	isEven := true

	for i := 0; i < len(hash); i++ {
		cd, ok := base32Map[hash[i]]
		if !ok {
			continue
		}
		for j := 4; j >= 0; j-- {
			bit := (cd >> j) & 1
			if isEven {
				mid := (minLng + maxLng) / 2
				if bit == 1 {
					minLng = mid
				} else {
					maxLng = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if bit == 1 {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			isEven = !isEven
		}
	}

	return (minLat + maxLat) / 2, (minLng + maxLng) / 2
}

// Neighbor returns the geohash of the adjacent cell in direction "n", "s",
// "e", or "w". A last character on its parent's border recurses into the
// parent hash first.
func Neighbor(hash, direction string) string {
	if len(hash) == 0 {
		return ""
	}

	hash = strings.ToLower(hash)
	lastChar := hash[len(hash)-1]
	parent := hash[:len(hash)-1]

	parity := len(hash) % 2 // 0 = even length, 1 = odd

	if strings.IndexByte(borderTables[direction][parity], lastChar) >= 0 && len(parent) > 0 {
		parent = Neighbor(parent, direction)
	}

	idx := strings.IndexByte(neighborTables[direction][parity], lastChar)
	if idx < 0 {
		return hash
	}
	return parent + string(base32[idx])
}

// AllNeighbors returns the 3x3 grid of cells around hash (center first).
// At precision 6 this covers roughly 3.6 km east-west by 1.8 km
// north-south near the equator; the in-memory driver index builds it at a
// coarser precision when its search radius is wider than one cell, and it
// bounds that index's brute-force distance scan per radius query.
// Diagonals chain two Neighbor calls.
func AllNeighbors(hash string) []string {
	n := Neighbor(hash, "n")
	s := Neighbor(hash, "s")
	return []string{
		hash,
		n,
		s,
		Neighbor(hash, "e"),
		Neighbor(hash, "w"),
		Neighbor(n, "e"),
		Neighbor(n, "w"),
		Neighbor(s, "e"),
		Neighbor(s, "w"),
	}
}
