// Package geo implements geohash encoding and the range-bucket covering
// used by the driver index for proximity queries, plus great-circle
// distance. A geohash encodes a lat/lng pair into a base32 string where
// nearby points share a prefix, so a circular search can be approximated
// by a handful of lexical ranges and then trimmed with true distances.
package geo

import (
	"math"
	"sort"
	"strings"
)

// base32 is the geohash character set. 'a', 'i', 'l' and 'o' are excluded.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

var (
	base32Map = map[byte]int{}

	// Neighbor lookup tables for the four cardinal directions, split by
	// hash-length parity (the bit interleaving alternates lng/lat).
	neighborTable = map[string]map[byte]string{
		"n": {'e': "p0r21436x8zb9dcf5h7kjnmqesgutwvy", 'o': "bc01fg45238967deuvhjyznpkmstqrwx"},
		"s": {'e': "14365h7k9dcfesgujnmqp0r2twvyx8zb", 'o': "238967debc01fg45kmstqrwxuvhjyznp"},
		"e": {'e': "bc01fg45238967deuvhjyznpkmstqrwx", 'o': "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		"w": {'e': "238967debc01fg45kmstqrwxuvhjyznp", 'o': "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borderTable = map[string]map[byte]string{
		"n": {'e': "prxz", 'o': "bcfguvyz"},
		"s": {'e': "028b", 'o': "0145hjnp"},
		"e": {'e': "bcfguvyz", 'o': "prxz"},
		"w": {'e': "0145hjnp", 'o': "028b"},
	}

	// Minimum cell dimension in km per precision, used to pick a bucket
	// precision whose 3x3 neighborhood is guaranteed to cover the query
	// radius.
	cellSizeKm = []float64{0, 5000, 625, 156, 19.5, 4.89, 0.61, 0.153, 0.019}
)

func init() {
	for i := 0; i < len(base32); i++ {
		base32Map[base32[i]] = i
	}
}

// Encode converts latitude and longitude into a geohash of the given
// precision (1..12).
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

// Neighbor returns the adjacent geohash cell in direction "n", "s", "e"
// or "w", or "" at the poles where no neighbor exists.
func Neighbor(hash, direction string) string {
	if hash == "" {
		return ""
	}

	last := hash[len(hash)-1]
	parent := hash[:len(hash)-1]

	parity := byte('e')
	if len(hash)%2 == 1 {
		parity = 'o'
	}

	if strings.IndexByte(borderTable[direction][parity], last) != -1 {
		parent = Neighbor(parent, direction)
		if parent == "" && len(hash) > 1 {
			return ""
		}
	}

	idx := strings.IndexByte(neighborTable[direction][parity], last)
	if idx == -1 {
		return ""
	}
	return parent + string(base32[idx])
}

// AllNeighbors returns the center cell plus its eight surrounding cells,
// deduplicated, in sorted order.
func AllNeighbors(hash string) []string {
	n := Neighbor(hash, "n")
	s := Neighbor(hash, "s")
	e := Neighbor(hash, "e")
	w := Neighbor(hash, "w")

	cells := []string{hash, n, s, e, w,
		Neighbor(n, "e"), Neighbor(n, "w"),
		Neighbor(s, "e"), Neighbor(s, "w"),
	}

	seen := make(map[string]bool, len(cells))
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Range is a half-open lexical interval of geohash strings. Any geohash
// with Start as prefix sorts within [Start, End).
type Range struct {
	Start string
	End   string
}

// CoverRadius returns lexical geohash ranges whose union covers the disc
// of radiusKm around the point. The cover may include false positives at
// the edges; callers must re-check true distance on each candidate.
func CoverRadius(lat, lng, radiusKm float64) []Range {
	if !ValidCoordinates(lat, lng) || radiusKm <= 0 {
		return nil
	}

	precision := precisionForRadius(radiusKm)
	cells := AllNeighbors(Encode(lat, lng, precision))

	ranges := make([]Range, 0, len(cells))
	for _, cell := range cells {
		// '~' sorts after every base32 character, closing the prefix range.
		ranges = append(ranges, Range{Start: cell, End: cell + "~"})
	}
	return ranges
}

// precisionForRadius picks the highest precision whose minimum cell
// dimension still spans the radius, so center+neighbors cover the disc.
func precisionForRadius(radiusKm float64) int {
	for p := len(cellSizeKm) - 1; p >= 1; p-- {
		if cellSizeKm[p] >= radiusKm {
			return p
		}
	}
	return 1
}

// ValidCoordinates reports whether lat/lng form a usable WGS84 point.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
