// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package geo implements the spherical-Mercator (EPSG:3857) math shared by
// the clustering hierarchy, the spatial index, and viewport culling.
//
// All indexes operate on normalized world coordinates: longitude/latitude
// projected into the [0,1]x[0,1] square, with (0,0) at the north-west
// corner. Zoom-dependent scaling is applied by callers, which keeps the
// projected point set valid for every zoom level.
package geo

import "math"

// TileSize is the side length in pixels of one world tile at zoom 0.
const TileSize = 256

// MaxLat is the latitude limit of the Web Mercator projection. Latitudes
// beyond it project outside [0,1] and are clamped.
const MaxLat = 85.05113

// ProjectX converts a longitude in degrees to a normalized world X in [0,1].
func ProjectX(lon float64) float64 {
	return lon/360 + 0.5
}

// ProjectY converts a latitude in degrees to a normalized world Y in [0,1].
// Y grows southward. Latitudes beyond the Mercator limit clamp to 0 or 1.
func ProjectY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

// UnprojectX converts a normalized world X back to longitude in degrees.
func UnprojectX(x float64) float64 {
	return (x - 0.5) * 360
}

// UnprojectY converts a normalized world Y back to latitude in degrees.
func UnprojectY(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

// ValidLat reports whether lat is a finite latitude in [-90, 90].
func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) && lat >= -90 && lat <= 90
}

// ValidLon reports whether lon is a finite longitude in [-180, 180].
func ValidLon(lon float64) bool {
	return !math.IsNaN(lon) && !math.IsInf(lon, 0) && lon >= -180 && lon <= 180
}

// Bounds is a geographic rectangle in lon/lat degrees. A degenerate
// rectangle (min == max) is valid and matches points exactly on it.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// World returns bounds covering the full world extent.
func World() Bounds {
	return Bounds{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}
}

// Contains reports whether the point lies within the bounds, edges included.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ViewportBounds computes the geographic bounds visible in a viewport of
// width x height pixels centered on (centerLon, centerLat) at the given
// zoom, expanded by pad pixels on every side so circles drawn at the edge
// are not culled.
//
// Uses the standard Web Mercator scaling: the world is TileSize * 2^zoom
// pixels wide at a given zoom.
func ViewportBounds(centerLon, centerLat, zoom float64, width, height, pad int) Bounds {
	scale := TileSize * math.Pow(2, zoom)

	halfW := (float64(width)/2 + float64(pad)) / scale
	halfH := (float64(height)/2 + float64(pad)) / scale

	cx := ProjectX(centerLon)
	cy := ProjectY(centerLat)

	minX := cx - halfW
	maxX := cx + halfW
	minY := math.Max(0, cy-halfH)
	maxY := math.Min(1, cy+halfH)

	// Y grows southward, so minY is the northern (max lat) edge.
	return Bounds{
		MinLon: UnprojectX(minX),
		MinLat: UnprojectY(maxY),
		MaxLon: UnprojectX(maxX),
		MaxLat: UnprojectY(minY),
	}
}

// TileBounds returns the geographic bounds of the tile at (z, x, y).
func TileBounds(z, x, y int) Bounds {
	n := math.Pow(2, float64(z))

	minLon := float64(x)/n*360.0 - 180.0
	maxLon := float64(x+1)/n*360.0 - 180.0

	minLatRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y+1)/n)))
	maxLatRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))

	return Bounds{
		MinLon: minLon,
		MinLat: minLatRad * 180.0 / math.Pi,
		MaxLon: maxLon,
		MaxLat: maxLatRad * 180.0 / math.Pi,
	}
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
