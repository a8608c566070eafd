// Package navigation — geometry.go
//
// Heading normalisation helpers: heading arithmetic is always normalised
// into 0..360° before publishing and into -180..+180° for error
// computation. Shared by every mode branch in controller.go.
package navigation

import "math"

// normalise360 folds deg into [0, 360).
func normalise360(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// normaliseSigned folds deg into [-180, 180].
func normaliseSigned(deg float64) float64 {
	d := math.Mod(deg+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
