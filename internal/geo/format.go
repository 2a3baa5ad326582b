package geo

import (
	"fmt"
	"math"
)

// Format renders coordinates with hemisphere suffixes, e.g. "41.2995°N, 69.2401°E".
func Format(c Coordinates) string {
	if !c.Valid() {
		return fmt.Sprintf("(%v, %v)", c.Latitude, c.Longitude)
	}
	latDir := "N"
	if c.Latitude < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if c.Longitude < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s",
		math.Abs(c.Latitude), latDir, math.Abs(c.Longitude), lonDir)
}

// DistanceDescription renders a distance for user-facing messages.
func DistanceDescription(meters float64) string {
	if meters < 0 || math.IsNaN(meters) {
		return "invalid distance"
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0fm away", meters)
	}
	return fmt.Sprintf("%.1fkm away", meters/1000)
}

// Reasonable reports whether coordinates look like a genuine GPS fix.
// (0, 0) usually indicates a GPS failure rather than a real position.
func Reasonable(c Coordinates) bool {
	if !c.Valid() {
		return false
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return true
}
