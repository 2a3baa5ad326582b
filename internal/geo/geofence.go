package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates indicates a latitude outside [-90, 90], a longitude
// outside [-180, 180], or a non-finite value.
var ErrInvalidCoordinates = errors.New("geo: invalid coordinates")

// Coordinates is a WGS-84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are finite and in range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return false
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Result of a geofence check.
type Result struct {
	Within         bool
	DistanceMeters float64
}

// Validate decides whether point lies within radiusMeters of center using
// geodesic distance on the WGS-84 ellipsoid. The boundary is inclusive:
// a point exactly at the radius is within.
func Validate(center, point Coordinates, radiusMeters float64) (Result, error) {
	if radiusMeters <= 0 {
		return Result{}, fmt.Errorf("geo: radius must be positive, got %v", radiusMeters)
	}
	distance, err := Distance(center, point)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Within:         distance <= radiusMeters,
		DistanceMeters: distance,
	}, nil
}

// WGS-84 ellipsoid parameters.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	semiMinorAxis = semiMajorAxis * (1 - flattening)
)

// Distance returns the geodesic distance in meters between two points,
// computed with Vincenty's inverse formula on the WGS-84 ellipsoid.
// Ellipsoidal distance is used instead of a flat approximation because the
// equirectangular error can exceed the default 50 m radius tolerance at
// higher latitudes.
func Distance(p1, p2 Coordinates) (float64, error) {
	if !p1.Valid() || !p2.Valid() {
		return 0, ErrInvalidCoordinates
	}

	phi1 := p1.Latitude * math.Pi / 180
	phi2 := p2.Latitude * math.Pi / 180
	diffLon := (p2.Longitude - p1.Longitude) * math.Pi / 180

	u1 := math.Atan((1 - flattening) * math.Tan(phi1))
	u2 := math.Atan((1 - flattening) * math.Tan(phi2))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := diffLon
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false

	for i := 0; i < 200; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Sqrt(
			(cosU2*sinLambda)*(cosU2*sinLambda) +
				(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			// Coincident points.
			return 0, nil
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		if cosSqAlpha == 0 {
			// Both points on the equator.
			cos2SigmaM = 0
		} else {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}
		c := flattening / 16 * cosSqAlpha * (4 + flattening*(4-3*cosSqAlpha))
		prev := lambda
		lambda = diffLon + (1-c)*flattening*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < 1e-12 {
			converged = true
			break
		}
	}

	if !converged {
		// Vincenty fails to converge for near-antipodal points; any such
		// point is far outside every plausible geofence, so the spherical
		// great-circle distance is an acceptable answer there.
		return sphericalDistance(phi1, phi2, diffLon), nil
	}

	uSq := cosSqAlpha * (semiMajorAxis*semiMajorAxis - semiMinorAxis*semiMinorAxis) /
		(semiMinorAxis * semiMinorAxis)
	a := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	b := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := b * sinSigma * (cos2SigmaM + b/4*
		(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
			b/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return semiMinorAxis * a * (sigma - deltaSigma), nil
}

func sphericalDistance(phi1, phi2, diffLon float64) float64 {
	const meanRadius = 6371008.8
	sinHalfPhi := math.Sin((phi2 - phi1) / 2)
	sinHalfLon := math.Sin(diffLon / 2)
	h := sinHalfPhi*sinHalfPhi + math.Cos(phi1)*math.Cos(phi2)*sinHalfLon*sinHalfLon
	return 2 * meanRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}
