// Package fraud scores how suspicious a report's claimed location is, given
// whatever location evidence the submitted media carries.
package fraud

import "math"

const earthRadiusMeters = 6371000.0

// Distance bands, in meters, and the score each one maps to.
const (
	NearDistanceMeters = 100.0
	FarDistanceMeters  = 500.0

	NoEvidenceScore = 0.1
	MatchScore      = 0.0
	DriftScore      = 0.4
	MismatchScore   = 0.8

	maxScore = 1.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Score returns the fraud likelihood in [0,1] for a report claimed at reported
// whose evidence points to evidence. A nil evidence means none was available.
func Score(reported Point, evidence *Point) float64 {
	if evidence == nil {
		return NoEvidenceScore
	}

	var score float64
	switch d := DistanceMeters(reported, *evidence); {
	case d > FarDistanceMeters:
		score = MismatchScore
	case d > NearDistanceMeters:
		score = DriftScore
	default:
		score = MatchScore
	}

	return math.Min(score, maxScore)
}
