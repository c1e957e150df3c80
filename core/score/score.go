// Package score computes driver suitability scores for service requests.
// Scores combine proximity, workload, rating and availability sub-scores
// into a weighted total on a 0-100 scale.
package score

import (
	"fmt"
	"math"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/geo"
	"github.com/GenuineDickies/pat-sub001/core/model"
)

// Weights configures the contribution of each sub-score to the total.
// Weights must be non-negative and sum to 1.
type Weights struct {
	Proximity    float64 `json:"proximity"`
	Workload     float64 `json:"workload"`
	Rating       float64 `json:"rating"`
	Availability float64 `json:"availability"`
}

// DefaultWeights returns the production weight distribution.
func DefaultWeights() Weights {
	return Weights{
		Proximity:    0.40,
		Workload:     0.25,
		Rating:       0.20,
		Availability: 0.15,
	}
}

// Validate rejects weight sets with negative components or a sum that is
// not 1 within floating-point tolerance.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Proximity, w.Workload, w.Rating, w.Availability} {
		if v < 0 {
			return fmt.Errorf("score: negative weight %v", v)
		}
	}
	sum := w.Proximity + w.Workload + w.Rating + w.Availability
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("score: weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Breakdown holds the sub-scores and weighted total for one
// (driver, request) pair. All values are on a 0-100 scale. Breakdowns are
// ephemeral: they are produced for a single decision or display and never
// persisted.
type Breakdown struct {
	Proximity    float64 `json:"proximity"`
	Workload     float64 `json:"workload"`
	Rating       float64 `json:"rating"`
	Availability float64 `json:"availability"`
	Total        float64 `json:"total"`
}

const neutralRatingScore = 50.0

// ProximityScore maps a distance in kilometers to a 0-100 score with a
// linear falloff. Distance zero scores 100, distances at or beyond
// maxRadiusKm score 0. The result is monotonically non-increasing in
// distance.
func ProximityScore(distanceKm, maxRadiusKm float64) float64 {
	if maxRadiusKm <= 0 {
		return 0
	}
	if distanceKm <= 0 {
		return 100
	}
	if distanceKm >= maxRadiusKm {
		return 0
	}
	return 100 * (1 - distanceKm/maxRadiusKm)
}

// WorkloadScore maps a current/max workload ratio to a 0-100 score. An
// idle driver scores 100, a driver at or above capacity scores 0.
func WorkloadScore(current, max int) float64 {
	if max <= 0 || current >= max {
		return 0
	}
	if current <= 0 {
		return 100
	}
	return 100 * (1 - float64(current)/float64(max))
}

// RatingScore maps a 0-5 rating linearly to 0-100. Ratings at or below
// zero are treated as "not yet rated" and score a neutral midpoint so new
// drivers are not pinned to the bottom of the ranking.
func RatingScore(rating float64) float64 {
	if rating <= 0 {
		return neutralRatingScore
	}
	if rating > 5 {
		rating = 5
	}
	return rating / 5 * 100
}

// AvailabilityScore scores the driver's duty status. Only available
// drivers should reach scoring at all; anything else scores 0.
func AvailabilityScore(status model.DriverStatus) float64 {
	if status == model.DriverAvailable {
		return 100
	}
	return 0
}

// Eligible reports whether a driver may be considered for a request at
// all: on duty and with workload headroom. Drivers failing this filter
// are excluded from candidate sets rather than ranked at the bottom.
func Eligible(d model.DriverSnapshot) bool {
	return d.Status == model.DriverAvailable && d.HasWorkloadHeadroom()
}

// Scorer computes weighted composite scores.
type Scorer struct {
	Weights     Weights
	MaxRadiusKm float64
	// LocationFreshness bounds how old a driver's last location fix may be
	// before the proximity sub-score falls to zero. Zero disables the check.
	LocationFreshness time.Duration
}

// NewScorer returns a Scorer with default weights, a 50 km useful radius
// and a 15 minute location freshness window.
func NewScorer() Scorer {
	return Scorer{
		Weights:           DefaultWeights(),
		MaxRadiusKm:       50,
		LocationFreshness: 15 * time.Minute,
	}
}

// Score computes the breakdown for assigning driver d to request r at
// time now. A driver without a fresh location fix scores 0 on proximity.
func (s Scorer) Score(d model.DriverSnapshot, r model.ServiceRequestSnapshot, now time.Time) Breakdown {
	b := Breakdown{
		Workload:     WorkloadScore(d.CurrentWorkload, d.MaxWorkload),
		Rating:       RatingScore(d.Rating),
		Availability: AvailabilityScore(d.Status),
	}
	if d.HasLocationFix(now, s.LocationFreshness) {
		dist := geo.Distance(d.Latitude, d.Longitude, r.Latitude, r.Longitude)
		b.Proximity = ProximityScore(dist, s.MaxRadiusKm)
	}
	total := b.Proximity*s.Weights.Proximity +
		b.Workload*s.Weights.Workload +
		b.Rating*s.Weights.Rating +
		b.Availability*s.Weights.Availability
	b.Total = clamp(total, 0, 100)
	return b
}

// Less orders two scored drivers for ranking: higher total first, ties
// broken by lower current workload, then higher rating, then lower ID so
// the ordering is deterministic.
func Less(a, b model.DriverSnapshot, at, bt float64) bool {
	if at != bt {
		return at > bt
	}
	if a.CurrentWorkload != b.CurrentWorkload {
		return a.CurrentWorkload < b.CurrentWorkload
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	return a.ID < b.ID
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
