package score

import (
	"math"
	"testing"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

func TestWeights_Validate(t *testing.T) {
	cases := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"exact", Weights{Proximity: 0.25, Workload: 0.25, Rating: 0.25, Availability: 0.25}, false},
		{"sum below one", Weights{Proximity: 0.4, Workload: 0.2, Rating: 0.2, Availability: 0.1}, true},
		{"sum above one", Weights{Proximity: 0.5, Workload: 0.3, Rating: 0.2, Availability: 0.15}, true},
		{"negative", Weights{Proximity: 1.2, Workload: -0.2, Rating: 0, Availability: 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.w.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestProximityScore_Monotone(t *testing.T) {
	const radius = 50.0
	if got := ProximityScore(0, radius); got != 100 {
		t.Errorf("distance 0 = %v, want 100", got)
	}
	if got := ProximityScore(radius, radius); got != 0 {
		t.Errorf("distance at radius = %v, want 0", got)
	}
	if got := ProximityScore(radius*2, radius); got != 0 {
		t.Errorf("distance beyond radius = %v, want 0", got)
	}
	prev := math.Inf(1)
	for d := 0.0; d <= radius+10; d += 0.5 {
		cur := ProximityScore(d, radius)
		if cur > prev {
			t.Fatalf("score increased with distance at %v km: %v > %v", d, cur, prev)
		}
		prev = cur
	}
}

func TestWorkloadScore(t *testing.T) {
	if got := WorkloadScore(0, 3); got != 100 {
		t.Errorf("idle = %v, want 100", got)
	}
	if got := WorkloadScore(3, 3); got != 0 {
		t.Errorf("at capacity = %v, want 0", got)
	}
	if got := WorkloadScore(5, 3); got != 0 {
		t.Errorf("over capacity = %v, want 0", got)
	}
	if got := WorkloadScore(1, 4); got != 75 {
		t.Errorf("1/4 = %v, want 75", got)
	}
	if got := WorkloadScore(0, 0); got != 0 {
		t.Errorf("zero max = %v, want 0", got)
	}
}

func TestRatingScore(t *testing.T) {
	if got := RatingScore(5); got != 100 {
		t.Errorf("5.0 = %v, want 100", got)
	}
	if got := RatingScore(2.5); got != 50 {
		t.Errorf("2.5 = %v, want 50", got)
	}
	if got := RatingScore(0); got != neutralRatingScore {
		t.Errorf("unrated = %v, want neutral %v", got, neutralRatingScore)
	}
	if got := RatingScore(-1); got != neutralRatingScore {
		t.Errorf("negative = %v, want neutral %v", got, neutralRatingScore)
	}
	if got := RatingScore(9); got != 100 {
		t.Errorf("above scale = %v, want capped at 100", got)
	}
}

func TestScore_TotalIsWeightedSum(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	req := model.ServiceRequestSnapshot{ID: 1, Status: model.RequestPending, Latitude: 40.0, Longitude: -74.0}
	drivers := []model.DriverSnapshot{
		{ID: 1, Status: model.DriverAvailable, Rating: 4.2, CurrentWorkload: 1, MaxWorkload: 3, Latitude: 40.01, Longitude: -74.0, LocationUpdatedAt: now},
		{ID: 2, Status: model.DriverAvailable, Rating: 0, CurrentWorkload: 0, MaxWorkload: 2, Latitude: 41.0, Longitude: -75.0, LocationUpdatedAt: now},
		{ID: 3, Status: model.DriverBusy, Rating: 5, CurrentWorkload: 2, MaxWorkload: 3, Latitude: 40.0, Longitude: -74.0, LocationUpdatedAt: now},
	}
	for _, d := range drivers {
		b := s.Score(d, req, now)
		want := b.Proximity*s.Weights.Proximity + b.Workload*s.Weights.Workload +
			b.Rating*s.Weights.Rating + b.Availability*s.Weights.Availability
		if math.Abs(b.Total-want) > 1e-9 {
			t.Errorf("driver %d: total %v != weighted sum %v", d.ID, b.Total, want)
		}
		if b.Total < 0 || b.Total > 100 {
			t.Errorf("driver %d: total %v out of [0,100]", d.ID, b.Total)
		}
	}
}

func TestScore_StaleLocationZeroesProximity(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	req := model.ServiceRequestSnapshot{ID: 1, Latitude: 40.0, Longitude: -74.0}

	stale := model.DriverSnapshot{
		ID: 1, Status: model.DriverAvailable, MaxWorkload: 3,
		Latitude: 40.0, Longitude: -74.0,
		LocationUpdatedAt: now.Add(-time.Hour),
	}
	if b := s.Score(stale, req, now); b.Proximity != 0 {
		t.Errorf("stale fix proximity = %v, want 0", b.Proximity)
	}

	missing := stale
	missing.LocationUpdatedAt = time.Time{}
	if b := s.Score(missing, req, now); b.Proximity != 0 {
		t.Errorf("missing fix proximity = %v, want 0", b.Proximity)
	}

	fresh := stale
	fresh.LocationUpdatedAt = now.Add(-time.Minute)
	if b := s.Score(fresh, req, now); b.Proximity != 100 {
		t.Errorf("fresh co-located proximity = %v, want 100", b.Proximity)
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name string
		d    model.DriverSnapshot
		want bool
	}{
		{"available with headroom", model.DriverSnapshot{Status: model.DriverAvailable, CurrentWorkload: 1, MaxWorkload: 3}, true},
		{"at capacity", model.DriverSnapshot{Status: model.DriverAvailable, CurrentWorkload: 3, MaxWorkload: 3}, false},
		{"busy", model.DriverSnapshot{Status: model.DriverBusy, CurrentWorkload: 0, MaxWorkload: 3}, false},
		{"offline", model.DriverSnapshot{Status: model.DriverOffline, CurrentWorkload: 0, MaxWorkload: 3}, false},
		{"on break", model.DriverSnapshot{Status: model.DriverOnBreak, CurrentWorkload: 0, MaxWorkload: 3}, false},
		{"zero max workload", model.DriverSnapshot{Status: model.DriverAvailable, CurrentWorkload: 0, MaxWorkload: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(tc.d); got != tc.want {
				t.Fatalf("Eligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScore_ProximityBeatsRating(t *testing.T) {
	// Driver A: 0.5 km away, rating 4.0, idle. Driver B: 10 km away,
	// rating 5.0, idle. With default weights A must rank first.
	now := time.Now()
	s := NewScorer()
	req := model.ServiceRequestSnapshot{ID: 1, Latitude: 40.0, Longitude: -74.0}
	a := model.DriverSnapshot{
		ID: 1, Status: model.DriverAvailable, Rating: 4.0, MaxWorkload: 3,
		Latitude: 40.0045, Longitude: -74.0, LocationUpdatedAt: now,
	}
	b := model.DriverSnapshot{
		ID: 2, Status: model.DriverAvailable, Rating: 5.0, MaxWorkload: 3,
		Latitude: 40.09, Longitude: -74.0, LocationUpdatedAt: now,
	}
	sa := s.Score(a, req, now)
	sb := s.Score(b, req, now)
	if sa.Total <= sb.Total {
		t.Fatalf("expected near driver to win: A=%v B=%v", sa.Total, sb.Total)
	}
}

func TestLess_TieBreaks(t *testing.T) {
	a := model.DriverSnapshot{ID: 2, CurrentWorkload: 1, Rating: 4}
	b := model.DriverSnapshot{ID: 1, CurrentWorkload: 2, Rating: 5}

	if !Less(a, b, 80, 80) {
		t.Error("equal totals: lower workload should win")
	}
	b.CurrentWorkload = 1
	if !Less(b, a, 80, 80) {
		t.Error("equal workload: higher rating should win")
	}
	b.Rating = 4
	if !Less(b, a, 80, 80) {
		t.Error("all equal: lower id should win")
	}
	if Less(a, b, 70, 80) {
		t.Error("higher total must always win")
	}
}
