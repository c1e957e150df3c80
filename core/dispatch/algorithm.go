package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
	"github.com/GenuineDickies/pat-sub001/core/score"
	"github.com/GenuineDickies/pat-sub001/infra/logger"
)

// Candidate pairs a driver with its score breakdown for one request.
type Candidate struct {
	Driver    model.DriverSnapshot
	Breakdown score.Breakdown
}

// Algorithm selects the best-scoring eligible driver for a request and
// performs the assignment commit. All collaborators are injected; the
// algorithm holds no hidden global state.
type Algorithm struct {
	requests RequestDirectory
	drivers  DriverDirectory
	history  HistorySink
	scorer   score.Scorer
	log      logger.Logger
	now      func() time.Time

	// RadiusPrefilter asks the driver directory to narrow the candidate
	// listing to the scorer's useful radius. Scoring still applies the
	// full proximity falloff.
	RadiusPrefilter bool
}

// NewAlgorithm creates an Algorithm. The scorer's weights are validated
// here so an invalid weight set is rejected at construction time rather
// than silently producing out-of-range scores.
func NewAlgorithm(requests RequestDirectory, drivers DriverDirectory, history HistorySink, scorer score.Scorer, log logger.Logger) (*Algorithm, error) {
	if requests == nil || drivers == nil || history == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewAlgorithm")
	}
	if err := scorer.Weights.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Algorithm{
		requests: requests,
		drivers:  drivers,
		history:  history,
		scorer:   scorer,
		log:      log,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (a *Algorithm) SetClock(now func() time.Time) { a.now = now }

// CalculateDriverScore exposes the scorer for ad-hoc what-if displays.
func (a *Algorithm) CalculateDriverScore(d model.DriverSnapshot, r model.ServiceRequestSnapshot) score.Breakdown {
	return a.scorer.Score(d, r, a.now())
}

// RankDrivers returns every eligible candidate for the request ordered
// best first. Pure decision function, mutates nothing.
func (a *Algorithm) RankDrivers(ctx context.Context, requestID int64) ([]Candidate, error) {
	req, err := a.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var near *Proximity
	if a.RadiusPrefilter && a.scorer.MaxRadiusKm > 0 {
		near = &Proximity{Latitude: req.Latitude, Longitude: req.Longitude, RadiusKm: a.scorer.MaxRadiusKm}
	}
	drivers, err := a.drivers.ListAvailableDrivers(ctx, near)
	if err != nil {
		return nil, err
	}

	now := a.now()
	var cands []Candidate
	for _, d := range drivers {
		if !score.Eligible(d) {
			continue
		}
		cands = append(cands, Candidate{Driver: d, Breakdown: a.scorer.Score(d, req, now)})
	}
	candidatesEvaluated.Observe(float64(len(cands)))
	sort.Slice(cands, func(i, j int) bool {
		return score.Less(cands[i].Driver, cands[j].Driver, cands[i].Breakdown.Total, cands[j].Breakdown.Total)
	})
	return cands, nil
}

// FindBestDriver returns the top-ranked candidate for the request, or
// nil when no eligible driver exists. An empty candidate set is an
// expected outcome, not an error.
func (a *Algorithm) FindBestDriver(ctx context.Context, requestID int64) (*Candidate, error) {
	cands, err := a.RankDrivers(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}
	best := cands[0]
	return &best, nil
}

// Dispatch assigns the driver to the request. Both snapshots are
// re-checked first because time may have passed since selection, and the
// commit itself is a pair of atomic conditional updates with
// compensation, so a lost race can never leave a half-applied state.
// A false return means the pre-conditions failed at commit time; the
// caller decides whether to retry or surface it.
func (a *Algorithm) Dispatch(ctx context.Context, requestID, driverID int64, automated bool) (bool, error) {
	req, err := a.requests.GetRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	if !req.Dispatchable() {
		a.log.Debugf("request %d no longer pending (%s)", requestID, req.Status)
		return false, nil
	}
	drv, err := a.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return false, err
	}
	if !score.Eligible(drv) {
		a.log.Debugf("driver %d no longer a candidate (%s, workload %d/%d)",
			driverID, drv.Status, drv.CurrentWorkload, drv.MaxWorkload)
		return false, nil
	}

	var scorePtr *float64
	if automated {
		total := a.scorer.Score(drv, req, a.now()).Total
		scorePtr = &total
	}

	reserved, err := a.drivers.ReserveWorkloadSlot(ctx, driverID)
	if err != nil {
		return false, err
	}
	if !reserved {
		return false, nil
	}
	assigned, err := a.requests.AssignIfPending(ctx, requestID, driverID)
	if err != nil || !assigned {
		if relErr := a.drivers.ReleaseWorkloadSlot(ctx, driverID); relErr != nil {
			a.log.Errorf("release workload slot for driver %d: %v", driverID, relErr)
		}
		return false, err
	}

	method := "manual"
	if automated {
		method = "automated"
	}
	rec := HistoryRecord{
		RequestID:    requestID,
		DriverID:     driverID,
		Method:       method,
		Score:        scorePtr,
		DispatchedAt: a.now(),
	}
	// The assignment stands even if the audit append fails; history is an
	// external best-effort sink.
	if err := a.history.RecordDispatch(ctx, rec); err != nil {
		a.log.Errorf("history record for request %d: %v", requestID, err)
	}
	if scorePtr != nil {
		dispatchScore.Observe(*scorePtr)
	}
	a.log.Infof("request %d assigned to driver %d (%s)", requestID, driverID, method)
	return true, nil
}
