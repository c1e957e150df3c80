package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/metrics"
	"github.com/GenuineDickies/pat-sub001/core/model"
	"github.com/GenuineDickies/pat-sub001/core/queue"
	"github.com/GenuineDickies/pat-sub001/infra/logger"
	"github.com/GenuineDickies/pat-sub001/internal/eventbus"
)

// Outcome summarizes one resolved auto or emergency dispatch attempt.
type Outcome struct {
	Entry      queue.Entry
	Candidate  *Candidate
	Dispatched bool
	// Queued is true when an emergency attempt found no candidate and the
	// entry was left at the head of the queue.
	Queued bool
	Reason string
}

// Controller ties the queue and the algorithm together for the three
// dispatch modes and runs the periodic worker loop. Retry policy lives
// here, not in the algorithm: failed auto attempts are left failed for
// operator inspection, manual failures go straight back to the caller.
type Controller struct {
	store    queue.Store
	algo     *Algorithm
	requests RequestDirectory
	notifier Notifier
	recorder metrics.Recorder
	bus      eventbus.EventBus
	log      logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewController creates a Controller. The notifier, recorder and bus may
// be nil; they degrade to no-ops.
func NewController(store queue.Store, algo *Algorithm, requests RequestDirectory, notifier Notifier, recorder metrics.Recorder, bus eventbus.EventBus, log logger.Logger, cfg Config) (*Controller, error) {
	if store == nil || algo == nil || requests == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewController")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Controller{
		store:    store,
		algo:     algo,
		requests: requests,
		notifier: notifier,
		recorder: recorder,
		bus:      bus,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

func (c *Controller) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// Enqueue places a request on the dispatch queue after verifying it
// still exists and is pending. Re-enqueueing an already queued request
// updates its priority in place.
func (c *Controller) Enqueue(ctx context.Context, requestID int64, priority model.Priority) (queue.Entry, error) {
	req, err := c.requests.GetRequest(ctx, requestID)
	if err != nil {
		return queue.Entry{}, err
	}
	if !req.Dispatchable() {
		return queue.Entry{}, fmt.Errorf("dispatch: request %d is %s, not pending", requestID, req.Status)
	}
	entry, err := c.store.Enqueue(ctx, requestID, priority)
	if err != nil {
		return queue.Entry{}, err
	}
	c.publish(EnqueuedEvent{EntryID: entry.ID, RequestID: requestID, Priority: priority, Time: c.now()})
	c.log.Infof("request %d enqueued at %s", requestID, priority)
	return entry, nil
}

// AutoDispatchNext claims the highest-priority pending entry and
// attempts an automated dispatch. It returns nil when the queue is empty
// or another worker claimed the entry first.
func (c *Controller) AutoDispatchNext(ctx context.Context) (*Outcome, error) {
	next, err := c.store.Next(ctx)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}
	if err := c.store.MarkProcessing(ctx, next.ID); err != nil {
		if queue.IsInvalidState(err) {
			// Another worker won the claim; not an error.
			c.log.Debugf("entry %s already claimed", next.ID)
			return nil, nil
		}
		return nil, err
	}
	return c.resolveClaimed(ctx, *next, true)
}

// resolveClaimed runs selection and commit for an entry already in
// processing state and resolves it to dispatched or failed.
func (c *Controller) resolveClaimed(ctx context.Context, entry queue.Entry, automated bool) (*Outcome, error) {
	cand, err := c.algo.FindBestDriver(ctx, entry.RequestID)
	if err != nil {
		return c.fail(ctx, entry, fmt.Sprintf("candidate lookup failed: %v", err), err)
	}
	if cand == nil {
		return c.fail(ctx, entry, "no candidate available", nil)
	}

	ok, err := c.algo.Dispatch(ctx, entry.RequestID, cand.Driver.ID, automated)
	if err != nil {
		return c.fail(ctx, entry, fmt.Sprintf("dispatch failed: %v", err), err)
	}
	if !ok {
		return c.fail(ctx, entry, "request or driver state changed", nil)
	}

	if err := c.store.MarkDispatched(ctx, entry.ID, cand.Driver.ID); err != nil {
		// The assignment committed; a queue bookkeeping error must still
		// surface to the caller.
		return nil, err
	}
	dispatchesTotal.WithLabelValues(c.mode(automated), "dispatched").Inc()
	c.record(metrics.DispatchRecord{
		RequestID: entry.RequestID,
		DriverID:  cand.Driver.ID,
		Method:    c.method(automated),
		Priority:  entry.Priority,
		Breakdown: cand.Breakdown,
		Succeeded: true,
		Time:      c.now(),
	})
	c.publish(DispatchedEvent{
		EntryID:   entry.ID,
		RequestID: entry.RequestID,
		DriverID:  cand.Driver.ID,
		Automated: automated,
		Score:     cand.Breakdown.Total,
		Time:      c.now(),
	})
	c.notifyAssigned(ctx, cand.Driver, entry.RequestID)
	return &Outcome{Entry: entry, Candidate: cand, Dispatched: true}, nil
}

// fail resolves a claimed entry as failed with a human-readable reason.
// cause, when non-nil, is propagated after the entry is resolved.
func (c *Controller) fail(ctx context.Context, entry queue.Entry, reason string, cause error) (*Outcome, error) {
	if err := c.store.MarkFailed(ctx, entry.ID, reason); err != nil {
		return nil, err
	}
	dispatchesTotal.WithLabelValues("auto", "failed").Inc()
	c.publish(FailedEvent{EntryID: entry.ID, RequestID: entry.RequestID, Reason: reason, Time: c.now()})
	c.log.Warnf("dispatch for request %d failed: %s", entry.RequestID, reason)
	if cause != nil {
		return nil, cause
	}
	return &Outcome{Entry: entry, Reason: reason}, nil
}

// ManualDispatch assigns an operator-chosen driver, bypassing scoring.
// On success any queue entry for the request is removed; on a lost race
// the failure is surfaced immediately as an error for the operator.
func (c *Controller) ManualDispatch(ctx context.Context, requestID, driverID int64) error {
	ok, err := c.algo.Dispatch(ctx, requestID, driverID, false)
	if err != nil {
		return err
	}
	if !ok {
		dispatchesTotal.WithLabelValues("manual", "failed").Inc()
		return fmt.Errorf("dispatch: request %d or driver %d no longer available", requestID, driverID)
	}
	if err := c.store.RemoveRequest(ctx, requestID); err != nil {
		return err
	}
	dispatchesTotal.WithLabelValues("manual", "dispatched").Inc()
	c.record(metrics.DispatchRecord{
		RequestID: requestID,
		DriverID:  driverID,
		Method:    metrics.MethodManual,
		Succeeded: true,
		Time:      c.now(),
	})
	c.publish(DispatchedEvent{RequestID: requestID, DriverID: driverID, Time: c.now()})
	if drv, derr := c.algo.drivers.GetDriver(ctx, driverID); derr == nil {
		c.notifyAssigned(ctx, drv, requestID)
	}
	return nil
}

// EmergencyDispatch escalates the request to emergency priority, puts it
// at the head of the queue, and immediately attempts an automated
// dispatch inline rather than waiting for a worker cycle. When no
// candidate is available the entry stays queued at the head.
func (c *Controller) EmergencyDispatch(ctx context.Context, requestID int64) (*Outcome, error) {
	if err := c.requests.SetRequestPriority(ctx, requestID, model.PriorityEmergency); err != nil {
		return nil, err
	}
	entry, err := c.Enqueue(ctx, requestID, model.PriorityEmergency)
	if err != nil {
		return nil, err
	}

	cand, err := c.algo.FindBestDriver(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		c.log.Warnf("no candidate for emergency request %d, left queued", requestID)
		return &Outcome{Entry: entry, Queued: true, Reason: "no candidate available"}, nil
	}
	if err := c.store.MarkProcessing(ctx, entry.ID); err != nil {
		if queue.IsInvalidState(err) {
			// A concurrent worker picked it up already.
			return &Outcome{Entry: entry, Queued: true}, nil
		}
		return nil, err
	}
	return c.resolveClaimed(ctx, entry, true)
}

// ReclaimStale sweeps processing entries whose lease expired, marking
// them failed and optionally re-enqueueing at their original priority.
func (c *Controller) ReclaimStale(ctx context.Context) ([]queue.Entry, error) {
	cutoff := c.now().Add(-c.cfg.LeaseTimeout())
	reclaimed, err := c.store.ReclaimStale(ctx, cutoff, c.cfg.RequeueOnReclaim)
	if err != nil {
		return nil, err
	}
	for _, e := range reclaimed {
		reclaimedTotal.Inc()
		c.publish(ReclaimedEvent{EntryID: e.ID, RequestID: e.RequestID, Requeued: c.cfg.RequeueOnReclaim, Time: c.now()})
		if rr, ok := c.recorder.(metrics.ReclaimRecorder); ok {
			if err := rr.RecordReclaim(metrics.ReclaimRecord{
				EntryID:   e.ID,
				RequestID: e.RequestID,
				Requeued:  c.cfg.RequeueOnReclaim,
				Time:      c.now(),
			}); err != nil {
				c.log.Errorf("reclaim metrics: %v", err)
			}
		}
		c.log.Warnf("reclaimed stuck entry %s for request %d", e.ID, e.RequestID)
	}
	return reclaimed, nil
}

// Pending lists up to limit pending entries in dispatch order.
func (c *Controller) Pending(ctx context.Context, limit int) ([]queue.Entry, error) {
	return c.store.Pending(ctx, limit)
}

// Stats returns queue statistics and refreshes the depth gauges.
func (c *Controller) Stats(ctx context.Context) (queue.Stats, error) {
	st, err := c.store.Stats(ctx, c.now())
	if err != nil {
		return queue.Stats{}, err
	}
	queueDepth.WithLabelValues("pending").Set(float64(st.Pending))
	queueDepth.WithLabelValues("processing").Set(float64(st.Processing))
	if qr, ok := c.recorder.(metrics.QueueDepthRecorder); ok {
		if err := qr.RecordQueueDepth(metrics.QueueDepthRecord{
			Pending:    st.Pending,
			Processing: st.Processing,
			Emergency:  st.EmergencyRequests,
			Time:       c.now(),
		}); err != nil {
			c.log.Errorf("queue depth metrics: %v", err)
		}
	}
	return st, nil
}

// Run polls the queue until the context is canceled: each cycle reclaims
// expired leases, then drains pending entries through automated
// dispatch. Failed entries stay failed for operator inspection; no
// automatic retry happens here.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.ReclaimStale(ctx); err != nil {
				c.log.Errorf("reclaim sweep: %v", err)
			}
			c.drain(ctx)
			if _, err := c.Stats(ctx); err != nil {
				c.log.Errorf("queue stats: %v", err)
			}
		}
	}
}

// drain runs automated dispatch until the queue yields nothing more.
func (c *Controller) drain(ctx context.Context) {
	for {
		out, err := c.AutoDispatchNext(ctx)
		if err != nil {
			c.log.Errorf("auto dispatch: %v", err)
			return
		}
		if out == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Controller) record(rec metrics.DispatchRecord) {
	if err := c.recorder.RecordDispatch(rec); err != nil {
		c.log.Errorf("dispatch metrics: %v", err)
	}
}

func (c *Controller) notifyAssigned(ctx context.Context, drv model.DriverSnapshot, requestID int64) {
	if drv.UserID == 0 {
		return
	}
	summary := fmt.Sprintf("You have been assigned to service request #%d", requestID)
	if err := c.notifier.NotifyDriverAssigned(ctx, drv.UserID, requestID, summary); err != nil {
		// Fire-and-forget: a notification failure never fails a dispatch.
		c.log.Warnf("notify driver %d: %v", drv.ID, err)
	}
}

func (c *Controller) mode(automated bool) string {
	if automated {
		return "auto"
	}
	return "manual"
}

func (c *Controller) method(automated bool) metrics.DispatchMethod {
	if automated {
		return metrics.MethodAutomated
	}
	return metrics.MethodManual
}
