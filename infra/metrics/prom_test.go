package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"
	"github.com/GenuineDickies/pat-sub001/core/model"
	"github.com/GenuineDickies/pat-sub001/core/score"
)

func TestPromRecorder_RecordDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorderWithRegistry(reg)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}
	if err := rec.RecordDispatch(coremetrics.DispatchRecord{
		RequestID: 1,
		DriverID:  10,
		Method:    coremetrics.MethodAutomated,
		Priority:  model.PriorityEmergency,
		Breakdown: score.Breakdown{Total: 87.5},
		Succeeded: true,
		Time:      time.Now(),
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP dispatch_outcomes_total Dispatch outcomes by method, priority and success
# TYPE dispatch_outcomes_total counter
dispatch_outcomes_total{method="automated",priority="emergency",succeeded="true"} 1
`
	if err := testutil.CollectAndCompare(rec.outcomes, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(rec.scores); c == 0 {
		t.Errorf("score not observed")
	}
}

func TestPromRecorder_QueueDepthAndReclaim(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorderWithRegistry(reg)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}
	if err := rec.RecordQueueDepth(coremetrics.QueueDepthRecord{Pending: 3, Processing: 1, Emergency: 2}); err != nil {
		t.Fatalf("queue depth error: %v", err)
	}
	expected := `
# HELP dispatch_queue_occupancy Queue occupancy snapshot by state
# TYPE dispatch_queue_occupancy gauge
dispatch_queue_occupancy{state="emergency"} 2
dispatch_queue_occupancy{state="pending"} 3
dispatch_queue_occupancy{state="processing"} 1
`
	if err := testutil.CollectAndCompare(rec.queue, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected gauges: %v", err)
	}

	if err := rec.RecordReclaim(coremetrics.ReclaimRecord{EntryID: "e1"}); err != nil {
		t.Fatalf("reclaim error: %v", err)
	}
	if got := testutil.ToFloat64(rec.reclaimed); got != 1 {
		t.Errorf("reclaimed counter = %v, want 1", got)
	}
}

func TestPromRecorder_RepeatedRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromRecorderWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromRecorderWithRegistry(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}
