package metrics

import (
	"testing"

	coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"
)

type countingRecorder struct {
	count int
}

func (r *countingRecorder) RecordDispatch(coremetrics.DispatchRecord) error {
	r.count++
	return nil
}

func (r *countingRecorder) RecordQueueDepth(coremetrics.QueueDepthRecord) error {
	r.count++
	return nil
}

type dispatchOnlyRecorder struct {
	count int
}

func (r *dispatchOnlyRecorder) RecordDispatch(coremetrics.DispatchRecord) error {
	r.count++
	return nil
}

func TestMultiRecorder(t *testing.T) {
	r1 := &countingRecorder{}
	r2 := &countingRecorder{}
	m := NewMultiRecorder(r1, r2)
	if err := m.RecordDispatch(coremetrics.DispatchRecord{}); err != nil {
		t.Fatalf("record dispatch: %v", err)
	}
	if err := m.RecordQueueDepth(coremetrics.QueueDepthRecord{}); err != nil {
		t.Fatalf("record queue depth: %v", err)
	}
	if r1.count != 2 || r2.count != 2 {
		t.Fatalf("records not forwarded: %d, %d", r1.count, r2.count)
	}
}

func TestMultiRecorder_SkipsUnsupported(t *testing.T) {
	r := &dispatchOnlyRecorder{}
	m := NewMultiRecorder(r)
	if err := m.RecordQueueDepth(coremetrics.QueueDepthRecord{}); err != nil {
		t.Fatalf("record queue depth: %v", err)
	}
	if err := m.RecordReclaim(coremetrics.ReclaimRecord{}); err != nil {
		t.Fatalf("record reclaim: %v", err)
	}
	if r.count != 0 {
		t.Fatalf("unsupported records forwarded: %d", r.count)
	}
}
