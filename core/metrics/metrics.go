// Package metrics defines the observability sink interfaces used by the
// dispatch core. Implementations live under infra/metrics.
package metrics

import (
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
	"github.com/GenuineDickies/pat-sub001/core/score"
)

// DispatchMethod distinguishes automated from operator-chosen assignments.
type DispatchMethod string

const (
	MethodAutomated DispatchMethod = "automated"
	MethodManual    DispatchMethod = "manual"
)

// DispatchRecord represents one resolved dispatch attempt to be recorded.
type DispatchRecord struct {
	RequestID int64
	DriverID  int64
	Method    DispatchMethod
	Priority  model.Priority
	// Breakdown is zero-valued for manual dispatches, which skip scoring.
	Breakdown score.Breakdown
	Succeeded bool
	Time      time.Time
}

// Recorder records dispatch outcomes for observability purposes.
type Recorder interface {
	RecordDispatch(rec DispatchRecord) error
}

// QueueDepthRecord is a snapshot of queue occupancy.
type QueueDepthRecord struct {
	Pending    int
	Processing int
	Emergency  int
	Time       time.Time
}

// QueueDepthRecorder is implemented by sinks able to record queue depth.
type QueueDepthRecorder interface {
	RecordQueueDepth(rec QueueDepthRecord) error
}

// ReclaimRecord captures one reclaimed stuck entry.
type ReclaimRecord struct {
	EntryID   string
	RequestID int64
	Requeued  bool
	Time      time.Time
}

// ReclaimRecorder is implemented by sinks able to record lease reclaims.
type ReclaimRecorder interface {
	RecordReclaim(rec ReclaimRecord) error
}

// NopRecorder implements all recorder interfaces with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordDispatch(DispatchRecord) error     { return nil }
func (NopRecorder) RecordQueueDepth(QueueDepthRecord) error { return nil }
func (NopRecorder) RecordReclaim(ReclaimRecord) error       { return nil }
