package metrics

import coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"

// MultiRecorder fans records out to multiple recorders.
type MultiRecorder struct {
	Recorders []coremetrics.Recorder
}

// NewMultiRecorder creates a MultiRecorder with the provided recorders.
func NewMultiRecorder(recorders ...coremetrics.Recorder) *MultiRecorder {
	return &MultiRecorder{Recorders: recorders}
}

// RecordDispatch forwards the record to all recorders, returning the
// first error encountered.
func (m *MultiRecorder) RecordDispatch(rec coremetrics.DispatchRecord) error {
	for _, r := range m.Recorders {
		if err := r.RecordDispatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordQueueDepth forwards occupancy snapshots to recorders that
// support them.
func (m *MultiRecorder) RecordQueueDepth(rec coremetrics.QueueDepthRecord) error {
	for _, r := range m.Recorders {
		if qr, ok := r.(coremetrics.QueueDepthRecorder); ok {
			if err := qr.RecordQueueDepth(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordReclaim forwards reclaim events to recorders that support them.
func (m *MultiRecorder) RecordReclaim(rec coremetrics.ReclaimRecord) error {
	for _, r := range m.Recorders {
		if rr, ok := r.(coremetrics.ReclaimRecorder); ok {
			if err := rr.RecordReclaim(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
