package dispatch

import (
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

// EnqueuedEvent is published when a request enters the dispatch queue or
// has its priority updated in place.
type EnqueuedEvent struct {
	EntryID   string
	RequestID int64
	Priority  model.Priority
	Time      time.Time
}

// DispatchedEvent is published after a successful assignment commit.
type DispatchedEvent struct {
	EntryID   string
	RequestID int64
	DriverID  int64
	Automated bool
	Score     float64
	Time      time.Time
}

// FailedEvent is published when a dispatch attempt resolves in failure.
type FailedEvent struct {
	EntryID   string
	RequestID int64
	Reason    string
	Time      time.Time
}

// ReclaimedEvent is published for each processing entry whose lease
// expired and was swept back.
type ReclaimedEvent struct {
	EntryID   string
	RequestID int64
	Requeued  bool
	Time      time.Time
}
