// Package queue maintains the ordered set of pending dispatch attempts.
// Entries move through a strict state machine
// (pending -> processing -> dispatched|failed) guarded by atomic
// conditional transitions, which is what protects concurrent dispatch
// workers from claiming the same request twice.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

// State is the lifecycle state of a queue entry.
type State int

const (
	StatePending State = iota
	StateProcessing
	StateDispatched
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateDispatched:
		return "dispatched"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseState converts a storage representation into a State.
func ParseState(s string) State {
	switch s {
	case "pending":
		return StatePending
	case "processing":
		return StateProcessing
	case "dispatched":
		return StateDispatched
	case "failed":
		return StateFailed
	default:
		return StateFailed
	}
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateDispatched || s == StateFailed
}

// Entry represents one pending-or-resolved dispatch attempt. At most one
// non-terminal entry exists per request.
type Entry struct {
	ID               string
	RequestID        int64
	Priority         model.Priority
	State            State
	EnqueuedAt       time.Time
	ClaimedAt        time.Time
	ResolvedAt       time.Time
	AssignedDriverID int64
	FailureReason    string
}

// Stats aggregates queue counts for dashboard display. Terminal states
// are counted for the calendar day of the query.
type Stats struct {
	Pending           int `json:"pending"`
	Processing        int `json:"processing"`
	DispatchedToday   int `json:"dispatched_today"`
	FailedToday       int `json:"failed_today"`
	EmergencyRequests int `json:"emergency_requests"`
}

// ErrNotFound is returned when an entry or request has no active entry.
var ErrNotFound = errors.New("queue: entry not found")

// InvalidStateError signals a state transition attempted from a state
// that does not permit it. It always indicates a racing or buggy caller
// and is never swallowed by the queue.
type InvalidStateError struct {
	EntryID string
	From    State
	To      State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("queue: entry %s cannot move %s -> %s", e.EntryID, e.From, e.To)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// Store persists dispatch queue entries. Implementations must perform
// state transitions as atomic conditional updates (compare-and-swap on
// state) so the same guarantees hold for an in-memory map and a
// relational table.
type Store interface {
	// Enqueue creates a pending entry for the request, or updates the
	// priority of an existing active entry in place. It returns the
	// active entry.
	Enqueue(ctx context.Context, requestID int64, priority model.Priority) (Entry, error)

	// Pending returns up to limit pending entries in priority order,
	// FIFO within equal priorities. Read-only.
	Pending(ctx context.Context, limit int) ([]Entry, error)

	// Next peeks at the highest-priority pending entry without claiming
	// it. It returns nil when the queue is empty.
	Next(ctx context.Context) (*Entry, error)

	// MarkProcessing transitions pending -> processing. Exactly one of
	// any number of concurrent callers succeeds; the rest receive an
	// InvalidStateError.
	MarkProcessing(ctx context.Context, entryID string) error

	// MarkDispatched transitions processing -> dispatched and records
	// the assigned driver.
	MarkDispatched(ctx context.Context, entryID string, driverID int64) error

	// MarkFailed transitions processing -> failed with a human-readable
	// reason. Failed entries can be re-enqueued later.
	MarkFailed(ctx context.Context, entryID, reason string) error

	// RemoveRequest removes any active entry for the request, e.g. when
	// a manual dispatch bypasses the queue.
	RemoveRequest(ctx context.Context, requestID int64) error

	// Stats returns queue counts as of now.
	Stats(ctx context.Context, now time.Time) (Stats, error)

	// ReclaimStale fails processing entries claimed before cutoff and,
	// when requeue is true, re-enqueues them at their original priority.
	// It returns the reclaimed entries.
	ReclaimStale(ctx context.Context, cutoff time.Time, requeue bool) ([]Entry, error)
}

// Before orders two entries for retrieval: higher priority first, then
// earlier enqueue time, then ID for a stable total order.
func Before(a, b Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.ID < b.ID
}
