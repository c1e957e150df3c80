package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

// ErrNotFound is returned when a referenced request or driver does not
// exist in its directory.
var ErrNotFound = errors.New("dispatch: not found")

// Proximity narrows a driver listing to a radius around a point.
type Proximity struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// RequestDirectory is the read/transition interface over service
// requests, owned by the surrounding platform.
type RequestDirectory interface {
	// GetRequest returns the current snapshot or ErrNotFound.
	GetRequest(ctx context.Context, id int64) (model.ServiceRequestSnapshot, error)

	// AssignIfPending atomically moves the request from pending to
	// assigned with the given driver. It returns false without error if
	// the request is no longer pending, which is the expected outcome of
	// a lost race rather than a failure.
	AssignIfPending(ctx context.Context, id, driverID int64) (bool, error)

	// SetRequestStatus unconditionally sets the request status.
	SetRequestStatus(ctx context.Context, id int64, status model.RequestStatus, driverID int64) error

	// SetRequestPriority updates the request priority.
	SetRequestPriority(ctx context.Context, id int64, priority model.Priority) error
}

// DriverDirectory is the read/transition interface over drivers.
type DriverDirectory interface {
	// ListAvailableDrivers returns drivers with status available,
	// optionally pre-filtered to a radius around a point. The caller
	// still applies the full eligibility filter.
	ListAvailableDrivers(ctx context.Context, near *Proximity) ([]model.DriverSnapshot, error)

	// GetDriver returns the current snapshot or ErrNotFound.
	GetDriver(ctx context.Context, id int64) (model.DriverSnapshot, error)

	// ReserveWorkloadSlot atomically increments the driver's current
	// workload if and only if it stays within MaxWorkload and the driver
	// is available. It returns false when no headroom is left, so two
	// racing dispatches can never push a driver over capacity.
	ReserveWorkloadSlot(ctx context.Context, id int64) (bool, error)

	// ReleaseWorkloadSlot undoes a reservation that did not lead to an
	// assignment.
	ReleaseWorkloadSlot(ctx context.Context, id int64) error

	// SetDriverStatus updates the driver's duty status.
	SetDriverStatus(ctx context.Context, id int64, status model.DriverStatus) error
}

// HistoryRecord is one row of the dispatch audit trail, owned by an
// external collaborator.
type HistoryRecord struct {
	RequestID int64
	DriverID  int64
	Method    string // "automated" or "manual"
	// Score is nil for manual dispatches, which skip scoring.
	Score        *float64
	DispatchedAt time.Time
}

// HistorySink appends resolved dispatches to the audit trail.
type HistorySink interface {
	RecordDispatch(ctx context.Context, rec HistoryRecord) error
}

// Notifier delivers fire-and-forget assignment notifications to the
// driver's linked user account.
type Notifier interface {
	NotifyDriverAssigned(ctx context.Context, userID, requestID int64, summary string) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyDriverAssigned(context.Context, int64, int64, string) error { return nil }
