package model

import "time"

// DriverStatus describes a driver's current duty state.
type DriverStatus int

const (
	DriverAvailable DriverStatus = iota
	DriverBusy
	DriverOffline
	DriverOnBreak
)

// String returns a human-readable representation of the driver status.
func (s DriverStatus) String() string {
	switch s {
	case DriverAvailable:
		return "available"
	case DriverBusy:
		return "busy"
	case DriverOffline:
		return "offline"
	case DriverOnBreak:
		return "on_break"
	default:
		return "unknown"
	}
}

// ParseDriverStatus converts a storage representation into a DriverStatus.
func ParseDriverStatus(s string) DriverStatus {
	switch s {
	case "available":
		return DriverAvailable
	case "busy":
		return DriverBusy
	case "offline":
		return DriverOffline
	case "on_break":
		return DriverOnBreak
	default:
		return DriverOffline
	}
}

// DriverSnapshot is a point-in-time view of a driver as read from the
// driver directory. It can become stale between selection and commit, so
// the dispatch algorithm re-checks the directory before assigning.
type DriverSnapshot struct {
	ID     int64
	Status DriverStatus

	// Rating is the average customer rating between 0 and 5. Values at or
	// below zero mean the driver has not been rated yet and are scored at
	// a neutral midpoint rather than the floor.
	Rating float64

	ActiveRequests  int
	CurrentWorkload int
	MaxWorkload     int

	Latitude          float64
	Longitude         float64
	LocationUpdatedAt time.Time

	// UserID routes assignment notifications. Zero when the driver has no
	// linked account.
	UserID int64
}

// HasLocationFix reports whether the driver has a location update no older
// than the given freshness window at time now.
func (d DriverSnapshot) HasLocationFix(now time.Time, freshness time.Duration) bool {
	if d.LocationUpdatedAt.IsZero() {
		return false
	}
	if freshness <= 0 {
		return true
	}
	return now.Sub(d.LocationUpdatedAt) <= freshness
}

// HasWorkloadHeadroom reports whether the driver can take one more request.
func (d DriverSnapshot) HasWorkloadHeadroom() bool {
	return d.MaxWorkload > 0 && d.CurrentWorkload < d.MaxWorkload
}
