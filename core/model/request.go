package model

// RequestStatus describes the lifecycle state of a service request.
type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestAssigned
	RequestInProgress
	RequestCompleted
	RequestCancelled
)

// String returns a human-readable representation of the request status.
func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestAssigned:
		return "assigned"
	case RequestInProgress:
		return "in_progress"
	case RequestCompleted:
		return "completed"
	case RequestCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseRequestStatus converts a storage representation into a RequestStatus.
func ParseRequestStatus(s string) RequestStatus {
	switch s {
	case "pending":
		return RequestPending
	case "assigned":
		return RequestAssigned
	case "in_progress":
		return RequestInProgress
	case "completed":
		return RequestCompleted
	case "cancelled":
		return RequestCancelled
	default:
		return RequestCancelled
	}
}

// Priority orders dispatch attempts. Higher values are served first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParsePriority converts a storage representation into a Priority.
// Unknown values map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "normal":
		return PriorityNormal
	case "high":
		return PriorityHigh
	case "emergency":
		return PriorityEmergency
	default:
		return PriorityNormal
	}
}

// ServiceRequestSnapshot is a point-in-time view of a service request as
// read from the request directory. The dispatch core never creates or
// deletes requests, it only triggers status transitions through the
// directory.
type ServiceRequestSnapshot struct {
	ID            int64
	Status        RequestStatus
	Priority      Priority
	Latitude      float64
	Longitude     float64
	ServiceTypeID int64
	CustomerID    int64
}

// Dispatchable reports whether the request can still be assigned.
func (r ServiceRequestSnapshot) Dispatchable() bool {
	return r.Status == RequestPending
}
