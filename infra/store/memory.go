// Package store provides the storage backends for the dispatch core: an
// in-memory implementation for tests and single-process use, and a
// Postgres implementation for the production deployment.
package store

import (
	"context"
	"sync"

	"github.com/GenuineDickies/pat-sub001/core/dispatch"
	"github.com/GenuineDickies/pat-sub001/core/geo"
	"github.com/GenuineDickies/pat-sub001/core/model"
)

// MemoryRequestDirectory is an in-memory dispatch.RequestDirectory.
type MemoryRequestDirectory struct {
	mu       sync.RWMutex
	requests map[int64]model.ServiceRequestSnapshot
}

// NewMemoryRequestDirectory returns an empty directory.
func NewMemoryRequestDirectory() *MemoryRequestDirectory {
	return &MemoryRequestDirectory{requests: make(map[int64]model.ServiceRequestSnapshot)}
}

// Put inserts or replaces a request snapshot.
func (d *MemoryRequestDirectory) Put(r model.ServiceRequestSnapshot) {
	d.mu.Lock()
	d.requests[r.ID] = r
	d.mu.Unlock()
}

func (d *MemoryRequestDirectory) GetRequest(_ context.Context, id int64) (model.ServiceRequestSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.requests[id]
	if !ok {
		return model.ServiceRequestSnapshot{}, dispatch.ErrNotFound
	}
	return r, nil
}

func (d *MemoryRequestDirectory) AssignIfPending(_ context.Context, id, _ int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.requests[id]
	if !ok {
		return false, dispatch.ErrNotFound
	}
	if r.Status != model.RequestPending {
		return false, nil
	}
	r.Status = model.RequestAssigned
	d.requests[id] = r
	return true, nil
}

func (d *MemoryRequestDirectory) SetRequestStatus(_ context.Context, id int64, status model.RequestStatus, _ int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.requests[id]
	if !ok {
		return dispatch.ErrNotFound
	}
	r.Status = status
	d.requests[id] = r
	return nil
}

func (d *MemoryRequestDirectory) SetRequestPriority(_ context.Context, id int64, priority model.Priority) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.requests[id]
	if !ok {
		return dispatch.ErrNotFound
	}
	r.Priority = priority
	d.requests[id] = r
	return nil
}

// MemoryDriverDirectory is an in-memory dispatch.DriverDirectory.
type MemoryDriverDirectory struct {
	mu      sync.RWMutex
	drivers map[int64]model.DriverSnapshot
}

// NewMemoryDriverDirectory returns an empty directory.
func NewMemoryDriverDirectory() *MemoryDriverDirectory {
	return &MemoryDriverDirectory{drivers: make(map[int64]model.DriverSnapshot)}
}

// Put inserts or replaces a driver snapshot.
func (d *MemoryDriverDirectory) Put(drv model.DriverSnapshot) {
	d.mu.Lock()
	d.drivers[drv.ID] = drv
	d.mu.Unlock()
}

func (d *MemoryDriverDirectory) ListAvailableDrivers(_ context.Context, near *dispatch.Proximity) ([]model.DriverSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.DriverSnapshot
	for _, drv := range d.drivers {
		if drv.Status != model.DriverAvailable {
			continue
		}
		if near != nil {
			dist := geo.Distance(drv.Latitude, drv.Longitude, near.Latitude, near.Longitude)
			if dist > near.RadiusKm {
				continue
			}
		}
		out = append(out, drv)
	}
	return out, nil
}

func (d *MemoryDriverDirectory) GetDriver(_ context.Context, id int64) (model.DriverSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	drv, ok := d.drivers[id]
	if !ok {
		return model.DriverSnapshot{}, dispatch.ErrNotFound
	}
	return drv, nil
}

func (d *MemoryDriverDirectory) ReserveWorkloadSlot(_ context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	drv, ok := d.drivers[id]
	if !ok {
		return false, dispatch.ErrNotFound
	}
	if drv.Status != model.DriverAvailable || !drv.HasWorkloadHeadroom() {
		return false, nil
	}
	drv.CurrentWorkload++
	drv.ActiveRequests++
	d.drivers[id] = drv
	return true, nil
}

func (d *MemoryDriverDirectory) ReleaseWorkloadSlot(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	drv, ok := d.drivers[id]
	if !ok {
		return dispatch.ErrNotFound
	}
	if drv.CurrentWorkload > 0 {
		drv.CurrentWorkload--
	}
	if drv.ActiveRequests > 0 {
		drv.ActiveRequests--
	}
	d.drivers[id] = drv
	return nil
}

func (d *MemoryDriverDirectory) SetDriverStatus(_ context.Context, id int64, status model.DriverStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	drv, ok := d.drivers[id]
	if !ok {
		return dispatch.ErrNotFound
	}
	drv.Status = status
	d.drivers[id] = drv
	return nil
}

// MemoryHistory collects dispatch history records in memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []dispatch.HistoryRecord
}

// NewMemoryHistory returns an empty history sink.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) RecordDispatch(_ context.Context, rec dispatch.HistoryRecord) error {
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

// Records returns a copy of all recorded dispatches.
func (h *MemoryHistory) Records() []dispatch.HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]dispatch.HistoryRecord, len(h.records))
	copy(out, h.records)
	return out
}
