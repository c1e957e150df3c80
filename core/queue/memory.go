package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. All transitions happen under one mutex, which gives the
// same compare-and-swap semantics as the conditional UPDATEs of the
// relational store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// active maps requestID to the ID of its non-terminal entry.
	active map[int64]string
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		active:  make(map[int64]string),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Enqueue(_ context.Context, requestID int64, priority model.Priority) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.active[requestID]; ok {
		e := s.entries[id]
		e.Priority = priority
		return *e, nil
	}
	e := &Entry{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		Priority:   priority,
		State:      StatePending,
		EnqueuedAt: s.now(),
	}
	s.entries[e.ID] = e
	s.active[requestID] = e.ID
	return *e, nil
}

func (s *MemoryStore) Pending(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.State == StatePending {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return Before(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Next(ctx context.Context) (*Entry, error) {
	pending, err := s.Pending(ctx, 1)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	e := pending[0]
	return &e, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StatePending {
		return &InvalidStateError{EntryID: entryID, From: e.State, To: StateProcessing}
	}
	e.State = StateProcessing
	e.ClaimedAt = s.now()
	return nil
}

func (s *MemoryStore) MarkDispatched(_ context.Context, entryID string, driverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateProcessing {
		return &InvalidStateError{EntryID: entryID, From: e.State, To: StateDispatched}
	}
	e.State = StateDispatched
	e.AssignedDriverID = driverID
	e.ResolvedAt = s.now()
	delete(s.active, e.RequestID)
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, entryID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateProcessing {
		return &InvalidStateError{EntryID: entryID, From: e.State, To: StateFailed}
	}
	e.State = StateFailed
	e.FailureReason = reason
	e.ResolvedAt = s.now()
	delete(s.active, e.RequestID)
	return nil
}

func (s *MemoryStore) RemoveRequest(_ context.Context, requestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[requestID]
	if !ok {
		return nil
	}
	delete(s.entries, id)
	delete(s.active, requestID)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, e := range s.entries {
		switch e.State {
		case StatePending:
			st.Pending++
			if e.Priority == model.PriorityEmergency {
				st.EmergencyRequests++
			}
		case StateProcessing:
			st.Processing++
		case StateDispatched:
			if sameDay(e.ResolvedAt, now) {
				st.DispatchedToday++
			}
		case StateFailed:
			if sameDay(e.ResolvedAt, now) {
				st.FailedToday++
			}
		}
	}
	return st, nil
}

func (s *MemoryStore) ReclaimStale(_ context.Context, cutoff time.Time, requeue bool) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reclaimed []Entry
	for _, e := range s.entries {
		if e.State != StateProcessing || !e.ClaimedAt.Before(cutoff) {
			continue
		}
		e.State = StateFailed
		e.FailureReason = "processing lease expired"
		e.ResolvedAt = s.now()
		delete(s.active, e.RequestID)
		reclaimed = append(reclaimed, *e)
		if requeue {
			fresh := &Entry{
				ID:         uuid.NewString(),
				RequestID:  e.RequestID,
				Priority:   e.Priority,
				State:      StatePending,
				EnqueuedAt: s.now(),
			}
			s.entries[fresh.ID] = fresh
			s.active[fresh.RequestID] = fresh.ID
		}
	}
	return reclaimed, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
