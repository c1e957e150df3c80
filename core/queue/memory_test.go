package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/model"
)

func TestEnqueue_IdempotentPerRequest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Enqueue(ctx, 42, model.PriorityNormal)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := s.Enqueue(ctx, 42, model.PriorityHigh)
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected in-place update, got new entry %s vs %s", second.ID, first.ID)
	}
	pending, _ := s.Pending(ctx, 0)
	if len(pending) != 1 {
		t.Fatalf("expected 1 active entry, got %d", len(pending))
	}
	if pending[0].Priority != model.PriorityHigh {
		t.Fatalf("expected priority updated to high, got %s", pending[0].Priority)
	}
}

func TestNext_PriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	// Enqueued normal-then-emergency; emergency must come out first.
	if _, err := s.Enqueue(ctx, 1, model.PriorityNormal); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enqueue(ctx, 2, model.PriorityEmergency); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enqueue(ctx, 3, model.PriorityNormal); err != nil {
		t.Fatal(err)
	}

	next, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next == nil || next.RequestID != 2 {
		t.Fatalf("expected emergency request 2 first, got %+v", next)
	}

	// Peek semantics: repeated calls do not mutate.
	again, _ := s.Next(ctx)
	if again == nil || again.ID != next.ID {
		t.Fatalf("Next must be side-effect free, got %+v", again)
	}

	pending, _ := s.Pending(ctx, 0)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	if pending[1].RequestID != 1 || pending[2].RequestID != 3 {
		t.Fatalf("expected FIFO within priority, got %d then %d", pending[1].RequestID, pending[2].RequestID)
	}
}

func TestNext_EmptyQueue(t *testing.T) {
	s := NewMemoryStore()
	next, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil on empty queue, got %+v", next)
	}
}

func TestStateMachine_Transitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e, _ := s.Enqueue(ctx, 1, model.PriorityNormal)

	// dispatched straight from pending must be rejected.
	if err := s.MarkDispatched(ctx, e.ID, 7); !IsInvalidState(err) {
		t.Fatalf("pending->dispatched: got %v, want InvalidStateError", err)
	}
	if err := s.MarkProcessing(ctx, e.ID); err != nil {
		t.Fatalf("pending->processing: %v", err)
	}
	if err := s.MarkProcessing(ctx, e.ID); !IsInvalidState(err) {
		t.Fatalf("processing->processing: got %v, want InvalidStateError", err)
	}
	if err := s.MarkDispatched(ctx, e.ID, 7); err != nil {
		t.Fatalf("processing->dispatched: %v", err)
	}
	// Terminal entries admit no transitions.
	if err := s.MarkFailed(ctx, e.ID, "late"); !IsInvalidState(err) {
		t.Fatalf("dispatched->failed: got %v, want InvalidStateError", err)
	}
	if err := s.MarkProcessing(ctx, "no-such-entry"); err != ErrNotFound {
		t.Fatalf("missing entry: got %v, want ErrNotFound", err)
	}
}

func TestMarkProcessing_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e, _ := s.Enqueue(ctx, 1, model.PriorityHigh)

	const workers = 32
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.MarkProcessing(ctx, e.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case IsInvalidState(err):
		default:
			t.Fatalf("worker %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestReenqueueAfterTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e, _ := s.Enqueue(ctx, 1, model.PriorityNormal)
	if err := s.MarkProcessing(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDispatched(ctx, e.ID, 9); err != nil {
		t.Fatal(err)
	}

	fresh, err := s.Enqueue(ctx, 1, model.PriorityLow)
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if fresh.ID == e.ID {
		t.Fatal("expected a fresh entry after terminal state")
	}
	if fresh.State != StatePending || fresh.Priority != model.PriorityLow {
		t.Fatalf("fresh entry wrong: %+v", fresh)
	}
	// Old terminal entry untouched.
	st, _ := s.Stats(ctx, time.Now())
	if st.DispatchedToday != 1 || st.Pending != 1 {
		t.Fatalf("stats after re-enqueue: %+v", st)
	}
}

func TestRemoveRequest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Enqueue(ctx, 5, model.PriorityNormal); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveRequest(ctx, 5); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if next, _ := s.Next(ctx); next != nil {
		t.Fatalf("expected empty queue after remove, got %+v", next)
	}
	// Removing a request with no active entry is a no-op.
	if err := s.RemoveRequest(ctx, 5); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if _, err := s.Enqueue(ctx, 1, model.PriorityEmergency); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enqueue(ctx, 2, model.PriorityNormal); err != nil {
		t.Fatal(err)
	}
	e3, _ := s.Enqueue(ctx, 3, model.PriorityHigh)
	if err := s.MarkProcessing(ctx, e3.ID); err != nil {
		t.Fatal(err)
	}
	e4, _ := s.Enqueue(ctx, 4, model.PriorityNormal)
	if err := s.MarkProcessing(ctx, e4.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, e4.ID, "no candidate available"); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Pending: 2, Processing: 1, FailedToday: 1, EmergencyRequests: 1}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}

	// Entries resolved on a previous day fall out of the daily counts.
	st, _ = s.Stats(ctx, now.Add(24*time.Hour))
	if st.FailedToday != 0 {
		t.Fatalf("yesterday's failure still counted: %+v", st)
	}
}

func TestReclaimStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	stuck, _ := s.Enqueue(ctx, 1, model.PriorityHigh)
	if err := s.MarkProcessing(ctx, stuck.ID); err != nil {
		t.Fatal(err)
	}
	fresh, _ := s.Enqueue(ctx, 2, model.PriorityNormal)
	s.SetClock(func() time.Time { return now.Add(10 * time.Minute) })
	if err := s.MarkProcessing(ctx, fresh.ID); err != nil {
		t.Fatal(err)
	}

	reclaimed, err := s.ReclaimStale(ctx, now.Add(5*time.Minute), true)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != stuck.ID {
		t.Fatalf("reclaimed = %+v, want stuck entry only", reclaimed)
	}
	if reclaimed[0].State != StateFailed || reclaimed[0].FailureReason == "" {
		t.Fatalf("reclaimed entry not failed: %+v", reclaimed[0])
	}

	// Requeued at original priority as a fresh pending entry.
	next, _ := s.Next(ctx)
	if next == nil || next.RequestID != 1 || next.Priority != model.PriorityHigh {
		t.Fatalf("expected request 1 requeued at high, got %+v", next)
	}
	if next.ID == stuck.ID {
		t.Fatal("requeue must create a fresh entry")
	}
}
