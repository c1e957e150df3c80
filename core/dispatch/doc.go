// Package dispatch implements the core logic for matching pending
// roadside-assistance service requests to available drivers.
//
// It consumes point-in-time snapshots from the external driver and
// request directories, scores every eligible driver against a request,
// and commits the winning assignment back through the directories while
// keeping the dispatch queue's state machine consistent.
//
// Key components:
//   - Algorithm: pure best-driver selection plus the atomic assignment
//     commit with its mandatory re-check of request and driver state.
//   - Controller: encodes the three dispatch modes (automatic queue
//     worker, operator-chosen manual dispatch, inline emergency
//     dispatch) and the stale-lease reclaim sweep.
//   - RequestDirectory / DriverDirectory / HistorySink / Notifier:
//     interfaces the surrounding platform implements; the core never
//     owns those records.
//
// Dispatch flow for the automatic mode:
//  1. Peek the highest-priority pending queue entry
//  2. Claim it with an atomic pending -> processing transition
//  3. Score candidates and pick the best driver
//  4. Commit the assignment (or record the failure reason)
//  5. Resolve the queue entry and emit events and metrics
//
// All collaborators are injected through constructors, so every piece
// can be exercised against in-memory test doubles.
package dispatch
