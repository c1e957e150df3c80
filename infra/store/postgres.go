package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/GenuineDickies/pat-sub001/core/dispatch"
	"github.com/GenuineDickies/pat-sub001/core/geo"
	"github.com/GenuineDickies/pat-sub001/core/model"
	"github.com/GenuineDickies/pat-sub001/core/queue"
)

// Postgres backs the dispatch queue, the request and driver directories
// and the history sink with a relational database. Every state
// transition is a conditional UPDATE so the compare-and-swap guarantees
// of the queue contract hold across processes, not just goroutines.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for the given DSN and verifies
// connectivity.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// EnsureSchema creates the dispatch tables when they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispatch_queue (
			id TEXT PRIMARY KEY,
			request_id BIGINT NOT NULL,
			priority INT NOT NULL,
			state TEXT NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL,
			claimed_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			assigned_driver_id BIGINT,
			failure_reason TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS dispatch_queue_active
			ON dispatch_queue (request_id) WHERE state IN ('pending','processing')`,
		`CREATE TABLE IF NOT EXISTS dispatch_history (
			id BIGSERIAL PRIMARY KEY,
			request_id BIGINT NOT NULL,
			driver_id BIGINT NOT NULL,
			method TEXT NOT NULL,
			score DOUBLE PRECISION,
			dispatched_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

const entryColumns = `id, request_id, priority, state, enqueued_at,
	COALESCE(claimed_at, 'epoch'::timestamptz),
	COALESCE(resolved_at, 'epoch'::timestamptz),
	COALESCE(assigned_driver_id, 0),
	COALESCE(failure_reason, '')`

func scanEntry(row interface{ Scan(...any) error }) (queue.Entry, error) {
	var (
		e        queue.Entry
		state    string
		priority int
	)
	err := row.Scan(&e.ID, &e.RequestID, &priority, &state, &e.EnqueuedAt,
		&e.ClaimedAt, &e.ResolvedAt, &e.AssignedDriverID, &e.FailureReason)
	if err != nil {
		return queue.Entry{}, err
	}
	e.Priority = model.Priority(priority)
	e.State = queue.ParseState(state)
	if e.ClaimedAt.Unix() == 0 {
		e.ClaimedAt = time.Time{}
	}
	if e.ResolvedAt.Unix() == 0 {
		e.ResolvedAt = time.Time{}
	}
	return e, nil
}

func (p *Postgres) Enqueue(ctx context.Context, requestID int64, priority model.Priority) (queue.Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO dispatch_queue (id, request_id, priority, state, enqueued_at)
		VALUES ($1, $2, $3, 'pending', now())
		ON CONFLICT (request_id) WHERE state IN ('pending','processing')
		DO UPDATE SET priority = EXCLUDED.priority
		RETURNING `+entryColumns,
		uuid.NewString(), requestID, int(priority))
	return scanEntry(row)
}

func (p *Postgres) Pending(ctx context.Context, limit int) ([]queue.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM dispatch_queue
		WHERE state = 'pending'
		ORDER BY priority DESC, enqueued_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Next(ctx context.Context) (*queue.Entry, error) {
	pending, err := p.Pending(ctx, 1)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	return &pending[0], nil
}

// transition performs a conditional state move and maps a zero-row
// update to ErrNotFound or InvalidStateError depending on whether the
// entry exists at all.
func (p *Postgres) transition(ctx context.Context, entryID string, to queue.State, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var state string
	err = p.db.QueryRowContext(ctx, `SELECT state FROM dispatch_queue WHERE id = $1`, entryID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &queue.InvalidStateError{EntryID: entryID, From: queue.ParseState(state), To: to}
}

func (p *Postgres) MarkProcessing(ctx context.Context, entryID string) error {
	return p.transition(ctx, entryID, queue.StateProcessing, `
		UPDATE dispatch_queue SET state = 'processing', claimed_at = now()
		WHERE id = $1 AND state = 'pending'`, entryID)
}

func (p *Postgres) MarkDispatched(ctx context.Context, entryID string, driverID int64) error {
	return p.transition(ctx, entryID, queue.StateDispatched, `
		UPDATE dispatch_queue
		SET state = 'dispatched', resolved_at = now(), assigned_driver_id = $2
		WHERE id = $1 AND state = 'processing'`, entryID, driverID)
}

func (p *Postgres) MarkFailed(ctx context.Context, entryID, reason string) error {
	return p.transition(ctx, entryID, queue.StateFailed, `
		UPDATE dispatch_queue
		SET state = 'failed', resolved_at = now(), failure_reason = $2
		WHERE id = $1 AND state = 'processing'`, entryID, reason)
}

func (p *Postgres) RemoveRequest(ctx context.Context, requestID int64) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM dispatch_queue
		WHERE request_id = $1 AND state IN ('pending','processing')`, requestID)
	return err
}

func (p *Postgres) Stats(ctx context.Context, now time.Time) (queue.Stats, error) {
	var st queue.Stats
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'pending'),
			COUNT(*) FILTER (WHERE state = 'processing'),
			COUNT(*) FILTER (WHERE state = 'dispatched' AND resolved_at >= $1 AND resolved_at < $2),
			COUNT(*) FILTER (WHERE state = 'failed' AND resolved_at >= $1 AND resolved_at < $2),
			COUNT(*) FILTER (WHERE state = 'pending' AND priority = $3)
		FROM dispatch_queue`,
		dayStart, dayStart.AddDate(0, 0, 1), int(model.PriorityEmergency)).
		Scan(&st.Pending, &st.Processing, &st.DispatchedToday, &st.FailedToday, &st.EmergencyRequests)
	if err != nil {
		return queue.Stats{}, err
	}
	return st, nil
}

func (p *Postgres) ReclaimStale(ctx context.Context, cutoff time.Time, requeue bool) ([]queue.Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE dispatch_queue
		SET state = 'failed', resolved_at = now(), failure_reason = 'processing lease expired'
		WHERE state = 'processing' AND claimed_at < $1
		RETURNING `+entryColumns, cutoff)
	if err != nil {
		return nil, err
	}
	var reclaimed []queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		reclaimed = append(reclaimed, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if requeue {
		for _, e := range reclaimed {
			if _, err := p.Enqueue(ctx, e.RequestID, e.Priority); err != nil {
				return reclaimed, err
			}
		}
	}
	return reclaimed, nil
}

func (p *Postgres) GetRequest(ctx context.Context, id int64) (model.ServiceRequestSnapshot, error) {
	var (
		r        model.ServiceRequestSnapshot
		status   string
		priority int
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, status, priority, latitude, longitude,
			COALESCE(service_type_id, 0), COALESCE(customer_id, 0)
		FROM service_requests WHERE id = $1`, id).
		Scan(&r.ID, &status, &priority, &r.Latitude, &r.Longitude, &r.ServiceTypeID, &r.CustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ServiceRequestSnapshot{}, dispatch.ErrNotFound
	}
	if err != nil {
		return model.ServiceRequestSnapshot{}, err
	}
	r.Status = model.ParseRequestStatus(status)
	r.Priority = model.Priority(priority)
	return r, nil
}

func (p *Postgres) AssignIfPending(ctx context.Context, id, driverID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE service_requests
		SET status = 'assigned', assigned_driver_id = $2, assigned_at = now()
		WHERE id = $1 AND status = 'pending'`, id, driverID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) SetRequestStatus(ctx context.Context, id int64, status model.RequestStatus, driverID int64) error {
	var res sql.Result
	var err error
	if driverID != 0 {
		res, err = p.db.ExecContext(ctx, `
			UPDATE service_requests SET status = $2, assigned_driver_id = $3
			WHERE id = $1`, id, status.String(), driverID)
	} else {
		res, err = p.db.ExecContext(ctx, `
			UPDATE service_requests SET status = $2 WHERE id = $1`, id, status.String())
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (p *Postgres) SetRequestPriority(ctx context.Context, id int64, priority model.Priority) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE service_requests SET priority = $2 WHERE id = $1`, id, int(priority))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

const driverColumns = `id, COALESCE(user_id, 0), status, COALESCE(rating, 0),
	COALESCE(active_requests, 0), COALESCE(current_workload, 0), COALESCE(max_workload, 0),
	COALESCE(latitude, 0), COALESCE(longitude, 0),
	COALESCE(location_updated_at, 'epoch'::timestamptz)`

func scanDriver(row interface{ Scan(...any) error }) (model.DriverSnapshot, error) {
	var (
		d      model.DriverSnapshot
		status string
	)
	err := row.Scan(&d.ID, &d.UserID, &status, &d.Rating, &d.ActiveRequests,
		&d.CurrentWorkload, &d.MaxWorkload, &d.Latitude, &d.Longitude, &d.LocationUpdatedAt)
	if err != nil {
		return model.DriverSnapshot{}, err
	}
	d.Status = model.ParseDriverStatus(status)
	if d.LocationUpdatedAt.Unix() == 0 {
		d.LocationUpdatedAt = time.Time{}
	}
	return d, nil
}

// ListAvailableDrivers fetches available drivers and applies the radius
// filter in Go with the same haversine the scorer uses, so the prefilter
// can never disagree with scoring.
func (p *Postgres) ListAvailableDrivers(ctx context.Context, near *dispatch.Proximity) ([]model.DriverSnapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+driverColumns+` FROM drivers WHERE status = 'available'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DriverSnapshot
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		if near != nil {
			dist := geo.Distance(d.Latitude, d.Longitude, near.Latitude, near.Longitude)
			if dist > near.RadiusKm {
				continue
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) GetDriver(ctx context.Context, id int64) (model.DriverSnapshot, error) {
	d, err := scanDriver(p.db.QueryRowContext(ctx, `
		SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DriverSnapshot{}, dispatch.ErrNotFound
	}
	return d, err
}

func (p *Postgres) ReserveWorkloadSlot(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE drivers
		SET current_workload = current_workload + 1, active_requests = active_requests + 1
		WHERE id = $1 AND status = 'available'
			AND max_workload > 0 AND current_workload < max_workload`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) ReleaseWorkloadSlot(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE drivers
		SET current_workload = GREATEST(current_workload - 1, 0),
			active_requests = GREATEST(active_requests - 1, 0)
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (p *Postgres) SetDriverStatus(ctx context.Context, id int64, status model.DriverStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE drivers SET status = $2 WHERE id = $1`, id, status.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordDispatch(ctx context.Context, rec dispatch.HistoryRecord) error {
	var score any
	if rec.Score != nil {
		score = *rec.Score
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO dispatch_history (request_id, driver_id, method, score, dispatched_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.RequestID, rec.DriverID, rec.Method, score, rec.DispatchedAt)
	return err
}
