// Package metrics provides the observability sinks backing the
// core/metrics recorder interfaces: InfluxDB for dispatch event history,
// Prometheus for scrapeable counters, and a fan-out combinator.
package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"
	"github.com/GenuineDickies/pat-sub001/infra/logger"
)

// InfluxRecorder writes dispatch events to an InfluxDB instance using the
// official client.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxRecorder creates a recorder configured for the given InfluxDB
// endpoint.
func NewInfluxRecorder(url, token, org, bucket string) *InfluxRecorder {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-recorder"),
	}
}

// NewInfluxRecorderWithFallback pings the InfluxDB instance and returns a
// NopRecorder when the health check fails, so a missing metrics backend
// never blocks dispatching.
func NewInfluxRecorderWithFallback(url, token, org, bucket string) coremetrics.Recorder {
	rec := NewInfluxRecorder(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := rec.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			rec.log.Errorf("influx health check error: %v", err)
		} else {
			rec.log.Errorf("influx health status: %s", health.Status)
		}
		rec.client.Close()
		return coremetrics.NopRecorder{}
	}
	return rec
}

// Close releases the underlying client.
func (r *InfluxRecorder) Close() { r.client.Close() }

// RecordDispatch writes the dispatch outcome as a line protocol event.
func (r *InfluxRecorder) RecordDispatch(rec coremetrics.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_event").
		AddTag("request_id", strconv.FormatInt(rec.RequestID, 10)).
		AddTag("driver_id", strconv.FormatInt(rec.DriverID, 10)).
		AddTag("method", string(rec.Method)).
		AddTag("priority", rec.Priority.String()).
		AddTag("succeeded", strconv.FormatBool(rec.Succeeded)).
		AddTag("component", "dispatch_controller").
		AddField("score", round3(rec.Breakdown.Total)).
		AddField("proximity_score", round3(rec.Breakdown.Proximity)).
		AddField("workload_score", round3(rec.Breakdown.Workload)).
		AddField("rating_score", round3(rec.Breakdown.Rating)).
		AddField("availability_score", round3(rec.Breakdown.Availability)).
		SetTime(rec.Time)
	return r.writeAPI.WritePoint(ctx, p)
}

// RecordQueueDepth persists a queue occupancy snapshot.
func (r *InfluxRecorder) RecordQueueDepth(rec coremetrics.QueueDepthRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_queue_depth").
		AddTag("component", "dispatch_controller").
		AddField("pending", rec.Pending).
		AddField("processing", rec.Processing).
		AddField("emergency", rec.Emergency).
		SetTime(rec.Time)
	return r.writeAPI.WritePoint(ctx, p)
}

// RecordReclaim records one reclaimed stuck queue entry.
func (r *InfluxRecorder) RecordReclaim(rec coremetrics.ReclaimRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_reclaim").
		AddTag("entry_id", rec.EntryID).
		AddTag("request_id", strconv.FormatInt(rec.RequestID, 10)).
		AddTag("requeued", strconv.FormatBool(rec.Requeued)).
		AddTag("component", "dispatch_controller").
		AddField("count", 1).
		SetTime(rec.Time)
	return r.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
