// Package app assembles the dispatch service from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/GenuineDickies/pat-sub001/config"
	"github.com/GenuineDickies/pat-sub001/core/dispatch"
	coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"
	"github.com/GenuineDickies/pat-sub001/core/queue"
	"github.com/GenuineDickies/pat-sub001/infra/logger"
	"github.com/GenuineDickies/pat-sub001/infra/metrics"
	"github.com/GenuineDickies/pat-sub001/infra/notify"
	"github.com/GenuineDickies/pat-sub001/infra/store"
	"github.com/GenuineDickies/pat-sub001/internal/eventbus"
)

// Service orchestrates the dispatch controller and its backends.
type Service struct {
	Controller *dispatch.Controller
	Bus        eventbus.EventBus

	log      logger.Logger
	pg       *store.Postgres
	notifier *notify.MQTTNotifier
	promAddr string
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var (
		queueStore queue.Store
		requests   dispatch.RequestDirectory
		drivers    dispatch.DriverDirectory
		history    dispatch.HistorySink
		pg         *store.Postgres
	)
	switch cfg.Storage.Backend {
	case "postgres":
		var err error
		pg, err = store.NewPostgres(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Storage.Bootstrap {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		queueStore, requests, drivers, history = pg, pg, pg, pg
	default:
		queueStore = queue.NewMemoryStore()
		requests = store.NewMemoryRequestDirectory()
		drivers = store.NewMemoryDriverDirectory()
		history = store.NewMemoryHistory()
	}

	var recorders []coremetrics.Recorder
	if cfg.Metrics.PrometheusAddr != "" {
		rec, err := metrics.NewPromRecorder()
		if err != nil {
			return nil, fmt.Errorf("prom recorder: %w", err)
		}
		recorders = append(recorders, rec)
	}
	if cfg.Metrics.InfluxURL != "" {
		rec := metrics.NewInfluxRecorderWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		recorders = append(recorders, rec)
	}
	var recorder coremetrics.Recorder
	if len(recorders) == 1 {
		recorder = recorders[0]
	} else if len(recorders) > 1 {
		recorder = metrics.NewMultiRecorder(recorders...)
	}

	var notifier dispatch.Notifier
	var mqttNotifier *notify.MQTTNotifier
	if cfg.Notify.Enabled {
		var err error
		mqttNotifier, err = notify.NewMQTTNotifier(cfg.Notify.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = mqttNotifier
	}

	algo, err := dispatch.NewAlgorithm(requests, drivers, history, cfg.Dispatch.Scorer(), logger.New("algorithm"))
	if err != nil {
		return nil, err
	}
	algo.RadiusPrefilter = cfg.Dispatch.RadiusPrefilter

	bus := eventbus.New()
	ctrl, err := dispatch.NewController(queueStore, algo, requests, notifier, recorder, bus, logger.New("controller"), cfg.Dispatch)
	if err != nil {
		return nil, err
	}

	return &Service{
		Controller: ctrl,
		Bus:        bus,
		log:        logg,
		pg:         pg,
		notifier:   mqttNotifier,
		promAddr:   cfg.Metrics.PrometheusAddr,
	}, nil
}

// Run starts the worker loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if err := s.Controller.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.pg != nil {
		return s.pg.Close()
	}
	return nil
}
