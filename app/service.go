package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/api/dispatch"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/api/technicians"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/config"
	coredispatch "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch/logging"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/geo"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/routing"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/schedule"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/tracker"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/workorder"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/metrics"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/mqtt"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/internal/eventbus"
)

// Service wires the dispatch core together: registry, service areas,
// scheduler, dispatch engine, route optimizer, work-order lifecycle and
// location tracking over MQTT.
type Service struct {
	Registry  *registry.Registry
	Areas     *geo.Index
	Scheduler *schedule.Scheduler
	Engine    *coredispatch.Engine
	Orders    *workorder.Lifecycle
	Optimizer *routing.Optimizer
	Tracker   *tracker.Tracker

	bus      eventbus.EventBus
	client   *mqtt.PahoClient
	ingestor *mqtt.LocationIngestor
	store    logging.LogStore
	log      logger.Logger
	cfg      *config.Config
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	sink := metrics.Build(cfg.Metrics)
	bus := eventbus.New()
	reg := registry.New()
	areas := geo.NewIndex()
	est := routing.HaversineEstimator{SpeedKmh: cfg.Routing.SpeedKmh}

	orders := workorder.New(bus, logger.New("workorder"))
	sched := schedule.New(cfg.Scheduler, reg, areas, est, logger.New("scheduler"))
	trk := tracker.New(cfg.Tracker, reg, bus, logger.New("tracker"))
	trk.SetSink(sink)
	opt := routing.NewOptimizer(est, cfg.Routing.MaxImprovePasses, logger.New("routing"))

	engine, err := coredispatch.NewEngine(cfg.Dispatch, reg, areas, est, orders, client, bus, sink, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}

	store, err := cfg.Logging.BuildStore()
	if err != nil {
		return nil, fmt.Errorf("dispatch log store: %w", err)
	}
	engine.SetLogStore(store)

	ing := mqtt.NewLocationIngestor(trk)
	if err := ing.Subscribe(client, 0); err != nil {
		return nil, fmt.Errorf("location subscription: %w", err)
	}

	return &Service{
		Registry:  reg,
		Areas:     areas,
		Scheduler: sched,
		Engine:    engine,
		Orders:    orders,
		Optimizer: opt,
		Tracker:   trk,
		bus:       bus,
		client:    client,
		ingestor:  ing,
		store:     store,
		log:       logg,
		cfg:       cfg,
	}, nil
}

// Run starts the background loops and the HTTP surfaces, blocking until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Tracker.Run(ctx)

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.API.Addr != "" {
		mux := http.NewServeMux()
		staleAfter := time.Duration(s.cfg.Tracker.StalenessThresholdSeconds) * time.Second
		mux.Handle("/api/technicians/status", technicians.NewStatusHandler(s.Registry, staleAfter))
		mux.Handle("/api/dispatch/logs", dispatch.NewLogHandler(s.store, s.cfg.API.AuthToken))
		srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.log.Errorf("api server shutdown: %v", err)
			}
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.client.Disconnect()
	s.bus.Close()
	return s.store.Close()
}
