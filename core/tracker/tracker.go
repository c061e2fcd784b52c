package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/events"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/internal/eventbus"
)

// ErrStaleSample classifies an out-of-order position report. It is logged,
// never fatal: the registry coordinate stays unchanged.
var ErrStaleSample = fmt.Errorf("stale location sample")

// Config defines staleness detection parameters.
type Config struct {
	// StalenessThresholdSeconds marks a technician offline when no report
	// arrives within this interval. Default 300.
	StalenessThresholdSeconds int `json:"staleness_threshold_seconds"`
	// SweepIntervalSeconds spaces the background staleness sweeps. Default 60.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StalenessThresholdSeconds <= 0 {
		c.StalenessThresholdSeconds = 300
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 60
	}
}

// Tracker ingests periodic technician position reports and maintains
// last-known-location with staleness detection. Ingestion is independent per
// technician and touches only the registry's coordinate fields, so it never
// waits on dispatch work.
type Tracker struct {
	cfg  Config
	reg  *registry.Registry
	bus  eventbus.EventBus
	sink metrics.Sink
	log  logger.Logger
	now  func() time.Time
}

// New creates a Tracker. bus may be nil.
func New(cfg Config, reg *registry.Registry, bus eventbus.EventBus, log logger.Logger) *Tracker {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Tracker{cfg: cfg, reg: reg, bus: bus, log: log, now: time.Now}
}

// SetSink configures the metrics sink accepted samples are recorded to.
func (t *Tracker) SetSink(sink metrics.Sink) { t.sink = sink }

// Report ingests a position sample. Timestamps must increase monotonically
// per technician; an older or equal sample is rejected with ErrStaleSample
// and the registry coordinate is left unchanged. Check and write happen under
// the technician lock, so concurrent reports commit in timestamp order.
func (t *Tracker) Report(sample model.LocationSample) error {
	applied, err := t.reg.SetLocationIfNewer(sample.TechnicianID, sample.Location, sample.Timestamp)
	if err != nil {
		return err
	}
	if !applied {
		t.log.Warnf("stale location sample for %s at %s",
			sample.TechnicianID, sample.Timestamp.Format(time.RFC3339))
		staleSamples.Inc()
		return fmt.Errorf("%w: %s at %s", ErrStaleSample, sample.TechnicianID, sample.Timestamp.Format(time.RFC3339))
	}
	samplesIngested.Inc()
	if lr, ok := t.sink.(metrics.LocationRecorder); ok {
		if err := lr.RecordLocation(sample.TechnicianID, sample.Location.Lat, sample.Location.Lon, sample.Timestamp); err != nil {
			t.log.Errorf("location metrics: %v", err)
		}
	}
	return nil
}

// Run executes the staleness sweep until the context is cancelled. Sweeps are
// time-driven and not externally cancellable once armed; their effects are
// ordinary lock-protected registry operations.
func (t *Tracker) Run(ctx context.Context) {
	interval := time.Duration(t.cfg.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep marks technicians without a fresh report as offline, excluding them
// from new candidate pools. Existing assignments are unaffected and surfaced
// as a warning event for the dispatcher.
func (t *Tracker) Sweep() {
	threshold := time.Duration(t.cfg.StalenessThresholdSeconds) * time.Second
	now := t.now()
	for _, tech := range t.reg.Snapshot() {
		if tech.Status == model.StatusOffline {
			continue
		}
		if tech.LocationAt.IsZero() || now.Sub(tech.LocationAt) <= threshold {
			continue
		}
		if err := t.reg.SetStatus(tech.ID, model.StatusOffline); err != nil {
			t.log.Errorf("sweep: mark %s offline: %v", tech.ID, err)
			continue
		}
		techniciansOffline.Inc()
		t.log.Warnf("technician %s marked offline, last report %s", tech.ID, tech.LocationAt.Format(time.RFC3339))
		if t.bus != nil && (tech.ActiveOrder != "" || tech.Workload() > 0) {
			t.bus.Publish(events.StaleLocationEvent{
				TechnicianID: tech.ID,
				LastSeen:     tech.LocationAt,
				ActiveOrder:  tech.ActiveOrder,
			})
		}
	}
}
