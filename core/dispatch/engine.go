package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch/logging"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/events"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/geo"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/mqtt"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/routing"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/workorder"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/internal/eventbus"
)

// Engine selects technicians for jobs. Scoring is a weighted sum of travel
// distance and workload minus a preferred-skill bonus; commits happen under
// the technician's registry lock so concurrent assignment attempts for the
// same technician serialize, and at most one lock is held at a time.
type Engine struct {
	cfg    Config
	reg    *registry.Registry
	areas  *geo.Index
	est    routing.TravelEstimator
	orders *workorder.Lifecycle
	client mqtt.Client
	bus    eventbus.EventBus
	sink   metrics.Sink
	log    logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	results     map[string]AssignmentResult // committed assignment per work order
	failed      map[string]map[string]bool  // technicians excluded per work order
	store       logging.LogStore
	ackWaits    int // dispatch rounds that reached the ack wait
	ackAccepted int // of those, how many were accepted
}

// NewEngine creates a dispatch engine.
func NewEngine(cfg Config, reg *registry.Registry, areas *geo.Index, est routing.TravelEstimator, orders *workorder.Lifecycle, client mqtt.Client, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger) (*Engine, error) {
	if reg == nil || areas == nil || est == nil || orders == nil || client == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Engine{
		cfg:     cfg,
		reg:     reg,
		areas:   areas,
		est:     est,
		orders:  orders,
		client:  client,
		bus:     bus,
		sink:    sink,
		log:     log,
		now:     time.Now,
		results: make(map[string]AssignmentResult),
		failed:  make(map[string]map[string]bool),
	}, nil
}

// SetLogStore configures the store used to persist dispatch decisions.
func (e *Engine) SetLogStore(store logging.LogStore) {
	e.mu.Lock()
	e.store = store
	e.mu.Unlock()
}

// AssignJob selects and commits a technician for the job. Calling it again
// with the same job ID before any state change returns the same assignment.
// A location outside the footprint yields NoCoverageError; exhausting the
// attempt cap yields NoCandidateFoundError and leaves the work order
// unassignable.
func (e *Engine) AssignJob(ctx context.Context, job model.Job) (AssignmentResult, error) {
	wo := e.orders.Create(job)

	e.mu.Lock()
	res, cached := e.results[wo.ID]
	e.mu.Unlock()
	if cached {
		cur, err := e.orders.Get(wo.ID)
		if err == nil && cur.AssignedTech == res.TechnicianID && !cur.Status.Terminal() {
			return res, nil
		}
	}

	if wo.Status.Terminal() {
		return AssignmentResult{}, fmt.Errorf("work order %s is %s", wo.ID, wo.Status)
	}

	for {
		res, retry, err := e.attempt(ctx, job, wo.ID)
		if err != nil {
			return AssignmentResult{}, err
		}
		if !retry {
			return res, nil
		}
		if ctx.Err() != nil {
			return AssignmentResult{}, ctx.Err()
		}
	}
}

// attempt runs one dispatch round: candidate build, scoring, lock-protected
// commit, order publish and ack wait. retry reports whether the caller should
// run another round.
func (e *Engine) attempt(ctx context.Context, job model.Job, orderID string) (AssignmentResult, bool, error) {
	cands, err := e.rankedCandidates(job, orderID)
	if err != nil {
		jobsAssigned.WithLabelValues("no_coverage").Inc()
		return AssignmentResult{}, false, err
	}
	if len(cands) == 0 {
		return AssignmentResult{}, false, e.exhaust(orderID)
	}
	best := cands[0]

	wo, err := e.commit(ctx, orderID, best.techID)
	if err != nil {
		var conflict AssignmentConflictError
		if errors.As(err, &conflict) {
			jobsAssigned.WithLabelValues("conflict").Inc()
		}
		return AssignmentResult{}, false, err
	}

	if e.bus != nil {
		e.bus.Publish(events.AssignmentEvent{
			WorkOrderID:  orderID,
			TechnicianID: best.techID,
			Score:        best.score,
			Attempt:      wo.Attempts,
			At:           e.now(),
		})
	}

	ack, latency, err := e.sendAndWait(orderID, best.techID, job)
	accepted := err == nil && ack.Accepted
	if e.bus != nil {
		e.bus.Publish(events.AckEvent{
			WorkOrderID:  orderID,
			TechnicianID: best.techID,
			Accepted:     accepted,
			Err:          err,
			Latency:      latency,
		})
	}
	assignLatency.Observe(latency.Seconds())
	orderAckRate.Set(e.recordAckOutcome(accepted))

	if !accepted {
		e.log.Warnf("technician %s did not accept order %s (attempt %d): %v", best.techID, orderID, wo.Attempts, err)
		e.appendLog(cands, orderID, best.techID, wo.Attempts, false, "rejected", err)
		if rerr := e.releaseForRetry(orderID, best.techID, wo.Attempts); rerr != nil {
			return AssignmentResult{}, false, rerr
		}
		return AssignmentResult{}, true, nil
	}

	res := e.finalize(job, orderID, best, wo.Attempts, latency)
	e.appendLog(cands, orderID, best.techID, wo.Attempts, true, "assigned", nil)
	jobsAssigned.WithLabelValues("assigned").Inc()
	return res, false, nil
}

// recordAckOutcome updates the rolling accepted/attempted ratio and returns
// the current value.
func (e *Engine) recordAckOutcome(accepted bool) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ackWaits++
	if accepted {
		e.ackAccepted++
	}
	return float64(e.ackAccepted) / float64(e.ackWaits)
}

// rankedCandidates resolves the job location, intersects the covering areas
// with the registry's eligible technicians and returns them scored, best
// first with ties broken by technician ID.
func (e *Engine) rankedCandidates(job model.Job, orderID string) ([]candidate, error) {
	areaIDs, err := e.areas.ResolveIDs(job.Location)
	if err != nil {
		return nil, err
	}
	techs := e.reg.Candidates(areaIDs, job.RequiredSkills, e.now(), job.Duration)
	candidatePool.Set(float64(len(techs)))
	if rec, ok := e.sink.(metrics.CandidatePoolRecorder); ok {
		_ = rec.RecordCandidatePool(len(techs))
	}

	excluded := make(map[string]bool)
	e.mu.Lock()
	for id := range e.failed[orderID] {
		excluded[id] = true
	}
	e.mu.Unlock()

	var cands []candidate
	for _, t := range techs {
		if excluded[t.ID] {
			continue
		}
		dist := e.est.Estimate(techPosition(t), job.Location).DistanceKm
		cands = append(cands, candidate{
			techID:     t.ID,
			score:      e.score(t, dist, job),
			distanceKm: dist,
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score < cands[j].score
		}
		return cands[i].techID < cands[j].techID
	})
	return cands, nil
}

// score implements the weighted assignment criterion; lower is better.
func (e *Engine) score(t model.Technician, distanceKm float64, job model.Job) float64 {
	bonus := 0.0
	for _, p := range job.PreferredSkills {
		for _, s := range t.Skills {
			if s == p {
				bonus++
				break
			}
		}
	}
	return e.cfg.DistanceWeight*distanceKm +
		e.cfg.WorkloadWeight*float64(t.Workload()) -
		e.cfg.SkillBonusWeight*bonus
}

// commit binds the work order to the technician under the technician's lock.
// Losing the lock race is retried once with bounded backoff, then surfaced as
// AssignmentConflictError.
func (e *Engine) commit(ctx context.Context, orderID, techID string) (model.WorkOrder, error) {
	var wo model.WorkOrder
	apply := func(t *model.Technician) error {
		if t.Status == model.StatusOffline {
			return fmt.Errorf("technician %s went offline", techID)
		}
		updated, err := e.orders.TransitionAssign(orderID, workorder.EventDispatch, techID)
		if err != nil {
			return err
		}
		wo = updated
		t.Queue = append(t.Queue, orderID)
		return nil
	}

	for try := 0; ; try++ {
		ok, err := e.reg.TryWithLock(techID, apply)
		if err != nil {
			return model.WorkOrder{}, err
		}
		if ok {
			return wo, nil
		}
		if try >= 1 {
			return model.WorkOrder{}, AssignmentConflictError{WorkOrderID: orderID, TechnicianID: techID}
		}
		select {
		case <-time.After(time.Duration(e.cfg.ConflictBackoffMS) * time.Millisecond):
		case <-ctx.Done():
			return model.WorkOrder{}, ctx.Err()
		}
	}
}

// sendAndWait publishes the order and waits for the acknowledgment while
// measuring the latency.
func (e *Engine) sendAndWait(orderID, techID string, job model.Job) (mqtt.Ack, time.Duration, error) {
	start := e.now()
	cmdID, err := e.client.SendAssignment(techID, mqtt.AssignmentOrder{
		WorkOrderID: orderID,
		Location:    job.Location,
		Skills:      job.RequiredSkills,
		Priority:    job.Priority,
		IssuedAt:    start,
	})
	if err != nil {
		publishFailure.Inc()
		return mqtt.Ack{}, e.now().Sub(start), err
	}
	publishSuccess.Inc()
	ack, err := e.client.WaitForAck(cmdID, time.Duration(e.cfg.AckTimeoutSeconds)*time.Second)
	return ack, e.now().Sub(start), err
}

// releaseForRetry rolls the failed attempt back: the technician is excluded
// for this order, the queue entry released and the order requeued, or marked
// unassignable when the attempt cap is reached.
func (e *Engine) releaseForRetry(orderID, techID string, attempts int) error {
	if _, err := e.orders.Transition(orderID, workorder.EventReject); err != nil {
		return err
	}
	if err := e.reg.Release(techID, orderID); err != nil {
		e.log.Errorf("release %s from %s: %v", orderID, techID, err)
	}
	e.mu.Lock()
	if e.failed[orderID] == nil {
		e.failed[orderID] = make(map[string]bool)
	}
	e.failed[orderID][techID] = true
	e.mu.Unlock()

	if attempts >= e.cfg.MaxAttempts {
		if _, err := e.orders.Transition(orderID, workorder.EventExhaust); err != nil {
			return err
		}
		jobsAssigned.WithLabelValues("unassignable").Inc()
		return NoCandidateFoundError{WorkOrderID: orderID, Attempts: attempts}
	}
	if _, err := e.orders.Transition(orderID, workorder.EventRequeue); err != nil {
		return err
	}
	redispatchTotal.Inc()
	return nil
}

// exhaust marks the order unassignable when the candidate pool is empty.
func (e *Engine) exhaust(orderID string) error {
	wo, err := e.orders.Get(orderID)
	if err != nil {
		return err
	}
	if _, err := e.orders.Transition(orderID, workorder.EventExhaust); err != nil {
		return err
	}
	jobsAssigned.WithLabelValues("no_candidate").Inc()
	return NoCandidateFoundError{WorkOrderID: orderID, Attempts: wo.Attempts}
}

// finalize accepts the order, marks it active when the technician is free and
// records the result.
func (e *Engine) finalize(job model.Job, orderID string, best candidate, attempts int, latency time.Duration) AssignmentResult {
	if _, err := e.orders.Transition(orderID, workorder.EventAccept); err != nil {
		e.log.Errorf("accept %s: %v", orderID, err)
	}
	var eta time.Time
	_ = e.reg.WithLock(best.techID, func(t *model.Technician) error {
		if t.ActiveOrder == "" {
			t.ActiveOrder = orderID
		}
		eta = e.now().Add(e.est.Estimate(techPosition(*t), job.Location).Duration)
		return nil
	})

	res := AssignmentResult{
		WorkOrderID:  orderID,
		TechnicianID: best.techID,
		Score:        best.score,
		DistanceKm:   best.distanceKm,
		Attempt:      attempts,
		ETA:          eta,
		AckLatency:   latency,
	}
	e.mu.Lock()
	e.results[orderID] = res
	e.mu.Unlock()

	if e.sink != nil {
		if err := e.sink.RecordAssignments([]metrics.AssignmentRecord{{
			WorkOrderID:  orderID,
			TechnicianID: best.techID,
			Score:        best.score,
			DistanceKm:   best.distanceKm,
			Attempts:     attempts,
			Acknowledged: true,
			DispatchTime: e.now(),
		}}); err != nil {
			e.log.Errorf("metrics error: %v", err)
		}
		if lr, ok := e.sink.(metrics.LatencyRecorder); ok {
			if err := lr.RecordAckLatency([]metrics.AckLatency{{
				WorkOrderID:  orderID,
				TechnicianID: best.techID,
				Acknowledged: true,
				Latency:      latency,
			}}); err != nil {
				e.log.Errorf("latency metrics error: %v", err)
			}
		}
	}
	return res
}

// AssignBatch processes jobs in priority order, highest first with ties on
// earliest request time, applying the single-job algorithm sequentially so
// later jobs see the workload effects of earlier assignments. The allocation
// is deterministic and explainable rather than globally optimal.
func (e *Engine) AssignBatch(ctx context.Context, jobs []model.Job) []BatchItem {
	ordered := append([]model.Job(nil), jobs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		if !ordered[i].RequestedAt.Equal(ordered[j].RequestedAt) {
			return ordered[i].RequestedAt.Before(ordered[j].RequestedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	items := make([]BatchItem, 0, len(ordered))
	for _, job := range ordered {
		res, err := e.AssignJob(ctx, job)
		items = append(items, BatchItem{JobID: job.ID, Result: res, Err: err})
	}
	return items
}

// Redispatch returns an accepted order to the pool after an explicit
// rejection or a no-show, excluding the previous technician, and re-runs
// assignment.
func (e *Engine) Redispatch(ctx context.Context, orderID string) (AssignmentResult, error) {
	wo, err := e.orders.Get(orderID)
	if err != nil {
		return AssignmentResult{}, err
	}
	prev := wo.AssignedTech
	if !wo.Status.Terminal() && wo.Status != model.OrderCreated {
		if wo.Status != model.OrderFailed && wo.Status != model.OrderRejected {
			if _, err := e.orders.Transition(orderID, workorder.EventFail); err != nil {
				return AssignmentResult{}, err
			}
		}
		if prev != "" {
			if err := e.reg.Release(prev, orderID); err != nil {
				e.log.Errorf("release %s from %s: %v", orderID, prev, err)
			}
		}
		if wo.Attempts >= e.cfg.MaxAttempts {
			if _, err := e.orders.Transition(orderID, workorder.EventExhaust); err != nil {
				return AssignmentResult{}, err
			}
			jobsAssigned.WithLabelValues("unassignable").Inc()
			return AssignmentResult{}, NoCandidateFoundError{WorkOrderID: orderID, Attempts: wo.Attempts}
		}
		if _, err := e.orders.Transition(orderID, workorder.EventRequeue); err != nil {
			return AssignmentResult{}, err
		}
	}
	e.mu.Lock()
	if prev != "" {
		if e.failed[orderID] == nil {
			e.failed[orderID] = make(map[string]bool)
		}
		e.failed[orderID][prev] = true
	}
	delete(e.results, orderID)
	e.mu.Unlock()
	redispatchTotal.Inc()

	return e.AssignJob(ctx, model.Job{
		ID:             orderID,
		AppointmentID:  wo.AppointmentID,
		Location:       wo.Location,
		RequiredSkills: wo.RequiredSkills,
		Priority:       wo.Priority,
	})
}

// Cancel cancels the work order and releases its technician. It is
// idempotent: cancelling a cancelled order is a no-op.
func (e *Engine) Cancel(orderID string) error {
	wo, err := e.orders.Get(orderID)
	if err != nil {
		return err
	}
	if wo.Status == model.OrderCancelled {
		return nil
	}
	if _, err := e.orders.Transition(orderID, workorder.EventCancel); err != nil {
		return err
	}
	if wo.AssignedTech != "" {
		if err := e.reg.Release(wo.AssignedTech, orderID); err != nil {
			e.log.Errorf("release %s from %s: %v", orderID, wo.AssignedTech, err)
		}
	}
	e.mu.Lock()
	delete(e.results, orderID)
	e.mu.Unlock()
	return nil
}

// appendLog persists the dispatch decision if a store is configured.
func (e *Engine) appendLog(cands []candidate, orderID, chosen string, attempt int, acked bool, outcome string, cause error) {
	e.mu.Lock()
	store := e.store
	e.mu.Unlock()
	if store == nil {
		return
	}
	rec := logging.LogRecord{
		Timestamp:    e.now(),
		WorkOrderID:  orderID,
		ChosenTech:   chosen,
		Attempt:      attempt,
		Acknowledged: acked,
		Outcome:      outcome,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	for _, c := range cands {
		rec.Candidates = append(rec.Candidates, logging.CandidateScore{
			TechnicianID: c.techID,
			Score:        c.score,
			DistanceKm:   c.distanceKm,
		})
	}
	if err := store.Append(context.Background(), rec); err != nil {
		e.log.Errorf("dispatch log append: %v", err)
	}
}

// techPosition prefers the live position and falls back to the home base
// before the first report arrives.
func techPosition(t model.Technician) model.Coordinate {
	if t.LocationAt.IsZero() {
		return t.HomeBase
	}
	return t.Location
}
