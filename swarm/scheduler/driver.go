package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/internal/ctxkeys"
	"github.com/BaSui01/swarmflow/internal/metrics"
	"github.com/BaSui01/swarmflow/internal/telemetry"
	"github.com/BaSui01/swarmflow/swarm/objective"
	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/swarm/supervisor"
	"github.com/BaSui01/swarmflow/swarm/task"
	"github.com/BaSui01/swarmflow/types"
	"github.com/BaSui01/swarmflow/world"
)

// ErrCycleAborted is returned when the context ends before the snapshot is
// saved. Nothing is persisted for an aborted cycle.
var ErrCycleAborted = errors.New("cycle aborted")

// cycleRecorder is implemented by recorders that keep typed cycle metrics.
type cycleRecorder interface {
	RecordCycle(status string, duration time.Duration)
	RecordRegion(region string, claimed, purged, open int)
	RecordTaskStep(result string, n int)
	RecordSpawn(outcome string, n int)
}

// =============================================================================
// 🎛️ 选项
// =============================================================================

// Option configures a Driver.
type Option func(*Driver)

// WithRegistry sets the objective registry. Defaults to the built-ins.
func WithRegistry(r *objective.Registry) Option {
	return func(d *Driver) { d.registry = r }
}

// WithPlanner sets the capacity planner. Without one no capacity requests
// are generated.
func WithPlanner(p *supervisor.Planner) Option {
	return func(d *Driver) { d.planner.Store(p) }
}

// WithTTL sets the request TTL in cycles.
func WithTTL(ttl int) Option {
	return func(d *Driver) { d.ttl = ttl }
}

// WithMaxDepth bounds prerequisite nesting.
func WithMaxDepth(depth int) Option {
	return func(d *Driver) { d.maxDepth = depth }
}

// WithBudget bounds the wall time of one cycle.
func WithBudget(budget time.Duration) Option {
	return func(d *Driver) { d.budget = budget }
}

// WithRecorder sets the stats recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithTracer sets the tracer. Defaults to the global one.
func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) { d.tracer = t }
}

// =============================================================================
// 🔁 调度驱动
// =============================================================================

// Driver runs scheduler cycles against a world. It is not safe for
// concurrent RunCycle calls; SetPlanner may be called from any goroutine.
type Driver struct {
	manager *snapshot.Manager
	view    world.View
	act     world.Actuator

	registry   *objective.Registry
	evaluator  *objective.Evaluator
	runner     *task.Runner
	supervisor *supervisor.Supervisor
	planner    atomic.Pointer[supervisor.Planner]

	ttl      int
	maxDepth int
	budget   time.Duration

	recorder metrics.Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates a driver.
func New(manager *snapshot.Manager, view world.View, act world.Actuator, opts ...Option) *Driver {
	d := &Driver{
		manager:  manager,
		view:     view,
		act:      act,
		ttl:      request.DefaultTTL,
		maxDepth: task.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = objective.Builtins()
	}
	if d.recorder == nil {
		d.recorder = metrics.NopRecorder{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.tracer == nil {
		d.tracer = telemetry.Tracer()
	}
	d.logger = d.logger.With(zap.String("component", "scheduler"))
	d.evaluator = objective.NewEvaluator(d.registry, d.logger)
	d.runner = task.NewRunner(d.maxDepth, d.logger)
	d.supervisor = supervisor.New(d.logger)
	return d
}

// SetPlanner swaps the capacity planner for the following cycles.
func (d *Driver) SetPlanner(p *supervisor.Planner) {
	d.planner.Store(p)
}

// RunCycle runs one full cycle and saves the snapshot exactly once. Schema
// and store errors abort the cycle; per-request and per-task errors are
// contained and only counted.
func (d *Driver) RunCycle(ctx context.Context) (Report, error) {
	start := time.Now()
	if d.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.budget)
		defer cancel()
	}

	cycle := d.view.Tick()
	rep := Report{RunID: uuid.NewString(), Cycle: cycle}
	ctx = ctxkeys.WithRunID(ctx, rep.RunID)
	ctx = ctxkeys.WithCycle(ctx, cycle)
	logger := d.logger.With(ctxkeys.LogFields(ctx)...)

	ctx, span := d.tracer.Start(ctx, "scheduler.cycle", trace.WithAttributes(
		attribute.String("swarmflow.run_id", rep.RunID),
		attribute.Int("swarmflow.cycle", cycle),
	))
	defer span.End()

	err := d.runCycle(ctx, logger, &rep)
	rep.Duration = time.Since(start)

	status := "ok"
	switch {
	case errors.Is(err, ErrCycleAborted):
		status = "aborted"
	case err != nil:
		status = "failed"
	}
	d.record(rep, status)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("cycle failed", zap.String("status", status), zap.Error(err))
		return rep, err
	}
	span.SetStatus(codes.Ok, "")
	logger.Info("cycle complete", reportField(rep))
	return rep, nil
}

func (d *Driver) runCycle(ctx context.Context, logger *zap.Logger, rep *Report) error {
	if err := aborted(ctx); err != nil {
		return err
	}

	snap, sanitized, err := d.manager.Load(ctx, d.alive)
	if err != nil {
		if ctx.Err() != nil {
			return aborted(ctx)
		}
		return fmt.Errorf("load snapshot: %w", err)
	}
	rep.Sanitized = sanitized
	snap.Cycle = rep.Cycle

	for _, name := range d.regions(snap) {
		if err := aborted(ctx); err != nil {
			return err
		}
		rctx := ctxkeys.WithRegion(ctx, name)
		rr := d.runRegion(rctx, logger.With(zap.String("region", name)), name, snap.Region(name), rep.Cycle)
		rep.Regions = append(rep.Regions, rr)
	}

	if err := aborted(ctx); err != nil {
		return err
	}
	if err := d.manager.Save(ctx, snap); err != nil {
		if ctx.Err() != nil {
			return aborted(ctx)
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// regions lists the view's regions plus any region still held in the
// snapshot, sorted.
func (d *Driver) regions(snap *snapshot.Snapshot) []string {
	set := make(map[string]struct{})
	for _, r := range d.view.Regions() {
		set[r] = struct{}{}
	}
	for _, r := range snap.RegionNames() {
		set[r] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for r := range set {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

func (d *Driver) runRegion(ctx context.Context, logger *zap.Logger, region string, rg *snapshot.Region, cycle int) RegionReport {
	_, span := d.tracer.Start(ctx, "scheduler.region", trace.WithAttributes(
		attribute.String("swarmflow.region", region),
	))
	defer span.End()

	rr := RegionReport{Region: region}

	// 1. 目标评估与认领
	busy := func(id string) bool {
		_, ok := rg.Assignments[id]
		return ok
	}
	pool := objective.NewPool(d.view, region, busy)
	rr.Objectives = d.evaluator.EvaluateAll(d.view, region, rg, pool, cycle)

	// 2. 容量规划与孵化
	if p := d.planner.Load(); p != nil {
		rr.Planned = p.Plan(d.view, region, rg, cycle)
	}
	rr.Spawn = d.supervisor.Run(d.view, d.act, region, rg, cycle)

	// 3. 推进任务
	rr.Tasks = d.advance(logger, rg, cycle)

	// 4. 清理
	rr.Purged = d.purge(rg, cycle)
	rr.Open = openCount(rg)

	span.SetAttributes(
		attribute.Int("swarmflow.claimed", rr.Objectives.Claimed),
		attribute.Int("swarmflow.tasks_done", rr.Tasks.Done),
		attribute.Int("swarmflow.open", rr.Open),
	)
	logger.Debug("region done",
		zap.Int("claimed", rr.Objectives.Claimed),
		zap.Int("planned", rr.Planned),
		zap.Int("spawned", rr.Spawn.Created),
		zap.Int("tasks_done", rr.Tasks.Done),
		zap.Int("tasks_failed", rr.Tasks.Failed),
		zap.Int("purged", rr.Purged),
	)
	return rr
}

// advance steps every assigned worker's task once, in worker id order.
func (d *Driver) advance(logger *zap.Logger, rg *snapshot.Region, cycle int) TaskReport {
	var tr TaskReport
	env := &task.Env{View: d.view, Act: d.act, Cycle: cycle, Logger: logger}

	for _, id := range rg.Workers() {
		desc := rg.Assignments[id]
		holder := rg.Lookup(desc.Objective, desc.Source)

		wk, ok := d.view.Worker(id)
		if !ok {
			d.free(rg, id, holder)
			tr.Dropped++
			continue
		}
		t, err := task.Decode(desc)
		if err != nil {
			logger.Warn("dropping undecodable assignment", zap.String("worker", id), zap.Error(err))
			d.free(rg, id, holder)
			tr.Dropped++
			continue
		}

		out := d.runner.Step(env, t, speculative.Project(wk))
		switch out.Result {
		case task.Done:
			d.free(rg, id, holder)
			if holder != nil {
				holder.Complete()
			}
			tr.Done++
		case task.Failed:
			level := logger.Info
			if !types.IsRetryable(out.Err) {
				level = logger.Warn
			}
			level("task failed",
				zap.String("worker", id),
				zap.String("task", t.String()),
				zap.Int("depth", out.Depth),
				zap.Error(out.Err),
			)
			d.free(rg, id, holder)
			tr.Failed++
		default:
			rg.Assignments[id] = t.Encode()
			tr.InProgress++
		}
	}
	return tr
}

// free drops the worker's assignment and unbinds the request holding it.
func (d *Driver) free(rg *snapshot.Region, workerID string, holder *request.Request) {
	delete(rg.Assignments, workerID)
	if holder != nil && holder.AssignedTo == workerID {
		holder.Unassign()
	}
}

// purge drops completed and expired requests, releasing their workers, and
// returns how many were removed.
func (d *Driver) purge(rg *snapshot.Region, cycle int) int {
	removed := 0
	for _, key := range rg.Objectives() {
		kept, gone := request.Purge(rg.Requests[key], cycle, d.ttl)
		for _, r := range gone {
			if !r.IsAssigned() {
				continue
			}
			if desc, ok := rg.Assignments[r.AssignedTo]; ok && desc.Objective == r.Objective && desc.Source == r.SourceID {
				delete(rg.Assignments, r.AssignedTo)
			}
		}
		removed += len(gone)
		if len(kept) == 0 {
			delete(rg.Requests, key)
			continue
		}
		rg.Requests[key] = kept
	}

	for _, id := range rg.Workers() {
		if !d.alive(id) {
			desc := rg.Assignments[id]
			d.free(rg, id, rg.Lookup(desc.Objective, desc.Source))
		}
	}

	return removed + supervisor.Cleanup(rg, cycle, d.ttl)
}

func (d *Driver) alive(workerID string) bool {
	_, ok := d.view.Worker(workerID)
	return ok
}

func (d *Driver) record(rep Report, status string) {
	for name, v := range rep.Stats() {
		d.recorder.Record(name, v)
	}
	cr, ok := d.recorder.(cycleRecorder)
	if !ok {
		return
	}
	cr.RecordCycle(status, rep.Duration)
	for _, rr := range rep.Regions {
		cr.RecordRegion(rr.Region, rr.Objectives.Claimed, rr.Purged, rr.Open)
	}
	t := rep.Total()
	cr.RecordTaskStep("in_progress", t.Tasks.InProgress)
	cr.RecordTaskStep("done", t.Tasks.Done)
	cr.RecordTaskStep("failed", t.Tasks.Failed)
	cr.RecordSpawn("created", t.Spawn.Created)
	cr.RecordSpawn("busy", t.Spawn.Busy)
	cr.RecordSpawn("insufficient_resource", t.Spawn.Insufficient)
	cr.RecordSpawn("invalid", t.Spawn.Dropped)
}

func aborted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCycleAborted, err)
	}
	return nil
}

func openCount(rg *snapshot.Region) int {
	n := 0
	for _, reqs := range rg.Requests {
		for _, r := range reqs {
			if r.Open() {
				n++
			}
		}
	}
	for _, c := range rg.Capacity {
		if c.Open() {
			n++
		}
	}
	return n
}
