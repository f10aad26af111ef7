package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/BaSui01/swarmflow/swarm/objective"
	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/supervisor"
	"github.com/BaSui01/swarmflow/swarm/task"
	"github.com/BaSui01/swarmflow/types"
	"github.com/BaSui01/swarmflow/world"
	"github.com/BaSui01/swarmflow/world/sim"
)

const region = "W1N1"

func at(x, y int) world.Position {
	return world.Position{Region: region, X: x, Y: y}
}

func engineer(id string, pos world.Position) world.Worker {
	return world.Worker{
		ID:   id,
		Role: objective.RoleEngineer,
		Pos:  pos,
		Body: map[world.Part]int{world.PartWork: 1, world.PartCarry: 1, world.PartMove: 1},
	}
}

// upgradeObjective demands an upgrade of every (controller, priority) pair.
func upgradeObjective(pri int, demand ...objective.Demand) *objective.Objective {
	return objective.New(objective.KeyUpgrade, pri, objective.RoleEngineer, task.KindUpgrade, task.RangeWork, world.PartWork,
		func(world.View, string) []objective.Demand { return demand })
}

type harness struct {
	world   *sim.World
	backend *snapshot.MemoryBackend
	manager *snapshot.Manager
	driver  *Driver
}

func newHarness(t *testing.T, w *sim.World, opts ...Option) *harness {
	t.Helper()
	backend := snapshot.NewMemoryBackend()
	logger := zaptest.NewLogger(t)
	m := snapshot.NewManager(backend, "test", logger)
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &harness{world: w, backend: backend, manager: m, driver: New(m, w, w, opts...)}
}

func (h *harness) seed(t *testing.T, s *snapshot.Snapshot) {
	t.Helper()
	require.NoError(t, h.manager.Save(context.Background(), s))
}

func (h *harness) saved(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s, _, err := h.manager.Load(context.Background(), nil)
	require.NoError(t, err)
	return s
}

func (h *harness) run(t *testing.T) Report {
	t.Helper()
	rep, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	return rep
}

// =============================================================================
// 端到端场景
// =============================================================================

func TestRunCycle_ClaimsIdleWorker(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "Controller1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "src-1", Kind: world.KindSource, Pos: at(5, 5), Energy: 100, Capacity: 100})
	w.AddWorker(engineer("eng-1", at(10, 10)))

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(
		upgradeObjective(1, objective.Demand{SourceID: "Controller1", Priority: 1}),
	)))
	s := snapshot.New(0)
	s.Region(region).Requests[objective.KeyUpgrade] = []*request.Request{
		request.New(objective.KeyUpgrade, "Controller1", 1, 0),
	}
	h.seed(t, s)

	rep := h.run(t)
	assert.Equal(t, 1, rep.Total().Objectives.Claimed)
	assert.Equal(t, 1, rep.Total().Tasks.InProgress)

	got := h.saved(t)
	assert.Equal(t, 1, got.Cycle)
	rg := got.Regions[region]
	req := rg.Lookup(objective.KeyUpgrade, "Controller1")
	require.NotNil(t, req)
	assert.Equal(t, "eng-1", req.AssignedTo)

	desc, ok := rg.Assignments["eng-1"]
	require.True(t, ok)
	assert.Equal(t, task.KindUpgrade, desc.Kind)
	assert.Contains(t, []task.State{task.StatePendingPrereq, task.StateActive}, desc.State)
}

func TestRunCycle_GoneTargetCompletesWithoutTask(t *testing.T) {
	w := sim.New(1)
	w.AddWorker(engineer("eng-1", at(10, 10)))

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1))))
	s := snapshot.New(0)
	s.Region(region).Requests[objective.KeyUpgrade] = []*request.Request{
		request.New(objective.KeyUpgrade, "Controller1", 1, 0),
	}
	h.seed(t, s)

	rep := h.run(t)
	total := rep.Total()
	assert.Equal(t, 1, total.Objectives.Gone)
	assert.Zero(t, total.Objectives.Claimed)
	assert.Equal(t, 1, total.Purged, "completed requests are purged in the same cycle")

	rg := h.saved(t).Regions[region]
	assert.Nil(t, rg.Lookup(objective.KeyUpgrade, "Controller1"))
	assert.Empty(t, rg.Assignments)
}

func TestRunCycle_MostUrgentRequestWins(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-a", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "ctrl-b", Kind: world.KindController, Pos: at(30, 30)})
	w.AddEntity(world.Entity{ID: "src-1", Kind: world.KindSource, Pos: at(5, 5), Energy: 100, Capacity: 100})
	w.AddWorker(engineer("eng-1", at(10, 10)))

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1,
		objective.Demand{SourceID: "ctrl-a", Priority: 10},
		objective.Demand{SourceID: "ctrl-b", Priority: 5},
	))))

	rep := h.run(t)
	assert.Equal(t, 1, rep.Total().Objectives.Claimed)
	assert.Equal(t, 1, rep.Total().Objectives.Unmatched)

	rg := h.saved(t).Regions[region]
	assert.Equal(t, "eng-1", rg.Lookup(objective.KeyUpgrade, "ctrl-b").AssignedTo)
	assert.False(t, rg.Lookup(objective.KeyUpgrade, "ctrl-a").IsAssigned())
}

func TestRunCycle_NoFacilityDoubleBooking(t *testing.T) {
	w := sim.New(1)
	w.AddFacility(world.Facility{ID: "spawn-1", Pos: at(25, 25), Energy: 1000, Capacity: 1000})

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1))))
	s := snapshot.New(0)
	rg := s.Region(region)
	body := []world.Part{world.PartCarry, world.PartMove}
	for _, c := range []struct {
		name string
		pri  int
	}{{"hauler-1", 1}, {"hauler-2", 2}} {
		rg.Capacity = append(rg.Capacity, &request.CapacityRequest{
			Request:           *request.New(snapshot.CapacityObjective, c.name, c.pri, 0),
			Role:              objective.RoleHauler,
			Body:              body,
			PreferredFacility: "spawn-1",
		})
	}
	h.seed(t, s)

	rep := h.run(t)
	spawn := rep.Total().Spawn
	assert.Equal(t, 1, spawn.Attempts)
	assert.Equal(t, 1, spawn.Created)
	assert.Equal(t, 1, spawn.Waiting)

	got := h.saved(t).Regions[region]
	require.Len(t, got.Capacity, 1, "the accepted request is completed and purged")
	assert.Equal(t, "hauler-2", got.Capacity[0].SourceID)
	assert.False(t, got.Capacity[0].IsAssigned())
	assert.Equal(t, "hauler-1", w.Facilities(region)[0].Spawning)
}

// =============================================================================
// 任务推进
// =============================================================================

func TestRunCycle_DoneTaskCompletesRequest(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "store-1", Kind: world.KindStorage, Pos: at(11, 10), Capacity: 500})
	hauler := world.Worker{
		ID:     "hauler-1",
		Role:   objective.RoleHauler,
		Pos:    at(10, 10),
		Energy: 50,
		Body:   map[world.Part]int{world.PartCarry: 1, world.PartMove: 1},
	}
	w.AddWorker(hauler)

	refill := objective.New(objective.KeyRefill, 1, objective.RoleHauler, task.KindTransfer, task.RangeAdjacent, world.PartCarry,
		func(world.View, string) []objective.Demand {
			return []objective.Demand{{SourceID: "store-1", Priority: 1}}
		})
	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(refill)))

	rep := h.run(t)
	total := rep.Total()
	assert.Equal(t, 1, total.Objectives.Claimed)
	assert.Equal(t, 1, total.Tasks.Done)
	assert.Equal(t, 1, total.Purged)

	e, ok := w.Resolve("store-1")
	require.True(t, ok)
	assert.Equal(t, 50, e.Energy)

	rg := h.saved(t).Regions[region]
	assert.Empty(t, rg.Assignments)
	assert.Nil(t, rg.Lookup(objective.KeyRefill, "store-1"))
}

func TestRunCycle_FailedTaskFreesWorker(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	// 没有能量来源：HasEnergy 无法满足
	w.AddWorker(engineer("eng-1", at(10, 10)))

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(
		upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}),
	)))

	rep := h.run(t)
	assert.Equal(t, 1, rep.Total().Tasks.Failed)

	rg := h.saved(t).Regions[region]
	req := rg.Lookup(objective.KeyUpgrade, "ctrl-1")
	require.NotNil(t, req)
	assert.False(t, req.IsAssigned())
	assert.False(t, req.Completed)
	assert.Empty(t, rg.Assignments)
}

func TestRunCycle_DeadWorkerIsReleased(t *testing.T) {
	w := sim.New(5)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(
		upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}),
	)))
	s := snapshot.New(4)
	rg := s.Region(region)
	req := request.New(objective.KeyUpgrade, "ctrl-1", 1, 0)
	req.Assign("ghost")
	rg.Requests[objective.KeyUpgrade] = []*request.Request{req}
	rg.Assignments["ghost"] = task.Upgrade("ctrl-1").Governs(objective.KeyUpgrade, "ctrl-1", 0).Encode()
	h.seed(t, s)

	rep := h.run(t)
	assert.Equal(t, 1, rep.Sanitized.DeadWorkers)

	got := h.saved(t).Regions[region]
	assert.Empty(t, got.Assignments)
	assert.False(t, got.Lookup(objective.KeyUpgrade, "ctrl-1").IsAssigned())
}

func TestRunCycle_UndecodableAssignmentIsDropped(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddWorker(engineer("eng-1", at(10, 10)))

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(
		upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}),
	)))
	s := snapshot.New(0)
	rg := s.Region(region)
	req := request.New(objective.KeyUpgrade, "ctrl-1", 1, 0)
	req.Assign("eng-1")
	rg.Requests[objective.KeyUpgrade] = []*request.Request{req}
	rg.Assignments["eng-1"] = task.Descriptor{Kind: "teleport", Target: task.EntityTarget("ctrl-1"), Objective: objective.KeyUpgrade, Source: "ctrl-1"}
	h.seed(t, s)

	rep := h.run(t)
	assert.Equal(t, 1, rep.Total().Tasks.Dropped)

	got := h.saved(t).Regions[region]
	assert.Empty(t, got.Assignments)
	assert.False(t, got.Lookup(objective.KeyUpgrade, "ctrl-1").IsAssigned())
}

func TestRunCycle_WorkerHeldInTwoRegionsStepsOnce(t *testing.T) {
	const east = "W2N2"
	w := sim.New(3)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "src-1", Kind: world.KindSource, Pos: at(5, 5), Energy: 100, Capacity: 100})
	w.AddEntity(world.Entity{ID: "ctrl-2", Kind: world.KindController, Pos: world.Position{Region: east, X: 20, Y: 20}})
	w.AddWorker(engineer("eng-1", at(10, 10)))

	perRegion := objective.New(objective.KeyUpgrade, 1, objective.RoleEngineer, task.KindUpgrade, task.RangeWork, world.PartWork,
		func(_ world.View, r string) []objective.Demand {
			if r == east {
				return []objective.Demand{{SourceID: "ctrl-2", Priority: 1}}
			}
			return []objective.Demand{{SourceID: "ctrl-1", Priority: 1}}
		})
	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(perRegion)))

	s := snapshot.New(2)
	for _, c := range []struct{ region, ctrl string }{{region, "ctrl-1"}, {east, "ctrl-2"}} {
		rg := s.Region(c.region)
		req := request.New(objective.KeyUpgrade, c.ctrl, 1, 0)
		req.Assign("eng-1")
		rg.Requests[objective.KeyUpgrade] = []*request.Request{req}
		rg.Assignments["eng-1"] = task.Upgrade(c.ctrl).Governs(objective.KeyUpgrade, c.ctrl, 0).Encode()
	}
	h.seed(t, s)

	rep := h.run(t)
	assert.Equal(t, 1, rep.Sanitized.Unassigned)
	assert.Equal(t, 1, rep.Sanitized.DanglingAssignment)
	assert.Equal(t, 1, rep.Total().Tasks.InProgress, "the worker steps once per cycle")

	got := h.saved(t)
	holders := 0
	for _, name := range got.RegionNames() {
		rg := got.Regions[name]
		for _, reqs := range rg.Requests {
			for _, req := range reqs {
				if req.AssignedTo == "eng-1" {
					holders++
				}
			}
		}
	}
	assert.Equal(t, 1, holders)
	assert.Equal(t, "eng-1", got.Regions[region].Lookup(objective.KeyUpgrade, "ctrl-1").AssignedTo)
	assert.False(t, got.Regions[east].Lookup(objective.KeyUpgrade, "ctrl-2").IsAssigned())
	assert.Empty(t, got.Regions[east].Assignments)
}

// =============================================================================
// TTL 与清理
// =============================================================================

func TestRunCycle_TTLBoundary(t *testing.T) {
	seed := func() *snapshot.Snapshot {
		s := snapshot.New(0)
		rg := s.Region(region)
		req := request.New(objective.KeyUpgrade, "ctrl-1", 1, 0)
		req.Assign("eng-1")
		rg.Requests[objective.KeyUpgrade] = []*request.Request{req}
		rg.Assignments["eng-1"] = task.Upgrade("ctrl-1").Governs(objective.KeyUpgrade, "ctrl-1", 0).Encode()
		return s
	}
	newWorld := func(tick int) *sim.World {
		w := sim.New(tick)
		w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
		w.AddEntity(world.Entity{ID: "src-1", Kind: world.KindSource, Pos: at(5, 5), Energy: 100, Capacity: 100})
		w.AddWorker(engineer("eng-1", at(10, 10)))
		return w
	}
	registry := func() *objective.Registry {
		return objective.MustNewRegistry(upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}))
	}

	t.Run("kept at TTL", func(t *testing.T) {
		h := newHarness(t, newWorld(500), WithRegistry(registry()), WithTTL(500))
		h.seed(t, seed())

		rep := h.run(t)
		assert.Zero(t, rep.Total().Purged)
		rg := h.saved(t).Regions[region]
		require.NotNil(t, rg.Lookup(objective.KeyUpgrade, "ctrl-1"))
		assert.Contains(t, rg.Assignments, "eng-1")
	})

	t.Run("removed after TTL", func(t *testing.T) {
		h := newHarness(t, newWorld(501), WithRegistry(registry()), WithTTL(500))
		h.seed(t, seed())

		rep := h.run(t)
		assert.Equal(t, 1, rep.Total().Purged)
		rg := h.saved(t).Regions[region]
		assert.Nil(t, rg.Lookup(objective.KeyUpgrade, "ctrl-1"))
		assert.NotContains(t, rg.Assignments, "eng-1", "the purged request's task is cancelled")
	})

	t.Run("default TTL", func(t *testing.T) {
		h := newHarness(t, newWorld(request.DefaultTTL+1), WithRegistry(registry()))
		h.seed(t, seed())

		rep := h.run(t)
		assert.Equal(t, 1, rep.Total().Purged)
		assert.Equal(t, request.DefaultTTL, h.driver.ttl)
	})
}

func TestRunCycle_SameTickIsIdempotent(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "ctrl-2", Kind: world.KindController, Pos: at(30, 30)})

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1,
		objective.Demand{SourceID: "ctrl-1", Priority: 1},
		objective.Demand{SourceID: "ctrl-2", Priority: 1},
	))))

	first := h.run(t)
	assert.Equal(t, 2, first.Total().Objectives.Created)

	second := h.run(t)
	assert.Zero(t, second.Total().Objectives.Created)
	assert.Equal(t, 2, h.saved(t).Regions[region].RequestCount())
}

// =============================================================================
// 中止与错误
// =============================================================================

func TestRunCycle_CancelledContextSavesNothing(t *testing.T) {
	w := sim.New(7)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(
		upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}),
	)))
	h.seed(t, snapshot.New(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.driver.RunCycle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleAborted)
	assert.ErrorIs(t, err, context.Canceled)

	s := h.saved(t)
	assert.Equal(t, 3, s.Cycle)
	assert.Empty(t, s.Regions)
}

func TestRunCycle_SchemaErrorIsFatal(t *testing.T) {
	h := newHarness(t, sim.New(1))
	require.NoError(t, h.backend.Put(context.Background(), "test", []byte(`{"version":99,"cycle":1,"regions":{}}`)))

	_, err := h.driver.RunCycle(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCycleAborted)
	assert.Equal(t, types.ErrSchema, types.GetErrorCode(err))

	data, err := h.backend.Get(context.Background(), "test")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":99,"cycle":1,"regions":{}}`, string(data), "the rejected snapshot is left untouched")
}

// =============================================================================
// 容量规划
// =============================================================================

func TestRunCycle_PlannerSpawnsShortfall(t *testing.T) {
	w := sim.New(1)
	w.AddFacility(world.Facility{ID: "spawn-1", Pos: at(25, 25), Energy: 1000, Capacity: 1000})

	p, err := supervisor.NewPlanner([]supervisor.Quota{
		{Role: objective.RoleHauler, Count: 1, Body: []world.Part{world.PartCarry, world.PartMove}, Priority: 1},
	}, nil)
	require.NoError(t, err)

	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1))), WithPlanner(p))

	rep := h.run(t)
	assert.Equal(t, 1, rep.Total().Planned)
	assert.Equal(t, 1, rep.Total().Spawn.Created)

	// 创建进行中不会重复规划
	rep = h.run(t)
	assert.Zero(t, rep.Total().Planned)

	w.Advance()
	w.Advance()
	_, ok := w.Worker("hauler-1")
	assert.True(t, ok)

	rep = h.run(t)
	assert.Zero(t, rep.Total().Planned)
	assert.Zero(t, rep.Total().Spawn.Attempts)
}

func TestDriver_SetPlanner(t *testing.T) {
	w := sim.New(1)
	w.AddFacility(world.Facility{ID: "spawn-1", Pos: at(25, 25), Energy: 1000, Capacity: 1000})
	h := newHarness(t, w, WithRegistry(objective.MustNewRegistry(upgradeObjective(1))))

	assert.Zero(t, h.run(t).Total().Planned)

	p, err := supervisor.NewPlanner([]supervisor.Quota{
		{Role: objective.RoleMiner, Count: 2, Body: []world.Part{world.PartWork, world.PartMove}, Priority: 1},
	}, nil)
	require.NoError(t, err)
	h.driver.SetPlanner(p)

	assert.Equal(t, 2, h.run(t).Total().Planned)
}

// =============================================================================
// 观测
// =============================================================================

type fakeRecorder struct {
	mu      sync.Mutex
	stats   map[string]float64
	cycles  []string
	regions map[string]int
	steps   map[string]int
	spawns  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		stats:   make(map[string]float64),
		regions: make(map[string]int),
		steps:   make(map[string]int),
		spawns:  make(map[string]int),
	}
}

func (f *fakeRecorder) Record(name string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[name] = value
}

func (f *fakeRecorder) RecordCycle(status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, status)
}

func (f *fakeRecorder) RecordRegion(region string, claimed, _, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[region] += claimed
}

func (f *fakeRecorder) RecordTaskStep(result string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[result] += n
}

func (f *fakeRecorder) RecordSpawn(outcome string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns[outcome] += n
}

func TestRunCycle_RecordsMetrics(t *testing.T) {
	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "src-1", Kind: world.KindSource, Pos: at(5, 5), Energy: 100, Capacity: 100})
	w.AddWorker(engineer("eng-1", at(10, 10)))

	rec := newFakeRecorder()
	h := newHarness(t, w,
		WithRegistry(objective.MustNewRegistry(upgradeObjective(1, objective.Demand{SourceID: "ctrl-1", Priority: 1}))),
		WithRecorder(rec),
	)
	h.run(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.driver.RunCycle(ctx)
	require.Error(t, err)

	assert.Equal(t, []string{"ok", "aborted"}, rec.cycles)
	assert.Equal(t, 1, rec.regions[region])
	assert.Equal(t, 1, rec.steps["in_progress"])
	assert.Equal(t, float64(1), rec.stats["cycle"])
}

func TestRunCycle_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	w := sim.New(1)
	w.AddEntity(world.Entity{ID: "ctrl-1", Kind: world.KindController, Pos: at(20, 20)})
	w.AddEntity(world.Entity{ID: "ctrl-9", Kind: world.KindController, Pos: world.Position{Region: "W2N1", X: 1, Y: 1}})

	h := newHarness(t, w, WithTracer(tp.Tracer("test")))
	rep := h.run(t)
	require.Len(t, rep.Regions, 2)
	assert.Equal(t, "W1N1", rep.Regions[0].Region)
	assert.Equal(t, "W2N1", rep.Regions[1].Region)

	ended := sr.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "scheduler.region", ended[0].Name())
	assert.Equal(t, "scheduler.region", ended[1].Name())
	assert.Equal(t, "scheduler.cycle", ended[2].Name())
	assert.Equal(t, ended[2].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

// =============================================================================
// 性质测试
// =============================================================================

// TestRunCycle_AssignmentsStayConsistent drives random worlds through
// several cycles and checks that every worker holds at most one request and
// every assignment is backed by exactly the request bound to it.
func TestRunCycle_AssignmentsStayConsistent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := sim.New(1)
		roles := []string{objective.RoleHauler, objective.RoleMiner, objective.RoleEngineer}

		nEntities := rapid.IntRange(1, 5).Draw(rt, "entities")
		for i := 0; i < nEntities; i++ {
			kind := rapid.SampledFrom([]world.EntityKind{world.KindController, world.KindSource, world.KindSite}).Draw(rt, "kind")
			w.AddEntity(world.Entity{
				ID:            fmt.Sprintf("e-%d", i),
				Kind:          kind,
				Pos:           at(rapid.IntRange(0, 30).Draw(rt, "x"), rapid.IntRange(0, 30).Draw(rt, "y")),
				Energy:        100,
				Capacity:      100,
				ProgressTotal: 50,
			})
		}
		nWorkers := rapid.IntRange(0, 5).Draw(rt, "workers")
		for i := 0; i < nWorkers; i++ {
			w.AddWorker(world.Worker{
				ID:   fmt.Sprintf("w-%d", i),
				Role: rapid.SampledFrom(roles).Draw(rt, "role"),
				Pos:  at(rapid.IntRange(0, 30).Draw(rt, "wx"), rapid.IntRange(0, 30).Draw(rt, "wy")),
				Body: map[world.Part]int{world.PartWork: 1, world.PartCarry: 1, world.PartMove: 1},
			})
		}

		m := snapshot.NewManager(snapshot.NewMemoryBackend(), "prop", nil)
		d := New(m, w, w)

		cycles := rapid.IntRange(1, 6).Draw(rt, "cycles")
		for c := 0; c < cycles; c++ {
			if _, err := d.RunCycle(context.Background()); err != nil {
				rt.Fatalf("cycle %d: %v", c, err)
			}
			s, _, err := m.Load(context.Background(), nil)
			if err != nil {
				rt.Fatalf("load: %v", err)
			}
			for name, rg := range s.Regions {
				holders := make(map[string]string)
				for _, reqs := range rg.Requests {
					for _, r := range reqs {
						if !r.IsAssigned() {
							continue
						}
						if prev, dup := holders[r.AssignedTo]; dup {
							rt.Fatalf("%s: worker %s holds %s and %s", name, r.AssignedTo, prev, r.ID())
						}
						holders[r.AssignedTo] = r.ID()
						desc, ok := rg.Assignments[r.AssignedTo]
						if !ok || desc.Objective != r.Objective || desc.Source != r.SourceID {
							rt.Fatalf("%s: request %s has no matching assignment", name, r.ID())
						}
					}
				}
				for id, desc := range rg.Assignments {
					r := rg.Lookup(desc.Objective, desc.Source)
					if r == nil || r.AssignedTo != id {
						rt.Fatalf("%s: assignment of %s is orphaned", name, id)
					}
				}
			}

			w.Advance()
			if nWorkers > 0 && rapid.Bool().Draw(rt, "kill") {
				w.Kill(fmt.Sprintf("w-%d", rapid.IntRange(0, nWorkers-1).Draw(rt, "victim")))
			}
		}
	})
}
