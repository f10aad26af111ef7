// Package sim provides a deterministic in-memory world implementing
// world.View and world.Actuator.
//
// Actions apply immediately; Advance moves the clock forward one tick, ages
// workers, finishes pending creations and regenerates sources.
package sim

import (
	"fmt"
	"sort"

	"github.com/BaSui01/swarmflow/world"
)

const (
	// TicksPerPart is how long a facility spends creating each body part.
	TicksPerPart = 1
	// DefaultLifetime is the ticks to live of a freshly created worker.
	DefaultLifetime = 1500
	// DefaultSourceRegen is how often sources refill, in ticks.
	DefaultSourceRegen = 300
)

type pending struct {
	spec      world.WorkerSpec
	remaining int
}

type facility struct {
	world.Facility
	spawning *pending
}

// World 确定性模拟世界
type World struct {
	tick         int
	regions      map[string]struct{}
	entities     map[string]*world.Entity
	workers      map[string]*world.Worker
	facilities   []*facility
	walls        map[world.Position]struct{}
	sourceRegen  int
	regenPerTick int

	// moved 记录每个 worker 最近一次移动的 tick
	moved map[string]int
}

// New creates an empty world at the given tick.
func New(tick int) *World {
	return &World{
		tick:        tick,
		regions:     make(map[string]struct{}),
		entities:    make(map[string]*world.Entity),
		workers:     make(map[string]*world.Worker),
		walls:       make(map[world.Position]struct{}),
		sourceRegen: DefaultSourceRegen,
		moved:       make(map[string]int),
	}
}

// =============================================================================
// 构建
// =============================================================================

// AddEntity registers a non-worker entity.
func (w *World) AddEntity(e world.Entity) {
	cp := e
	w.entities[e.ID] = &cp
	w.regions[e.Pos.Region] = struct{}{}
}

// AddFacility registers a facility; registration order is preserved.
func (w *World) AddFacility(f world.Facility) {
	w.facilities = append(w.facilities, &facility{Facility: f})
	w.regions[f.Pos.Region] = struct{}{}
}

// AddWorker registers a live worker.
func (w *World) AddWorker(wk world.Worker) {
	cp := wk
	if cp.Home == "" {
		cp.Home = cp.Pos.Region
	}
	if cp.Capacity == 0 && cp.Body != nil {
		cp.Capacity = cp.Body[world.PartCarry] * world.CarryPerPart
	}
	if cp.TicksToLive == 0 {
		cp.TicksToLive = DefaultLifetime
	}
	w.workers[cp.ID] = &cp
	w.regions[cp.Home] = struct{}{}
}

// AddWall blocks a tile for movement.
func (w *World) AddWall(p world.Position) {
	w.walls[p] = struct{}{}
}

// Kill removes a worker.
func (w *World) Kill(workerID string) {
	delete(w.workers, workerID)
}

// RemoveEntity removes a non-worker entity.
func (w *World) RemoveEntity(id string) {
	delete(w.entities, id)
}

// SetFacilityBusy toggles a facility's busy flag.
func (w *World) SetFacilityBusy(id string, busy bool) {
	if f := w.facility(id); f != nil {
		f.Busy = busy
	}
}

// SetFacilityEnergy sets a facility's stored energy.
func (w *World) SetFacilityEnergy(id string, energy int) {
	if f := w.facility(id); f != nil {
		f.Energy = energy
	}
}

// =============================================================================
// world.View
// =============================================================================

// Tick implements world.View.
func (w *World) Tick() int { return w.tick }

// Regions implements world.View.
func (w *World) Regions() []string {
	out := make([]string, 0, len(w.regions))
	for r := range w.regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Resolve implements world.View. Facilities resolve as facility entities.
func (w *World) Resolve(id string) (world.Entity, bool) {
	if e, ok := w.entities[id]; ok {
		return *e, true
	}
	if f := w.facility(id); f != nil {
		return world.Entity{
			ID:       f.ID,
			Kind:     world.KindFacility,
			Pos:      f.Pos,
			Energy:   f.Energy,
			Capacity: f.Capacity,
		}, true
	}
	return world.Entity{}, false
}

// Entities implements world.View.
func (w *World) Entities(region string, kind world.EntityKind) []world.Entity {
	var out []world.Entity
	if kind == world.KindFacility {
		for _, f := range w.facilities {
			if f.Pos.Region == region {
				e, _ := w.Resolve(f.ID)
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	for _, e := range w.entities {
		if e.Kind == kind && e.Pos.Region == region {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Workers implements world.View.
func (w *World) Workers(region string) []world.Worker {
	var out []world.Worker
	for _, wk := range w.workers {
		if wk.Home == region {
			out = append(out, *wk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Worker implements world.View.
func (w *World) Worker(id string) (world.Worker, bool) {
	wk, ok := w.workers[id]
	if !ok {
		return world.Worker{}, false
	}
	return *wk, true
}

// Facilities implements world.View.
func (w *World) Facilities(region string) []world.Facility {
	var out []world.Facility
	for _, f := range w.facilities {
		if f.Pos.Region == region {
			cp := f.Facility
			if f.spawning != nil {
				cp.Spawning = f.spawning.spec.Name
			}
			out = append(out, cp)
		}
	}
	return out
}

// Distance implements world.View.
func (w *World) Distance(from, to world.Position) int {
	return from.Range(to)
}

// =============================================================================
// world.Actuator
// =============================================================================

// MoveToward implements world.Actuator. A worker moves at most one tile per tick.
func (w *World) MoveToward(workerID string, to world.Position, rng int) world.MoveResult {
	wk, ok := w.workers[workerID]
	if !ok {
		return world.MoveResult{Blocked: true}
	}
	if wk.Pos.InRangeTo(to, rng) {
		return world.MoveResult{Arrived: true}
	}
	if wk.Pos.Region != to.Region {
		return world.MoveResult{Blocked: true}
	}
	if last, ok := w.moved[workerID]; ok && last == w.tick {
		return world.MoveResult{}
	}

	dx, dy := sign(to.X-wk.Pos.X), sign(to.Y-wk.Pos.Y)
	for _, step := range [][2]int{{dx, dy}, {dx, 0}, {0, dy}} {
		if step[0] == 0 && step[1] == 0 {
			continue
		}
		next := world.Position{Region: wk.Pos.Region, X: wk.Pos.X + step[0], Y: wk.Pos.Y + step[1]}
		if _, blocked := w.walls[next]; blocked {
			continue
		}
		wk.Pos = next
		w.moved[workerID] = w.tick
		return world.MoveResult{Arrived: wk.Pos.InRangeTo(to, rng)}
	}
	return world.MoveResult{Blocked: true}
}

// Harvest implements world.Actuator.
func (w *World) Harvest(workerID, sourceID string) world.ActionCode {
	wk, src, code := w.prepare(workerID, sourceID, 1)
	if code != world.ActionOK {
		return code
	}
	if src.Kind != world.KindSource {
		return world.ActionInvalidTarget
	}
	free := wk.Capacity - wk.Energy
	if free <= 0 {
		return world.ActionFull
	}
	if src.Energy <= 0 {
		return world.ActionEmpty
	}
	amount := min(2*max(wk.Body[world.PartWork], 1), free, src.Energy)
	src.Energy -= amount
	wk.Energy += amount
	return world.ActionOK
}

// Withdraw implements world.Actuator.
func (w *World) Withdraw(workerID, targetID string) world.ActionCode {
	wk, wkOK := w.workers[workerID]
	if !wkOK {
		return world.ActionNoWorker
	}
	if f := w.facility(targetID); f != nil {
		if !wk.Pos.InRangeTo(f.Pos, 1) {
			return world.ActionNotInRange
		}
		return w.take(wk, &f.Energy)
	}
	_, target, code := w.prepare(workerID, targetID, 1)
	if code != world.ActionOK {
		return code
	}
	if target.Kind != world.KindStorage {
		return world.ActionInvalidTarget
	}
	return w.take(wk, &target.Energy)
}

func (w *World) take(wk *world.Worker, stock *int) world.ActionCode {
	free := wk.Capacity - wk.Energy
	if free <= 0 {
		return world.ActionFull
	}
	if *stock <= 0 {
		return world.ActionEmpty
	}
	amount := min(free, *stock)
	*stock -= amount
	wk.Energy += amount
	return world.ActionOK
}

// Transfer implements world.Actuator.
func (w *World) Transfer(workerID, targetID string) world.ActionCode {
	wk, wkOK := w.workers[workerID]
	if !wkOK {
		return world.ActionNoWorker
	}
	if wk.Energy <= 0 {
		return world.ActionEmpty
	}
	if f := w.facility(targetID); f != nil {
		if !wk.Pos.InRangeTo(f.Pos, 1) {
			return world.ActionNotInRange
		}
		return w.give(wk, &f.Energy, f.Capacity)
	}
	_, target, code := w.prepare(workerID, targetID, 1)
	if code != world.ActionOK {
		return code
	}
	if target.Kind != world.KindStorage {
		return world.ActionInvalidTarget
	}
	return w.give(wk, &target.Energy, target.Capacity)
}

func (w *World) give(wk *world.Worker, stock *int, capacity int) world.ActionCode {
	free := capacity - *stock
	if free <= 0 {
		return world.ActionFull
	}
	amount := min(free, wk.Energy)
	*stock += amount
	wk.Energy -= amount
	return world.ActionOK
}

// Upgrade implements world.Actuator.
func (w *World) Upgrade(workerID, controllerID string) world.ActionCode {
	wk, ctrl, code := w.prepare(workerID, controllerID, 3)
	if code != world.ActionOK {
		return code
	}
	if ctrl.Kind != world.KindController {
		return world.ActionInvalidTarget
	}
	if wk.Energy <= 0 {
		return world.ActionEmpty
	}
	amount := min(wk.Energy, max(wk.Body[world.PartWork], 1))
	wk.Energy -= amount
	ctrl.Progress += amount
	return world.ActionOK
}

// Build implements world.Actuator. A finished site disappears.
func (w *World) Build(workerID, siteID string) world.ActionCode {
	wk, site, code := w.prepare(workerID, siteID, 3)
	if code != world.ActionOK {
		return code
	}
	if site.Kind != world.KindSite {
		return world.ActionInvalidTarget
	}
	if wk.Energy <= 0 {
		return world.ActionEmpty
	}
	amount := min(wk.Energy, 5*max(wk.Body[world.PartWork], 1), site.ProgressTotal-site.Progress)
	wk.Energy -= amount
	site.Progress += amount
	if site.Progress >= site.ProgressTotal {
		delete(w.entities, site.ID)
	}
	return world.ActionOK
}

// Create implements world.Actuator.
func (w *World) Create(facilityID string, spec world.WorkerSpec) world.CreateResult {
	f := w.facility(facilityID)
	if f == nil || spec.Validate() != nil {
		return world.CreateInvalid
	}
	if _, taken := w.workers[spec.Name]; taken {
		return world.CreateInvalid
	}
	for _, other := range w.facilities {
		if other.spawning != nil && other.spawning.spec.Name == spec.Name {
			return world.CreateInvalid
		}
	}
	if f.Busy {
		return world.CreateBusy
	}
	cost := spec.Cost()
	if f.Energy < cost {
		return world.CreateInsufficientResource
	}
	f.Energy -= cost
	f.Busy = true
	f.spawning = &pending{spec: spec, remaining: len(spec.Body) * TicksPerPart}
	return world.CreateOK
}

// =============================================================================
// 时钟
// =============================================================================

// Advance moves the world one tick forward.
func (w *World) Advance() {
	w.tick++

	ids := make([]string, 0, len(w.workers))
	for id := range w.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		wk := w.workers[id]
		wk.TicksToLive--
		if wk.TicksToLive <= 0 {
			delete(w.workers, id)
		}
	}

	for _, f := range w.facilities {
		if f.Energy < f.Capacity {
			f.Energy = min(f.Capacity, f.Energy+w.regenPerTick)
		}
		if f.spawning == nil {
			continue
		}
		f.spawning.remaining--
		if f.spawning.remaining > 0 {
			continue
		}
		spec := f.spawning.spec
		f.spawning = nil
		f.Busy = false
		body := make(map[world.Part]int)
		for _, p := range spec.Body {
			body[p]++
		}
		home := spec.Home
		if home == "" {
			home = f.Pos.Region
		}
		w.AddWorker(world.Worker{
			ID:   spec.Name,
			Role: spec.Role,
			Home: home,
			Pos:  f.Pos,
			Body: body,
		})
	}

	if w.sourceRegen > 0 && w.tick%w.sourceRegen == 0 {
		for _, e := range w.entities {
			if e.Kind == world.KindSource {
				e.Energy = e.Capacity
			}
		}
	}
}

// =============================================================================
// 辅助函数
// =============================================================================

func (w *World) facility(id string) *facility {
	for _, f := range w.facilities {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (w *World) prepare(workerID, targetID string, rng int) (*world.Worker, *world.Entity, world.ActionCode) {
	wk, ok := w.workers[workerID]
	if !ok {
		return nil, nil, world.ActionNoWorker
	}
	target, ok := w.entities[targetID]
	if !ok {
		return nil, nil, world.ActionInvalidTarget
	}
	if !wk.Pos.InRangeTo(target.Pos, rng) {
		return nil, nil, world.ActionNotInRange
	}
	return wk, target, world.ActionOK
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (w *World) String() string {
	return fmt.Sprintf("sim.World{tick=%d workers=%d entities=%d facilities=%d}",
		w.tick, len(w.workers), len(w.entities), len(w.facilities))
}
