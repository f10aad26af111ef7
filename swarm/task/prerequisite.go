package task

import (
	"fmt"
	"sort"

	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/world"
)

// =============================================================================
// 内置前置条件
// =============================================================================

// InRange requires the worker to be within rng of target. Its sub-task is a
// Move toward the target's current position.
func InRange(target Target, rng int) Prerequisite {
	return Prerequisite{
		Name: fmt.Sprintf("in_range(%s,%d)", target, rng),
		Met: func(env *Env, w *speculative.Worker) bool {
			pos, ok := target.Position(env.View)
			if !ok {
				return false
			}
			return env.View.Distance(w.Pos, pos) <= rng
		},
		ToSatisfy: func(env *Env, w *speculative.Worker) []*Task {
			pos, ok := target.Position(env.View)
			if !ok {
				return nil
			}
			return []*Task{Move(pos, rng)}
		},
	}
}

// HasEnergy requires the worker to carry energy. Its sub-task withdraws from
// the nearest stocked storage, falling back to harvesting the nearest source.
func HasEnergy() Prerequisite {
	return Prerequisite{
		Name: "has_energy",
		Met: func(env *Env, w *speculative.Worker) bool {
			return !w.Empty()
		},
		ToSatisfy: func(env *Env, w *speculative.Worker) []*Task {
			if w.Capacity <= 0 {
				return nil
			}
			if e, ok := nearest(env, w, world.KindStorage, func(e world.Entity) bool { return e.Energy > 0 }); ok {
				return []*Task{Withdraw(e.ID)}
			}
			if e, ok := nearest(env, w, world.KindSource, func(e world.Entity) bool { return e.Energy > 0 }); ok {
				return []*Task{Harvest(e.ID)}
			}
			return nil
		},
	}
}

// HasFreeCapacity requires room in the worker's carry. Its sub-task dumps the
// load into the nearest storage with room.
func HasFreeCapacity() Prerequisite {
	return Prerequisite{
		Name: "has_free_capacity",
		Met: func(env *Env, w *speculative.Worker) bool {
			return w.FreeCapacity() > 0
		},
		ToSatisfy: func(env *Env, w *speculative.Worker) []*Task {
			if e, ok := nearest(env, w, world.KindStorage, func(e world.Entity) bool { return e.FreeCapacity() > 0 }); ok {
				return []*Task{Transfer(e.ID)}
			}
			return nil
		},
	}
}

// nearest finds the closest entity of kind in the worker's region that passes
// keep. Ties break on id.
func nearest(env *Env, w *speculative.Worker, kind world.EntityKind, keep func(world.Entity) bool) (world.Entity, bool) {
	var cands []world.Entity
	for _, e := range env.View.Entities(w.Pos.Region, kind) {
		if keep(e) {
			cands = append(cands, e)
		}
	}
	if len(cands) == 0 {
		return world.Entity{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := env.View.Distance(w.Pos, cands[i].Pos), env.View.Distance(w.Pos, cands[j].Pos)
		if di != dj {
			return di < dj
		}
		return cands[i].ID < cands[j].ID
	})
	return cands[0], true
}
