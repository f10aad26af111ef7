package task

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/types"
	"github.com/BaSui01/swarmflow/world"
)

// Ranges of the worker primitives.
const (
	RangeAdjacent = 1
	RangeWork     = 3
)

// Move walks the worker until it is within rng of pos.
func Move(pos world.Position, rng int) *Task {
	target := PositionTarget(pos)
	return &Task{
		Kind:   KindMove,
		Target: target,
		Range:  rng,
		State:  StatePendingPrereq,
		complete: func(env *Env, t *Task, w *speculative.Worker) bool {
			return env.View.Distance(w.Pos, pos) <= rng
		},
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			res := env.Act.MoveToward(w.ID, pos, rng)
			switch {
			case res.Arrived:
				return Done, nil
			case res.Blocked:
				if env.Logger != nil {
					env.Logger.Debug("move blocked",
						zap.String("worker", w.ID),
						zap.String("to", pos.String()),
					)
				}
			}
			return InProgress, nil
		},
	}
}

// Harvest mines a source. A full worker first unloads into the nearest
// storage, so a miner keeps working its source until the request expires.
func Harvest(sourceID string) *Task {
	target := EntityTarget(sourceID)
	return &Task{
		Kind:   KindHarvest,
		Target: target,
		Range:  RangeAdjacent,
		State:  StatePendingPrereq,
		prereqs: []Prerequisite{
			HasFreeCapacity(),
			InRange(target, RangeAdjacent),
		},
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			code := env.Act.Harvest(w.ID, sourceID)
			switch code {
			case world.ActionOK, world.ActionNotInRange, world.ActionEmpty:
				// 能量源枯竭时原地等待再生
				return InProgress, nil
			case world.ActionFull:
				return Done, nil
			}
			return failure(code, sourceID)
		},
	}
}

// Withdraw takes energy out of a storage or facility in one step.
func Withdraw(targetID string) *Task {
	target := EntityTarget(targetID)
	return &Task{
		Kind:   KindWithdraw,
		Target: target,
		Range:  RangeAdjacent,
		State:  StatePendingPrereq,
		prereqs: []Prerequisite{
			HasFreeCapacity(),
			InRange(target, RangeAdjacent),
		},
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			code := env.Act.Withdraw(w.ID, targetID)
			switch code {
			case world.ActionOK, world.ActionFull:
				return Done, nil
			case world.ActionNotInRange:
				return InProgress, nil
			case world.ActionEmpty:
				return Failed, types.NewInsufficientResourceError(fmt.Sprintf("%s has no energy", targetID))
			}
			return failure(code, targetID)
		},
	}
}

// Transfer delivers the worker's load into a storage or facility.
func Transfer(targetID string) *Task {
	target := EntityTarget(targetID)
	return &Task{
		Kind:   KindTransfer,
		Target: target,
		Range:  RangeAdjacent,
		State:  StatePendingPrereq,
		prereqs: []Prerequisite{
			HasEnergy(),
			InRange(target, RangeAdjacent),
		},
		complete: func(env *Env, t *Task, w *speculative.Worker) bool {
			if e, ok := env.View.Resolve(targetID); ok && e.Capacity > 0 && e.FreeCapacity() == 0 {
				return true
			}
			return t.State == StateActive && w.Empty()
		},
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			code := env.Act.Transfer(w.ID, targetID)
			switch code {
			case world.ActionOK, world.ActionFull, world.ActionEmpty:
				return Done, nil
			case world.ActionNotInRange:
				return InProgress, nil
			}
			return failure(code, targetID)
		},
	}
}

// Upgrade spends the worker's load on a controller until the worker is empty.
func Upgrade(controllerID string) *Task {
	target := EntityTarget(controllerID)
	return &Task{
		Kind:   KindUpgrade,
		Target: target,
		Range:  RangeWork,
		State:  StatePendingPrereq,
		prereqs: []Prerequisite{
			HasEnergy(),
			InRange(target, RangeWork),
		},
		complete: drained,
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			code := env.Act.Upgrade(w.ID, controllerID)
			switch code {
			case world.ActionOK, world.ActionNotInRange:
				return InProgress, nil
			case world.ActionEmpty:
				return Done, nil
			}
			return failure(code, controllerID)
		},
	}
}

// Build spends the worker's load on a construction site. The task is done when
// the worker runs dry or the site completes.
func Build(siteID string) *Task {
	target := EntityTarget(siteID)
	return &Task{
		Kind:   KindBuild,
		Target: target,
		Range:  RangeWork,
		State:  StatePendingPrereq,
		prereqs: []Prerequisite{
			HasEnergy(),
			InRange(target, RangeWork),
		},
		complete: drained,
		action: func(env *Env, t *Task, w *speculative.Worker) (Result, error) {
			code := env.Act.Build(w.ID, siteID)
			switch code {
			case world.ActionOK:
				if _, ok := env.View.Resolve(siteID); !ok {
					return Done, nil
				}
				return InProgress, nil
			case world.ActionNotInRange:
				return InProgress, nil
			case world.ActionEmpty:
				return Done, nil
			}
			return failure(code, siteID)
		},
	}
}

// drained 已开始工作且负载耗尽
func drained(env *Env, t *Task, w *speculative.Worker) bool {
	return t.State == StateActive && w.Empty()
}

func failure(code world.ActionCode, targetID string) (Result, error) {
	switch code {
	case world.ActionInvalidTarget:
		return Failed, types.NewTargetGoneError(targetID)
	case world.ActionNoWorker:
		return Failed, types.NewError(types.ErrNotFound, "worker no longer exists")
	default:
		return Failed, types.NewError(types.ErrInternal, fmt.Sprintf("unexpected action result %s", code))
	}
}
