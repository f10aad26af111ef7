// Package task implements resumable per-worker units of work.
//
// A Task is an ordered list of prerequisites plus a terminal action. Every
// cycle the Runner re-evaluates the prerequisites from scratch; the first
// unmet one is turned into sub-tasks and the worker performs the deepest
// actionable sub-task instead of the terminal action. Tasks advance at most
// one step per cycle and are persisted as a Descriptor between cycles.
package task

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/world"
)

// Kind is the closed set of task variants.
type Kind string

const (
	KindMove     Kind = "move"
	KindHarvest  Kind = "harvest"
	KindWithdraw Kind = "withdraw"
	KindTransfer Kind = "transfer"
	KindUpgrade  Kind = "upgrade"
	KindBuild    Kind = "build"
)

// State 任务状态
type State string

const (
	StatePendingPrereq State = "pending_prereq"
	StateActive        State = "active"
	StateDone          State = "done"
)

// IsTerminal reports whether the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateDone
}

// Result is the tri-state outcome of one step.
type Result int

const (
	InProgress Result = iota
	Done
	Failed
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Target references what a task acts on: an entity id or a bare position.
// Live handles are never kept; ids are re-resolved every cycle.
type Target struct {
	ID  string
	Pos *world.Position
}

// EntityTarget targets an entity by id.
func EntityTarget(id string) Target {
	return Target{ID: id}
}

// PositionTarget targets a bare position.
func PositionTarget(p world.Position) Target {
	return Target{Pos: &p}
}

// String implements fmt.Stringer.
func (t Target) String() string {
	if t.Pos != nil {
		return t.Pos.String()
	}
	return t.ID
}

// Position resolves the target's current position.
func (t Target) Position(view world.View) (world.Position, bool) {
	if t.Pos != nil {
		return *t.Pos, true
	}
	e, ok := view.Resolve(t.ID)
	if !ok {
		return world.Position{}, false
	}
	return e.Pos, true
}

// Env is what a task sees during one cycle.
type Env struct {
	View   world.View
	Act    world.Actuator
	Cycle  int
	Logger *zap.Logger
}

// Prerequisite is a named condition plus the rule producing corrective
// sub-tasks when it is unmet. Both functions must be free of side effects.
type Prerequisite struct {
	Name      string
	Met       func(env *Env, w *speculative.Worker) bool
	ToSatisfy func(env *Env, w *speculative.Worker) []*Task
}

// Action performs one unit of a task's terminal work.
type Action func(env *Env, t *Task, w *speculative.Worker) (Result, error)

// Task is a resumable unit of work bound to one worker.
type Task struct {
	Kind   Kind
	Target Target
	Range  int
	State  State

	// Objective and Source identify the governing request.
	Objective string
	Source    string
	// Started is the cycle the task was created.
	Started int

	prereqs  []Prerequisite
	action   Action
	complete func(env *Env, t *Task, w *speculative.Worker) bool
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return fmt.Sprintf("%s(%s,%s)", t.Kind, t.Target, t.State)
}

// Prerequisites returns the task's prerequisites in declared order.
func (t *Task) Prerequisites() []Prerequisite {
	return t.prereqs
}

// Governs binds the task to the request (objective, source) and the cycle it
// starts in.
func (t *Task) Governs(objective, source string, cycle int) *Task {
	t.Objective = objective
	t.Source = source
	t.Started = cycle
	return t
}
