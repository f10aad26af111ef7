package task

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/types"
)

// DefaultMaxDepth bounds prerequisite → sub-task nesting.
const DefaultMaxDepth = 4

var (
	// ErrDepthExceeded is returned when sub-task nesting passes the bound.
	ErrDepthExceeded = errors.New("prerequisite depth exceeded")
	// ErrUnsatisfiable is returned when an unmet prerequisite yields no sub-task.
	ErrUnsatisfiable = errors.New("prerequisite cannot be satisfied")
)

// Outcome reports what one Step did.
type Outcome struct {
	Result Result
	// Performed is the kind of task whose action ran; empty when none ran.
	Performed Kind
	// Depth is 0 for the task itself, >0 for a sub-task.
	Depth int
	Err   error
}

// Runner advances tasks one step at a time.
type Runner struct {
	maxDepth int
	logger   *zap.Logger
}

// NewRunner creates a runner. maxDepth <= 0 selects DefaultMaxDepth.
func NewRunner(maxDepth int, logger *zap.Logger) *Runner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		maxDepth: maxDepth,
		logger:   logger.With(zap.String("component", "task_runner")),
	}
}

// Step advances t by exactly one unit of work for worker w.
//
//  1. A terminal task stays done.
//  2. A target that no longer resolves fails the task.
//  3. A satisfied completion predicate finishes the task without acting.
//  4. Prerequisites are walked in order; the first unmet one is resolved
//     into sub-tasks, recursively, and the deepest sub-task acts. The task
//     stays PENDING_PREREQ.
//  5. Otherwise the task turns ACTIVE and runs its terminal action.
func (r *Runner) Step(env *Env, t *Task, w *speculative.Worker) Outcome {
	if t.State.IsTerminal() {
		return Outcome{Result: Done}
	}

	if _, ok := t.Target.Position(env.View); !ok {
		return Outcome{Result: Failed, Err: types.NewTargetGoneError(t.Target.String())}
	}

	if t.complete != nil && t.complete(env, t, w) {
		t.State = StateDone
		return Outcome{Result: Done}
	}

	leaf, depth, err := r.resolve(env, t, w, 0)
	if err != nil {
		return Outcome{Result: Failed, Depth: depth, Err: err}
	}

	if leaf == t {
		t.State = StateActive
		res, err := t.action(env, t, w)
		if res == Done {
			t.State = StateDone
		}
		return Outcome{Result: res, Performed: t.Kind, Err: err}
	}

	t.State = StatePendingPrereq
	res, err := leaf.action(env, leaf, w)
	r.logger.Debug("sub-task step",
		zap.String("worker", w.ID),
		zap.String("task", t.String()),
		zap.String("sub_task", leaf.String()),
		zap.Int("depth", depth),
		zap.String("result", res.String()),
	)
	if res == Failed {
		if err == nil {
			err = fmt.Errorf("sub-task %s failed", leaf)
		}
		return Outcome{Result: Failed, Performed: leaf.Kind, Depth: depth, Err: err}
	}
	return Outcome{Result: InProgress, Performed: leaf.Kind, Depth: depth}
}

// resolve walks the prerequisite tree of t and returns the task whose action
// should run this cycle. The walk is bounded by maxDepth.
func (r *Runner) resolve(env *Env, t *Task, w *speculative.Worker, depth int) (*Task, int, error) {
	for _, p := range t.prereqs {
		if p.Met(env, w) {
			continue
		}
		if depth >= r.maxDepth {
			return nil, depth, fmt.Errorf("%w: %s at depth %d", ErrDepthExceeded, p.Name, depth)
		}
		subs := p.ToSatisfy(env, w)
		if len(subs) == 0 {
			return nil, depth, fmt.Errorf("%w: %s", ErrUnsatisfiable, p.Name)
		}
		sub := subs[0]
		if _, ok := sub.Target.Position(env.View); !ok {
			return nil, depth + 1, types.NewTargetGoneError(sub.Target.String())
		}
		return r.resolve(env, sub, w, depth+1)
	}
	return t, depth, nil
}
