package objective

import (
	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/world"
)

// Evaluator runs every registered objective over a region.
type Evaluator struct {
	registry *Registry
	logger   *zap.Logger
}

// NewEvaluator creates an evaluator over registry.
func NewEvaluator(registry *Registry, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		registry: registry,
		logger:   logger.With(zap.String("component", "objective_evaluator")),
	}
}

// Registry returns the evaluator's registry.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// EvaluateAll refreshes every objective in priority order, then matches the
// union of open requests against the idle pool in global request order:
// priority, age, objective order, source id. Matching is greedy and single
// pass.
func (e *Evaluator) EvaluateAll(view world.View, region string, rg *snapshot.Region, pool *Pool, cycle int) EvaluateReport {
	var rep EvaluateReport
	for _, o := range e.registry.Objectives() {
		rep.RefreshReport.add(o.Refresh(view, region, rg, cycle))
	}

	queue := request.NewQueue(e.registry.Rank())
	for _, o := range e.registry.Objectives() {
		queue.Push(rg.Requests[o.key]...)
	}

	for queue.Len() > 0 {
		req, _ := queue.Pop()
		o, _ := e.registry.Get(req.Objective)
		if pool.Len() == 0 {
			rep.Unmatched++
			continue
		}
		id, err := o.claim(view, rg, pool, req, cycle)
		if err != nil {
			// 请求本身无效：丢弃，不影响其他请求
			e.logger.Warn("dropping malformed request",
				zap.String("region", region),
				zap.String("request", req.ID()),
				zap.Error(err),
			)
			req.Complete()
			continue
		}
		if id == "" {
			rep.Unmatched++
			continue
		}
		rep.Claimed++
		e.logger.Debug("request claimed",
			zap.String("region", region),
			zap.String("request", req.ID()),
			zap.String("worker", id),
			zap.Int("priority", req.Priority),
		)
	}
	return rep
}
