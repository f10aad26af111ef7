// Package objective turns world state into prioritized requests and matches
// them to idle workers.
package objective

import (
	"fmt"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/task"
	"github.com/BaSui01/swarmflow/world"
)

// Demand is one desired request: the entity it concerns and how urgent it
// is. Lower priority values are more urgent.
type Demand struct {
	SourceID string
	Priority int
}

// DemandFunc computes the desired request set of a region. It must be free
// of side effects.
type DemandFunc func(view world.View, region string) []Demand

// Objective is a standing goal. It is rebuilt from the registry every cycle
// and holds no state of its own; its requests live in the snapshot.
type Objective struct {
	key      string
	priority int
	role     string
	part     world.Part
	kind     task.Kind
	rng      int
	demand   DemandFunc
}

// New creates an objective whose claimed requests run a task of kind within
// rng of the request's source.
func New(key string, priority int, role string, kind task.Kind, rng int, part world.Part, demand DemandFunc) *Objective {
	return &Objective{
		key:      key,
		priority: priority,
		role:     role,
		part:     part,
		kind:     kind,
		rng:      rng,
		demand:   demand,
	}
}

func (o *Objective) Key() string      { return o.key }
func (o *Objective) Priority() int    { return o.priority }
func (o *Objective) Role() string     { return o.role }
func (o *Objective) Part() world.Part { return o.part }
func (o *Objective) Kind() task.Kind  { return o.kind }

// String implements fmt.Stringer.
func (o *Objective) String() string {
	return fmt.Sprintf("%s(p=%d role=%s)", o.key, o.priority, o.role)
}

// NewTask builds the task a worker runs for req.
func (o *Objective) NewTask(req *request.Request, cycle int) (*task.Task, error) {
	t, err := task.ForKind(o.kind, task.EntityTarget(req.SourceID), o.rng)
	if err != nil {
		return nil, err
	}
	return t.Governs(o.key, req.SourceID, cycle), nil
}

// =============================================================================
// 刷新
// =============================================================================

// RefreshReport counts what Refresh changed.
type RefreshReport struct {
	Created int
	// Gone counts requests whose source no longer resolves.
	Gone int
	// Retired counts unassigned requests that are no longer demanded.
	Retired int
}

func (r *RefreshReport) add(o RefreshReport) {
	r.Created += o.Created
	r.Gone += o.Gone
	r.Retired += o.Retired
}

// Refresh reconciles the objective's requests in rg with its current
// demand. It is idempotent: a second call in the same cycle changes
// nothing.
//
//   - requests whose source no longer resolves are completed and their
//     worker is released;
//   - unassigned requests no longer demanded are completed;
//   - still-demanded requests get their priority refreshed;
//   - new demand becomes new unassigned requests created at cycle.
func (o *Objective) Refresh(view world.View, region string, rg *snapshot.Region, cycle int) RefreshReport {
	var rep RefreshReport

	wanted := make(map[string]Demand)
	var order []string
	for _, d := range o.demand(view, region) {
		if d.SourceID == "" {
			continue
		}
		if _, dup := wanted[d.SourceID]; dup {
			continue
		}
		wanted[d.SourceID] = d
		order = append(order, d.SourceID)
	}

	reqs := rg.Requests[o.key]
	for _, req := range reqs {
		if req.Completed {
			continue
		}
		if _, ok := view.Resolve(req.SourceID); !ok {
			release(rg, req)
			req.Complete()
			rep.Gone++
			continue
		}
		d, demanded := wanted[req.SourceID]
		if !demanded {
			if !req.IsAssigned() {
				req.Complete()
				rep.Retired++
			}
			continue
		}
		req.Priority = d.Priority
	}

	for _, src := range order {
		if request.Find(reqs, src) != nil {
			continue
		}
		d := wanted[src]
		reqs = append(reqs, request.New(o.key, src, d.Priority, cycle))
		rep.Created++
	}
	if len(reqs) > 0 {
		rg.Requests[o.key] = reqs
	}
	return rep
}

// release drops the assignment bound to req, if any.
func release(rg *snapshot.Region, req *request.Request) {
	if !req.IsAssigned() {
		return
	}
	if d, ok := rg.Assignments[req.AssignedTo]; ok && d.Objective == req.Objective && d.Source == req.SourceID {
		delete(rg.Assignments, req.AssignedTo)
	}
	req.Unassign()
}

// =============================================================================
// 认领
// =============================================================================

// claim matches req to the best idle worker in pool and records the task.
// It returns the claimed worker id, or "" when no eligible worker exists.
func (o *Objective) claim(view world.View, rg *snapshot.Region, pool *Pool, req *request.Request, cycle int) (string, error) {
	target, ok := view.Resolve(req.SourceID)
	if !ok {
		return "", nil
	}
	best, ok := pool.Best(view, o.role, target.Pos, o.part)
	if !ok {
		return "", nil
	}
	t, err := o.NewTask(req, cycle)
	if err != nil {
		return "", err
	}
	rg.Assignments[best.ID] = t.Encode()
	req.Assign(best.ID)
	pool.Claim(best.ID)
	return best.ID, nil
}

// EvaluateReport counts what one evaluation did.
type EvaluateReport struct {
	RefreshReport
	Claimed   int
	Unmatched int
}

// Evaluate refreshes this objective alone and claims idle workers for its
// open requests in global order.
func (o *Objective) Evaluate(view world.View, region string, rg *snapshot.Region, pool *Pool, cycle int) (EvaluateReport, error) {
	rep := EvaluateReport{RefreshReport: o.Refresh(view, region, rg, cycle)}

	open := openRequests(rg.Requests[o.key])
	request.Sort(open, nil)
	for _, req := range open {
		id, err := o.claim(view, rg, pool, req, cycle)
		if err != nil {
			return rep, err
		}
		if id == "" {
			rep.Unmatched++
			continue
		}
		rep.Claimed++
	}
	return rep, nil
}

func openRequests(reqs []*request.Request) []*request.Request {
	var open []*request.Request
	for _, r := range reqs {
		if r.Open() {
			open = append(open, r)
		}
	}
	return open
}
