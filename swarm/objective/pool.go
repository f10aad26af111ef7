package objective

import (
	"github.com/BaSui01/swarmflow/swarm/speculative"
	"github.com/BaSui01/swarmflow/world"
)

// Pool is the set of idle workers of a region for one cycle. A claimed
// worker leaves the pool for the rest of the cycle.
type Pool struct {
	order []string
	idle  map[string]*speculative.Worker
}

// NewPool collects the region's live workers that hold no assignment.
func NewPool(view world.View, region string, busy func(workerID string) bool) *Pool {
	p := &Pool{idle: make(map[string]*speculative.Worker)}
	for _, w := range view.Workers(region) {
		if busy != nil && busy(w.ID) {
			continue
		}
		p.order = append(p.order, w.ID)
		p.idle[w.ID] = speculative.Project(w)
	}
	return p
}

// Len returns the number of idle workers left.
func (p *Pool) Len() int {
	return len(p.idle)
}

// Idle reports whether id is still unclaimed.
func (p *Pool) Idle(id string) bool {
	_, ok := p.idle[id]
	return ok
}

// Claim removes id from the pool.
func (p *Pool) Claim(id string) {
	delete(p.idle, id)
}

// Best returns the cheapest idle worker of role for work at pos.
func (p *Pool) Best(view world.View, role string, pos world.Position, part world.Part) (*speculative.Worker, bool) {
	var cands []speculative.Candidate
	for _, id := range p.order {
		w, ok := p.idle[id]
		if !ok || w.Role != role {
			continue
		}
		dist := view.Distance(w.Pos, pos)
		if dist >= world.Unreachable {
			continue
		}
		cands = append(cands, speculative.Candidate{Worker: w, Distance: dist})
	}
	best, ok := speculative.Best(cands, speculative.Demand{Role: role, Pos: pos, Part: part})
	if !ok {
		return nil, false
	}
	return best.Worker, true
}
