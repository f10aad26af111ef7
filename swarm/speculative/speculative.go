// Package speculative provides read-only projections of workers and the cost
// model used to rank them against a piece of demand.
package speculative

import (
	"sort"

	"github.com/BaSui01/swarmflow/world"
)

// Worker is a read-only projection of a live worker. Evaluating a
// prerequisite or a cost never mutates the real worker.
type Worker struct {
	ID          string
	Role        string
	Pos         world.Position
	Energy      int
	Capacity    int
	TicksToLive int
	body        map[world.Part]int
}

// Project snapshots a live worker.
func Project(w world.Worker) *Worker {
	body := make(map[world.Part]int, len(w.Body))
	for p, n := range w.Body {
		body[p] = n
	}
	return &Worker{
		ID:          w.ID,
		Role:        w.Role,
		Pos:         w.Pos,
		Energy:      w.Energy,
		Capacity:    w.Capacity,
		TicksToLive: w.TicksToLive,
		body:        body,
	}
}

// Parts returns the number of body parts of kind p.
func (w *Worker) Parts(p world.Part) int {
	return w.body[p]
}

// FreeCapacity returns the energy the worker can still pick up.
func (w *Worker) FreeCapacity() int {
	if w.Capacity <= w.Energy {
		return 0
	}
	return w.Capacity - w.Energy
}

// Empty reports whether the worker carries nothing.
func (w *Worker) Empty() bool {
	return w.Energy <= 0
}

// =============================================================================
// 代价模型
// =============================================================================

// Demand is what a request needs from a worker.
type Demand struct {
	Role string
	Pos  world.Position
	// Part is the body part whose count drives throughput for this demand.
	Part world.Part
}

// Candidate pairs a projection with its path distance to the demand.
type Candidate struct {
	Worker   *Worker
	Distance int
}

const (
	// partWeight is the cost reduction per relevant body part.
	partWeight = 2.0
	// doomedPenalty is added when the worker would expire before arriving.
	doomedPenalty = 10000.0
	// frailPenalty is added when the worker would expire soon after arriving.
	frailPenalty = 100.0
	// frailMargin is how many ticks after arrival still count as frail.
	frailMargin = 50
)

// Cost scores a candidate for a demand; lower is better. It is a pure
// function of its arguments.
func Cost(c Candidate, d Demand) float64 {
	cost := float64(c.Distance)
	if d.Part != "" {
		cost -= partWeight * float64(c.Worker.Parts(d.Part))
	}
	switch ttl := c.Worker.TicksToLive; {
	case ttl <= c.Distance:
		cost += doomedPenalty
	case ttl <= c.Distance+frailMargin:
		cost += frailPenalty
	}
	return cost
}

// Rank orders candidates best first: cost, then distance, then worker id.
func Rank(cands []Candidate, d Demand) {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := Cost(cands[i], d), Cost(cands[j], d)
		if ci != cj {
			return ci < cj
		}
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		return cands[i].Worker.ID < cands[j].Worker.ID
	})
}

// Best returns the best candidate for d, or false when cands is empty.
func Best(cands []Candidate, d Demand) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	ranked := append([]Candidate(nil), cands...)
	Rank(ranked, d)
	return ranked[0], true
}
