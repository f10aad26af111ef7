package snapshot

import (
	"sort"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/task"
)

// CapacityObjective is the objective key of capacity requests.
const CapacityObjective = "spawn"

// Snapshot is the whole persisted world-model state for one cycle.
type Snapshot struct {
	Version int
	Cycle   int
	Regions map[string]*Region
}

// Region is the persisted state of one controlled region.
type Region struct {
	// Requests are keyed by objective key; each list is in insertion order.
	Requests map[string][]*request.Request
	// Capacity holds pending capacity requests.
	Capacity []*request.CapacityRequest
	// Assignments are keyed by worker id.
	Assignments map[string]task.Descriptor
}

// New creates an empty current-version snapshot.
func New(cycle int) *Snapshot {
	return &Snapshot{
		Version: CurrentVersion,
		Cycle:   cycle,
		Regions: make(map[string]*Region),
	}
}

// NewRegion creates an empty region.
func NewRegion() *Region {
	return &Region{
		Requests:    make(map[string][]*request.Request),
		Assignments: make(map[string]task.Descriptor),
	}
}

// Region returns the named region, creating it when absent.
func (s *Snapshot) Region(name string) *Region {
	r, ok := s.Regions[name]
	if !ok {
		r = NewRegion()
		s.Regions[name] = r
	}
	return r
}

// RegionNames returns region names in sorted order.
func (s *Snapshot) RegionNames() []string {
	names := make([]string, 0, len(s.Regions))
	for name := range s.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Objectives returns the region's objective keys in sorted order.
func (r *Region) Objectives() []string {
	keys := make([]string, 0, len(r.Requests))
	for k := range r.Requests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Workers returns the ids of assigned workers in sorted order.
func (r *Region) Workers() []string {
	ids := make([]string, 0, len(r.Assignments))
	for id := range r.Assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup finds the request identified by (objective, sourceID).
func (r *Region) Lookup(objective, sourceID string) *request.Request {
	return request.Find(r.Requests[objective], sourceID)
}

// RequestCount returns the number of regular requests.
func (r *Region) RequestCount() int {
	n := 0
	for _, reqs := range r.Requests {
		n += len(reqs)
	}
	return n
}

// =============================================================================
// 加载校验
// =============================================================================

// SanitizeReport counts what Sanitize repaired.
type SanitizeReport struct {
	DeadWorkers        int
	Unassigned         int
	DanglingAssignment int
	DroppedRequests    int
	// NoSource counts requests without a source id that were completed.
	NoSource int
}

// Total returns the total number of repairs.
func (r SanitizeReport) Total() int {
	return r.DeadWorkers + r.Unassigned + r.DanglingAssignment + r.DroppedRequests + r.NoSource
}

// Sanitize re-validates externally writable fields against the live worker
// set:
//
//   - assignments of workers that are no longer alive are dropped;
//   - requests without a source id are completed and unbound, so the next
//     purge removes them;
//   - duplicates of a source id are dropped;
//   - assignedTo pointing at a dead worker, at a worker already holding
//     another request in any region, or at a worker without a matching
//     assignment is cleared;
//   - assignments whose request is gone or not bound to the worker are
//     dropped.
//
// Regions are visited in sorted order; a worker bound in several regions
// stays with the first one.
//
// After Sanitize every assignment has exactly one request pointing back at it,
// across the whole snapshot.
func (s *Snapshot) Sanitize(alive func(workerID string) bool) SanitizeReport {
	var rep SanitizeReport
	holders := make(map[string]string) // worker id → region
	for _, name := range s.RegionNames() {
		s.Regions[name].sanitize(name, alive, holders, &rep)
	}
	return rep
}

func (r *Region) sanitize(name string, alive func(string) bool, holders map[string]string, rep *SanitizeReport) {
	for _, id := range r.Workers() {
		if !alive(id) {
			delete(r.Assignments, id)
			rep.DeadWorkers++
		}
	}

	for _, obj := range r.Objectives() {
		reqs := r.Requests[obj]
		kept := reqs[:0]
		seen := make(map[string]struct{}, len(reqs))
		for _, req := range reqs {
			req.Objective = obj
			if req.SourceID == "" {
				if !req.Completed || req.IsAssigned() {
					req.Unassign()
					req.Complete()
					rep.NoSource++
				}
				kept = append(kept, req)
				continue
			}
			if _, dup := seen[req.SourceID]; dup {
				rep.DroppedRequests++
				continue
			}
			seen[req.SourceID] = struct{}{}
			kept = append(kept, req)

			if !req.IsAssigned() {
				continue
			}
			d, ok := r.Assignments[req.AssignedTo]
			_, taken := holders[req.AssignedTo]
			if !ok || taken || d.Objective != obj || d.Source != req.SourceID {
				req.Unassign()
				rep.Unassigned++
				continue
			}
			holders[req.AssignedTo] = name
		}
		r.Requests[obj] = kept
	}

	for _, id := range r.Workers() {
		if holders[id] != name {
			delete(r.Assignments, id)
			rep.DanglingAssignment++
		}
	}

	for _, c := range r.Capacity {
		c.Objective = CapacityObjective
	}
}
