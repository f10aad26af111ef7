// Package request defines Requests, the prioritized units of demand that
// objectives emit and workers or facilities fulfil.
package request

import (
	"fmt"
	"sort"

	"github.com/BaSui01/swarmflow/world"
)

// DefaultTTL is how many cycles an unfulfilled request survives.
const DefaultTTL = 500

// Request is a unit of demand owned by exactly one objective.
// Identity is (Objective, SourceID).
type Request struct {
	// Objective is the owning objective key. It is implied by the snapshot
	// layout and never serialized inside the request itself.
	Objective string

	SourceID   string
	Priority   int
	AssignedTo string
	Completed  bool
	Created    int
}

// New creates an unassigned request.
func New(objective, sourceID string, priority, cycle int) *Request {
	return &Request{
		Objective: objective,
		SourceID:  sourceID,
		Priority:  priority,
		Created:   cycle,
	}
}

// ID returns the stable identity of the request.
func (r *Request) ID() string {
	return r.Objective + "/" + r.SourceID
}

// String implements fmt.Stringer.
func (r *Request) String() string {
	return fmt.Sprintf("%s(p=%d assigned=%q completed=%t created=%d)",
		r.ID(), r.Priority, r.AssignedTo, r.Completed, r.Created)
}

// IsAssigned reports whether a worker or facility is bound to the request.
func (r *Request) IsAssigned() bool {
	return r.AssignedTo != ""
}

// Open reports whether the request still waits for an assignment.
func (r *Request) Open() bool {
	return !r.Completed && !r.IsAssigned()
}

// Assign binds the request to id.
func (r *Request) Assign(id string) {
	r.AssignedTo = id
}

// Unassign frees the request for re-matching.
func (r *Request) Unassign() {
	r.AssignedTo = ""
}

// Complete marks the request eligible for removal.
func (r *Request) Complete() {
	r.Completed = true
}

// Age returns how many cycles ago the request was created.
func (r *Request) Age(cycle int) int {
	return cycle - r.Created
}

// Expired reports whether the request outlived ttl at cycle.
func (r *Request) Expired(cycle, ttl int) bool {
	return r.Age(cycle) > ttl
}

// Clone returns a copy of the request.
func (r *Request) Clone() *Request {
	cp := *r
	return &cp
}

// CapacityRequest asks a facility to create a worker.
type CapacityRequest struct {
	Request

	Role              string
	Body              []world.Part
	PreferredFacility string
}

// Spec converts the request into a creation spec for a new worker named name.
func (c *CapacityRequest) Spec(name, home string) world.WorkerSpec {
	body := make([]world.Part, len(c.Body))
	copy(body, c.Body)
	return world.WorkerSpec{Name: name, Role: c.Role, Home: home, Body: body}
}

// =============================================================================
// 排序
// =============================================================================

// Rank maps objective keys to their static priority order.
type Rank map[string]int

func (r Rank) of(objective string) int {
	if v, ok := r[objective]; ok {
		return v
	}
	return len(r)
}

// Less is the global request order: lower priority value first, then oldest
// first, then objective order, then source id.
func Less(a, b *Request, rank Rank) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.Created != b.Created {
		return a.Created < b.Created
	}
	if ra, rb := rank.of(a.Objective), rank.of(b.Objective); ra != rb {
		return ra < rb
	}
	if a.Objective != b.Objective {
		return a.Objective < b.Objective
	}
	return a.SourceID < b.SourceID
}

// Sort orders requests in place using Less.
func Sort(reqs []*Request, rank Rank) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return Less(reqs[i], reqs[j], rank)
	})
}

// SortCapacity orders capacity requests in place using Less.
func SortCapacity(reqs []*CapacityRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return Less(&reqs[i].Request, &reqs[j].Request, nil)
	})
}

// =============================================================================
// 清理
// =============================================================================

// Purge splits reqs into survivors and removed ones. A request is removed
// when completed or when older than ttl, regardless of assignment.
func Purge(reqs []*Request, cycle, ttl int) (kept, removed []*Request) {
	kept = reqs[:0:0]
	for _, r := range reqs {
		if r.Completed || r.Expired(cycle, ttl) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// PurgeCapacity is Purge for capacity requests.
func PurgeCapacity(reqs []*CapacityRequest, cycle, ttl int) (kept, removed []*CapacityRequest) {
	kept = reqs[:0:0]
	for _, r := range reqs {
		if r.Completed || r.Expired(cycle, ttl) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// Find returns the request for sourceID, if any.
func Find(reqs []*Request, sourceID string) *Request {
	for _, r := range reqs {
		if r.SourceID == sourceID {
			return r
		}
	}
	return nil
}
