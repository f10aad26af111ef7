// Package supervisor matches capacity requests to idle facilities and plans
// the capacity requests a region needs.
package supervisor

import (
	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/types"
	"github.com/BaSui01/swarmflow/world"
)

// Report counts what one Run did.
type Report struct {
	Attempts     int
	Created      int
	Busy         int
	Insufficient int
	Dropped      int
	// Waiting counts open requests that found no idle facility.
	Waiting int
}

// Supervisor assigns capacity requests to facilities. It remembers the last
// cycle each facility was booked; that state is never persisted.
type Supervisor struct {
	booked map[string]int
	logger *zap.Logger
}

// New creates a supervisor.
func New(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		booked: make(map[string]int),
		logger: logger.With(zap.String("component", "supervisor")),
	}
}

// Booked reports whether facilityID was booked in cycle.
func (s *Supervisor) Booked(facilityID string, cycle int) bool {
	last, ok := s.booked[facilityID]
	return ok && last == cycle
}

func (s *Supervisor) book(facilityID string, cycle int) {
	s.booked[facilityID] = cycle
}

// Run makes at most one creation attempt per facility. Requests are taken in
// global order; each open request goes to its preferred facility when that
// one is idle, otherwise to the first idle facility in registration order.
//
//   - ok: the request completes, records the facility and books it;
//   - busy or insufficient resource: the facility is booked and the request
//     waits for a later cycle;
//   - invalid: the request is dropped and the facility stays free.
func (s *Supervisor) Run(view world.View, act world.Actuator, region string, rg *snapshot.Region, cycle int) Report {
	var rep Report
	facilities := view.Facilities(region)
	request.SortCapacity(rg.Capacity)

	kept := rg.Capacity[:0]
	for _, req := range rg.Capacity {
		if !req.Open() {
			kept = append(kept, req)
			continue
		}
		f, ok := s.pick(facilities, req.PreferredFacility, cycle)
		if !ok {
			rep.Waiting++
			kept = append(kept, req)
			continue
		}

		rep.Attempts++
		res := act.Create(f.ID, req.Spec(req.SourceID, region))
		switch res {
		case world.CreateOK:
			req.Complete()
			req.Assign(f.ID)
			s.book(f.ID, cycle)
			rep.Created++
			s.logger.Info("worker creation started",
				zap.String("region", region),
				zap.String("facility", f.ID),
				zap.String("worker", req.SourceID),
				zap.String("role", req.Role),
			)
		case world.CreateBusy:
			s.book(f.ID, cycle)
			rep.Busy++
		case world.CreateInsufficientResource:
			s.book(f.ID, cycle)
			rep.Insufficient++
		default:
			rep.Dropped++
			s.logger.Warn("dropping capacity request",
				zap.String("region", region),
				zap.String("facility", f.ID),
				zap.Error(types.NewMalformedRequestError(req.ID(), "facility rejected the worker spec")),
			)
			continue
		}
		kept = append(kept, req)
	}
	clear(rg.Capacity[len(kept):])
	rg.Capacity = kept
	return rep
}

func (s *Supervisor) pick(facilities []world.Facility, preferred string, cycle int) (world.Facility, bool) {
	idle := func(f world.Facility) bool {
		return !f.Busy && !s.Booked(f.ID, cycle)
	}
	if preferred != "" {
		for _, f := range facilities {
			if f.ID == preferred && idle(f) {
				return f, true
			}
		}
	}
	for _, f := range facilities {
		if idle(f) {
			return f, true
		}
	}
	return world.Facility{}, false
}

// Cleanup drops capacity requests that are completed or older than ttl,
// regardless of assignment, and returns how many were dropped.
func Cleanup(rg *snapshot.Region, cycle, ttl int) int {
	kept, removed := request.PurgeCapacity(rg.Capacity, cycle, ttl)
	rg.Capacity = kept
	return len(removed)
}
