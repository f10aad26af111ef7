package world

// View is the read side of the world for one cycle.
// Every listing is returned in a deterministic order.
type View interface {
	// Tick returns the current cycle number.
	Tick() int

	// Regions lists the regions under control, sorted.
	Regions() []string

	// Resolve looks an entity up by id. Workers do not resolve as entities.
	Resolve(id string) (Entity, bool)

	// Entities lists entities of a kind inside a region, sorted by id.
	Entities(region string, kind EntityKind) []Entity

	// Workers lists live workers whose home is region, sorted by id.
	Workers(region string) []Worker

	// Worker looks a live worker up by id.
	Worker(id string) (Worker, bool)

	// Facilities lists a region's facilities in registration order.
	Facilities(region string) []Facility

	// Distance returns the path distance between two positions.
	Distance(from, to Position) int
}

// MoveResult 移动结果
type MoveResult struct {
	Arrived bool
	Blocked bool
}

// ActionCode is the outcome of a worker primitive.
type ActionCode int

const (
	ActionOK ActionCode = iota
	ActionNotInRange
	ActionFull
	ActionEmpty
	ActionInvalidTarget
	ActionNoWorker
)

// String implements fmt.Stringer.
func (c ActionCode) String() string {
	switch c {
	case ActionOK:
		return "ok"
	case ActionNotInRange:
		return "not_in_range"
	case ActionFull:
		return "full"
	case ActionEmpty:
		return "empty"
	case ActionInvalidTarget:
		return "invalid_target"
	case ActionNoWorker:
		return "no_worker"
	default:
		return "unknown"
	}
}

// CreateResult is the outcome of a facility creation attempt.
type CreateResult int

const (
	CreateOK CreateResult = iota
	CreateBusy
	CreateInsufficientResource
	CreateInvalid
)

// String implements fmt.Stringer.
func (r CreateResult) String() string {
	switch r {
	case CreateOK:
		return "ok"
	case CreateBusy:
		return "busy"
	case CreateInsufficientResource:
		return "insufficient_resource"
	case CreateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Actuator is the write side of the world: the primitives workers and
// facilities can perform during a cycle.
type Actuator interface {
	MoveToward(workerID string, to Position, rng int) MoveResult
	Harvest(workerID, sourceID string) ActionCode
	Withdraw(workerID, targetID string) ActionCode
	Transfer(workerID, targetID string) ActionCode
	Upgrade(workerID, controllerID string) ActionCode
	Build(workerID, siteID string) ActionCode
	Create(facilityID string, spec WorkerSpec) CreateResult
}
