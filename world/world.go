package world

import "fmt"

// Position is a tile coordinate inside a region.
type Position struct {
	Region string `json:"region" yaml:"region"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("%s(%d,%d)", p.Region, p.X, p.Y)
}

// Unreachable is the range reported between positions in different regions.
const Unreachable = 1 << 20

// Range returns the Chebyshev distance between two positions.
func (p Position) Range(o Position) int {
	if p.Region != o.Region {
		return Unreachable
	}
	dx, dy := abs(p.X-o.X), abs(p.Y-o.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// InRangeTo reports whether o lies within r tiles of p.
func (p Position) InRangeTo(o Position, r int) bool {
	return p.Range(o) <= r
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// EntityKind 实体类型
type EntityKind string

const (
	KindController EntityKind = "controller"
	KindSource     EntityKind = "source"
	KindStorage    EntityKind = "storage"
	KindSite       EntityKind = "site"
	KindFacility   EntityKind = "facility"
)

// Entity is a non-worker object in the world.
type Entity struct {
	ID       string     `json:"id" yaml:"id"`
	Kind     EntityKind `json:"kind" yaml:"kind"`
	Pos      Position   `json:"pos" yaml:"pos"`
	Energy   int        `json:"energy" yaml:"energy"`
	Capacity int        `json:"capacity" yaml:"capacity"`
	// Progress/ProgressTotal apply to controllers and construction sites.
	Progress      int `json:"progress" yaml:"progress"`
	ProgressTotal int `json:"progress_total" yaml:"progress_total"`
}

// FreeCapacity returns how much energy the entity can still accept.
func (e Entity) FreeCapacity() int {
	if e.Capacity <= e.Energy {
		return 0
	}
	return e.Capacity - e.Energy
}

// Part is a body part of a worker.
type Part string

const (
	PartWork  Part = "work"
	PartCarry Part = "carry"
	PartMove  Part = "move"
)

// PartCost is the energy price of each body part.
var PartCost = map[Part]int{
	PartWork:  100,
	PartCarry: 50,
	PartMove:  50,
}

// CarryPerPart is the energy capacity contributed by one carry part.
const CarryPerPart = 50

// Worker is a live mobile unit.
type Worker struct {
	ID          string       `json:"id" yaml:"id"`
	Role        string       `json:"role" yaml:"role"`
	Home        string       `json:"home" yaml:"home"`
	Pos         Position     `json:"pos" yaml:"pos"`
	Energy      int          `json:"energy" yaml:"energy"`
	Capacity    int          `json:"capacity" yaml:"capacity"`
	TicksToLive int          `json:"ticks_to_live" yaml:"ticks_to_live"`
	Body        map[Part]int `json:"body" yaml:"body"`
}

// Facility is an entity able to create new workers.
type Facility struct {
	ID       string   `json:"id" yaml:"id"`
	Pos      Position `json:"pos" yaml:"pos"`
	Busy     bool     `json:"busy" yaml:"busy"`
	Energy   int      `json:"energy" yaml:"energy"`
	Capacity int      `json:"capacity" yaml:"capacity"`
	// Spawning is the name of the worker being created, if any.
	Spawning string `json:"spawning,omitempty" yaml:"-"`
}

// WorkerSpec describes a worker a facility should create.
type WorkerSpec struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Home string `json:"home"`
	Body []Part `json:"body"`
}

// Cost returns the energy required to create the spec.
func (s WorkerSpec) Cost() int {
	total := 0
	for _, p := range s.Body {
		total += PartCost[p]
	}
	return total
}

// Validate reports why a spec cannot be created, if at all.
func (s WorkerSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Role == "" {
		return fmt.Errorf("missing role")
	}
	if len(s.Body) == 0 {
		return fmt.Errorf("empty body")
	}
	for _, p := range s.Body {
		if _, ok := PartCost[p]; !ok {
			return fmt.Errorf("unknown body part %q", p)
		}
	}
	return nil
}
