package objective

import (
	"github.com/BaSui01/swarmflow/swarm/task"
	"github.com/BaSui01/swarmflow/world"
)

// Worker roles used by the built-in objectives.
const (
	RoleHauler   = "hauler"
	RoleMiner    = "miner"
	RoleEngineer = "engineer"
)

// Built-in objective keys.
const (
	KeyRefill  = "refill"
	KeyHarvest = "harvest"
	KeyBuild   = "build"
	KeyUpgrade = "upgrade"
)

// Refill keeps facilities stocked. A facility below half capacity is more
// urgent than one that is merely not full.
func Refill() *Objective {
	return New(KeyRefill, 1, RoleHauler, task.KindTransfer, task.RangeAdjacent, world.PartCarry,
		func(view world.View, region string) []Demand {
			var out []Demand
			for _, f := range view.Facilities(region) {
				if f.Energy >= f.Capacity {
					continue
				}
				pri := 2
				if f.Energy*2 < f.Capacity {
					pri = 1
				}
				out = append(out, Demand{SourceID: f.ID, Priority: pri})
			}
			return out
		})
}

// Harvest keeps one miner on every source.
func Harvest() *Objective {
	return New(KeyHarvest, 2, RoleMiner, task.KindHarvest, task.RangeAdjacent, world.PartWork,
		entityDemand(world.KindSource, 3))
}

// Build sends engineers to construction sites.
func Build() *Objective {
	return New(KeyBuild, 3, RoleEngineer, task.KindBuild, task.RangeWork, world.PartWork,
		entityDemand(world.KindSite, 4))
}

// Upgrade sends engineers to controllers.
func Upgrade() *Objective {
	return New(KeyUpgrade, 4, RoleEngineer, task.KindUpgrade, task.RangeWork, world.PartWork,
		entityDemand(world.KindController, 6))
}

// Builtins returns the registry of built-in objectives.
func Builtins() *Registry {
	return MustNewRegistry(Refill(), Harvest(), Build(), Upgrade())
}

func entityDemand(kind world.EntityKind, priority int) DemandFunc {
	return func(view world.View, region string) []Demand {
		entities := view.Entities(region, kind)
		out := make([]Demand, 0, len(entities))
		for _, e := range entities {
			out = append(out, Demand{SourceID: e.ID, Priority: priority})
		}
		return out
	}
}
