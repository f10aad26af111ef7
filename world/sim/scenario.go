package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/swarmflow/world"
)

// Scenario is the YAML description of an initial world.
//
//	tick: 1
//	facility_regen: 5
//	facilities:
//	  - {id: spawn-1, pos: {region: W1N1, x: 10, y: 10}, energy: 300, capacity: 300}
//	entities:
//	  - {id: ctrl-1, kind: controller, pos: {region: W1N1, x: 20, y: 20}}
//	workers:
//	  - {id: eng-1, role: engineer, pos: {region: W1N1, x: 11, y: 10}, body: {work: 1, carry: 1, move: 1}}
type Scenario struct {
	Tick          int              `yaml:"tick"`
	SourceRegen   int              `yaml:"source_regen"`
	FacilityRegen int              `yaml:"facility_regen"`
	Facilities    []world.Facility `yaml:"facilities"`
	Entities      []world.Entity   `yaml:"entities"`
	Workers       []world.Worker   `yaml:"workers"`
	Walls         []world.Position `yaml:"walls"`
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads and builds a world from a YAML scenario file.
func LoadScenario(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	return sc.Build(), nil
}

// Validate checks ids are unique across the scenario.
func (sc *Scenario) Validate() error {
	seen := make(map[string]struct{})
	check := func(id string) error {
		if id == "" {
			return fmt.Errorf("scenario object without id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate id %q in scenario", id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, f := range sc.Facilities {
		if err := check(f.ID); err != nil {
			return err
		}
	}
	for _, e := range sc.Entities {
		if err := check(e.ID); err != nil {
			return err
		}
		if e.Kind == world.KindFacility {
			return fmt.Errorf("entity %q: facilities belong under facilities", e.ID)
		}
	}
	for _, wk := range sc.Workers {
		if err := check(wk.ID); err != nil {
			return err
		}
	}
	return nil
}

// Build instantiates the scenario.
func (sc *Scenario) Build() *World {
	w := New(sc.Tick)
	if sc.SourceRegen > 0 {
		w.sourceRegen = sc.SourceRegen
	}
	w.regenPerTick = sc.FacilityRegen
	for _, f := range sc.Facilities {
		w.AddFacility(f)
	}
	for _, e := range sc.Entities {
		w.AddEntity(e)
	}
	for _, wk := range sc.Workers {
		w.AddWorker(wk)
	}
	for _, p := range sc.Walls {
		w.AddWall(p)
	}
	return w
}
