package speculative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/swarmflow/world"
)

func worker(id string, work, ttl int) *Worker {
	return Project(world.Worker{
		ID:          id,
		Role:        "engineer",
		TicksToLive: ttl,
		Capacity:    50,
		Body:        map[world.Part]int{world.PartWork: work, world.PartCarry: 1},
	})
}

func TestProject_IsACopy(t *testing.T) {
	live := world.Worker{ID: "w", Energy: 10, Capacity: 50, Body: map[world.Part]int{world.PartWork: 1}}
	p := Project(live)
	live.Body[world.PartWork] = 9

	assert.Equal(t, 1, p.Parts(world.PartWork))
	assert.Equal(t, 40, p.FreeCapacity())
	assert.False(t, p.Empty())
}

func TestCost(t *testing.T) {
	d := Demand{Role: "engineer", Part: world.PartWork}

	near := Cost(Candidate{Worker: worker("a", 1, 1000), Distance: 3}, d)
	far := Cost(Candidate{Worker: worker("b", 1, 1000), Distance: 10}, d)
	assert.Less(t, near, far)

	strong := Cost(Candidate{Worker: worker("c", 4, 1000), Distance: 10}, d)
	assert.Less(t, strong, far, "more relevant parts lower the cost")

	doomed := Cost(Candidate{Worker: worker("d", 4, 5), Distance: 10}, d)
	assert.Greater(t, doomed, far, "workers expiring en route rank last")

	// pure: same inputs, same output
	assert.Equal(t, near, Cost(Candidate{Worker: worker("a", 1, 1000), Distance: 3}, d))
}

func TestRank_TieBreaks(t *testing.T) {
	d := Demand{Role: "engineer"}
	cands := []Candidate{
		{Worker: worker("w3", 1, 1000), Distance: 4},
		{Worker: worker("w2", 1, 1000), Distance: 4},
		{Worker: worker("w1", 1, 1000), Distance: 7},
	}
	Rank(cands, d)

	got := []string{cands[0].Worker.ID, cands[1].Worker.ID, cands[2].Worker.ID}
	assert.Equal(t, []string{"w2", "w3", "w1"}, got)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil, Demand{})
	assert.False(t, ok)

	cands := []Candidate{
		{Worker: worker("b", 1, 1000), Distance: 2},
		{Worker: worker("a", 1, 1000), Distance: 2},
	}
	best, ok := Best(cands, Demand{})
	require.True(t, ok)
	assert.Equal(t, "a", best.Worker.ID)
	assert.Equal(t, "b", cands[0].Worker.ID, "input slice untouched")
}
