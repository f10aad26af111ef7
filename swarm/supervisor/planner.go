package supervisor

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/world"
)

// Quota is the number of workers of one role a region should keep alive.
type Quota struct {
	Role     string
	Count    int
	Body     []world.Part
	Priority int
	// PreferredFacility 可选，优先使用的设施
	PreferredFacility string
}

// Planner emits capacity requests for role shortfalls.
type Planner struct {
	quotas []Quota
	logger *zap.Logger
}

// NewPlanner creates a planner. Quotas are applied in priority order, then
// by role.
func NewPlanner(quotas []Quota, logger *zap.Logger) (*Planner, error) {
	seen := make(map[string]bool, len(quotas))
	sorted := make([]Quota, 0, len(quotas))
	for _, q := range quotas {
		if q.Role == "" {
			return nil, fmt.Errorf("quota role is required")
		}
		if seen[q.Role] {
			return nil, fmt.Errorf("duplicate quota for role %q", q.Role)
		}
		if q.Count < 0 {
			return nil, fmt.Errorf("quota for role %q is negative", q.Role)
		}
		spec := world.WorkerSpec{Name: q.Role, Role: q.Role, Body: q.Body}
		if q.Count > 0 {
			if err := spec.Validate(); err != nil {
				return nil, fmt.Errorf("quota for role %q: %w", q.Role, err)
			}
		}
		seen[q.Role] = true
		sorted = append(sorted, q)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Role < sorted[j].Role
	})

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		quotas: sorted,
		logger: logger.With(zap.String("component", "planner")),
	}, nil
}

// Quotas returns the planner's quotas in application order.
func (p *Planner) Quotas() []Quota {
	out := make([]Quota, len(p.quotas))
	copy(out, p.quotas)
	return out
}

// Plan compares each quota against the region's live workers, its open
// capacity requests and the creations already in flight, and appends one
// capacity request per missing worker. It returns the number added.
func (p *Planner) Plan(view world.View, region string, rg *snapshot.Region, cycle int) int {
	live := view.Workers(region)
	facilities := view.Facilities(region)

	taken := make(map[string]bool)
	have := make(map[string]int)
	for _, w := range live {
		taken[w.ID] = true
		have[w.Role]++
	}
	for _, c := range rg.Capacity {
		taken[c.SourceID] = true
		if !c.Completed {
			have[c.Role]++
		}
	}
	for _, f := range facilities {
		if f.Spawning == "" {
			continue
		}
		taken[f.Spawning] = true
		if role, ok := roleOf(f.Spawning); ok {
			have[role]++
		}
	}

	added := 0
	for _, q := range p.quotas {
		for have[q.Role] < q.Count {
			name := nextName(q.Role, taken)
			taken[name] = true
			have[q.Role]++

			body := make([]world.Part, len(q.Body))
			copy(body, q.Body)
			rg.Capacity = append(rg.Capacity, &request.CapacityRequest{
				Request:           *request.New(snapshot.CapacityObjective, name, q.Priority, cycle),
				Role:              q.Role,
				Body:              body,
				PreferredFacility: q.PreferredFacility,
			})
			added++
			p.logger.Debug("capacity requested",
				zap.String("region", region),
				zap.String("role", q.Role),
				zap.String("name", name),
			)
		}
	}
	return added
}

// nextName returns role-N with the smallest N >= 1 not in taken.
func nextName(role string, taken map[string]bool) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s-%d", role, n)
		if !taken[name] {
			return name
		}
	}
}

// roleOf 从 role-N 形式的名字中取出角色
func roleOf(name string) (string, bool) {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}
