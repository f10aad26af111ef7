package objective

import (
	"fmt"
	"sort"

	"github.com/BaSui01/swarmflow/swarm/request"
)

// Registry is the static, ordered set of objectives.
type Registry struct {
	objectives []*Objective
	byKey      map[string]*Objective
}

// NewRegistry orders objectives by priority then key. Keys must be unique.
func NewRegistry(objectives ...*Objective) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Objective, len(objectives))}
	for _, o := range objectives {
		if o.key == "" {
			return nil, fmt.Errorf("objective key is empty")
		}
		if _, dup := r.byKey[o.key]; dup {
			return nil, fmt.Errorf("duplicate objective key: %s", o.key)
		}
		r.byKey[o.key] = o
		r.objectives = append(r.objectives, o)
	}
	sort.SliceStable(r.objectives, func(i, j int) bool {
		a, b := r.objectives[i], r.objectives[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.key < b.key
	})
	return r, nil
}

// MustNewRegistry is NewRegistry for static objective sets.
func MustNewRegistry(objectives ...*Objective) *Registry {
	r, err := NewRegistry(objectives...)
	if err != nil {
		panic(err)
	}
	return r
}

// Objectives returns objectives in priority order.
func (r *Registry) Objectives() []*Objective {
	return r.objectives
}

// Get looks an objective up by key.
func (r *Registry) Get(key string) (*Objective, bool) {
	o, ok := r.byKey[key]
	return o, ok
}

// Rank returns each objective's position in priority order.
func (r *Registry) Rank() request.Rank {
	rank := make(request.Rank, len(r.objectives))
	for i, o := range r.objectives {
		rank[o.key] = i
	}
	return rank
}
