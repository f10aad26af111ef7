package task

import (
	"fmt"

	"github.com/BaSui01/swarmflow/types"
)

// Descriptor is the persisted form of a Task: everything needed to rebuild
// it, and nothing that points into the live world.
type Descriptor struct {
	Kind      Kind
	Target    Target
	Range     int
	State     State
	Objective string
	Source    string
	Started   int
}

// Encode captures the task as a Descriptor.
func (t *Task) Encode() Descriptor {
	d := Descriptor{
		Kind:      t.Kind,
		Range:     t.Range,
		State:     t.State,
		Objective: t.Objective,
		Source:    t.Source,
		Started:   t.Started,
	}
	d.Target.ID = t.Target.ID
	if t.Target.Pos != nil {
		p := *t.Target.Pos
		d.Target.Pos = &p
	}
	return d
}

// Decode rebuilds a Task from its Descriptor. Unknown kinds, missing targets
// and unknown states are rejected.
func Decode(d Descriptor) (*Task, error) {
	var t *Task
	switch d.Kind {
	case KindMove:
		if d.Target.Pos == nil {
			return nil, malformed(d, "move without position")
		}
		t = Move(*d.Target.Pos, d.Range)
	case KindHarvest, KindWithdraw, KindTransfer, KindUpgrade, KindBuild:
		if d.Target.ID == "" {
			return nil, malformed(d, "missing target id")
		}
		t = byEntity(d.Kind, d.Target.ID)
	default:
		return nil, malformed(d, fmt.Sprintf("unknown kind %q", d.Kind))
	}

	switch d.State {
	case StatePendingPrereq, StateActive, StateDone:
		t.State = d.State
	case "":
		t.State = StatePendingPrereq
	default:
		return nil, malformed(d, fmt.Sprintf("unknown state %q", d.State))
	}

	t.Objective = d.Objective
	t.Source = d.Source
	t.Started = d.Started
	return t, nil
}

// byEntity builds an entity-targeted task of kind k.
func byEntity(k Kind, id string) *Task {
	switch k {
	case KindHarvest:
		return Harvest(id)
	case KindWithdraw:
		return Withdraw(id)
	case KindTransfer:
		return Transfer(id)
	case KindUpgrade:
		return Upgrade(id)
	case KindBuild:
		return Build(id)
	}
	return nil
}

// ForKind builds a fresh task of kind k for target; it is how objectives turn
// an assignment into work.
func ForKind(k Kind, target Target, rng int) (*Task, error) {
	d := Descriptor{Kind: k, Target: target, Range: rng}
	return Decode(d)
}

func malformed(d Descriptor, reason string) error {
	return types.NewMalformedRequestError(fmt.Sprintf("%s/%s", d.Objective, d.Source), reason)
}

// Kinds lists every task kind, in declaration order.
func Kinds() []Kind {
	return []Kind{KindMove, KindHarvest, KindWithdraw, KindTransfer, KindUpgrade, KindBuild}
}
