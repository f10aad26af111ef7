package snapshot

import (
	"bytes"
	"encoding/json"

	"github.com/BaSui01/swarmflow/swarm/request"
	"github.com/BaSui01/swarmflow/swarm/task"
	"github.com/BaSui01/swarmflow/types"
	"github.com/BaSui01/swarmflow/world"
)

// =============================================================================
// 持久化记录
// =============================================================================

type document struct {
	Version int                     `json:"version"`
	Cycle   int                     `json:"cycle"`
	Regions map[string]regionRecord `json:"regions"`
}

type regionRecord struct {
	Requests    map[string][]requestRecord  `json:"requests"`
	Capacity    []capacityRecord            `json:"capacity"`
	Assignments map[string]descriptorRecord `json:"assignments"`
}

type requestRecord struct {
	SourceID   *string `json:"sourceId"`
	Priority   int     `json:"priority"`
	AssignedTo *string `json:"assignedTo"`
	Completed  bool    `json:"completed"`
	Created    int     `json:"created"`
}

type capacityRecord struct {
	requestRecord
	Role              string   `json:"role"`
	Body              []string `json:"body"`
	PreferredFacility *string  `json:"preferredFacility,omitempty"`
}

type positionRecord struct {
	Region string `json:"region"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type targetRecord struct {
	ID  *string         `json:"id,omitempty"`
	Pos *positionRecord `json:"pos,omitempty"`
}

type descriptorRecord struct {
	Kind      string       `json:"kind"`
	Target    targetRecord `json:"target"`
	Range     int          `json:"range"`
	State     string       `json:"state"`
	Objective string       `json:"objective"`
	Source    string       `json:"source"`
	Started   int          `json:"started"`
}

// =============================================================================
// 编码
// =============================================================================

// Encode serializes a snapshot at CurrentVersion. Output is deterministic:
// map keys are sorted and lists keep their order.
func Encode(s *Snapshot) ([]byte, error) {
	doc := document{
		Version: CurrentVersion,
		Cycle:   s.Cycle,
		Regions: make(map[string]regionRecord, len(s.Regions)),
	}
	for name, r := range s.Regions {
		doc.Regions[name] = encodeRegion(r)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "encode snapshot").WithCause(err)
	}
	return data, nil
}

func encodeRegion(r *Region) regionRecord {
	rec := regionRecord{
		Requests:    make(map[string][]requestRecord, len(r.Requests)),
		Capacity:    make([]capacityRecord, 0, len(r.Capacity)),
		Assignments: make(map[string]descriptorRecord, len(r.Assignments)),
	}
	for obj, reqs := range r.Requests {
		list := make([]requestRecord, 0, len(reqs))
		for _, req := range reqs {
			list = append(list, encodeRequest(req))
		}
		rec.Requests[obj] = list
	}
	for _, c := range r.Capacity {
		body := make([]string, len(c.Body))
		for i, p := range c.Body {
			body[i] = string(p)
		}
		rec.Capacity = append(rec.Capacity, capacityRecord{
			requestRecord:     encodeRequest(&c.Request),
			Role:              c.Role,
			Body:              body,
			PreferredFacility: optional(c.PreferredFacility),
		})
	}
	for worker, d := range r.Assignments {
		rec.Assignments[worker] = encodeDescriptor(d)
	}
	return rec
}

func encodeRequest(r *request.Request) requestRecord {
	return requestRecord{
		SourceID:   optional(r.SourceID),
		Priority:   r.Priority,
		AssignedTo: optional(r.AssignedTo),
		Completed:  r.Completed,
		Created:    r.Created,
	}
}

func encodeDescriptor(d task.Descriptor) descriptorRecord {
	rec := descriptorRecord{
		Kind:      string(d.Kind),
		Range:     d.Range,
		State:     string(d.State),
		Objective: d.Objective,
		Source:    d.Source,
		Started:   d.Started,
	}
	if d.Target.Pos != nil {
		p := d.Target.Pos
		rec.Target.Pos = &positionRecord{Region: p.Region, X: p.X, Y: p.Y}
	} else {
		rec.Target.ID = optional(d.Target.ID)
	}
	return rec
}

// =============================================================================
// 解码
// =============================================================================

// Decode parses a snapshot of any supported version, migrating it forward
// to CurrentVersion. Unknown or malformed versions fail with a schema error.
func Decode(data []byte) (*Snapshot, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, types.NewSchemaError("snapshot is not a JSON object").WithCause(err)
	}
	if raw == nil {
		return nil, types.NewSchemaError("snapshot is null")
	}

	from, err := Migrate(raw)
	if err != nil {
		return nil, err
	}
	if from != CurrentVersion {
		if data, err = json.Marshal(raw); err != nil {
			return nil, types.NewSchemaError("re-encode migrated snapshot").WithCause(err)
		}
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, types.NewSchemaError("snapshot does not match version %d layout", CurrentVersion).WithCause(err)
	}

	s := New(doc.Cycle)
	for name, rec := range doc.Regions {
		s.Regions[name] = decodeRegion(rec)
	}
	return s, nil
}

func decodeRegion(rec regionRecord) *Region {
	r := NewRegion()
	for obj, list := range rec.Requests {
		reqs := make([]*request.Request, 0, len(list))
		for _, item := range list {
			req := decodeRequest(item)
			req.Objective = obj
			reqs = append(reqs, req)
		}
		r.Requests[obj] = reqs
	}
	for _, item := range rec.Capacity {
		body := make([]world.Part, len(item.Body))
		for i, p := range item.Body {
			body[i] = world.Part(p)
		}
		c := &request.CapacityRequest{
			Request:           *decodeRequest(item.requestRecord),
			Role:              item.Role,
			Body:              body,
			PreferredFacility: deref(item.PreferredFacility),
		}
		c.Objective = CapacityObjective
		r.Capacity = append(r.Capacity, c)
	}
	for worker, d := range rec.Assignments {
		r.Assignments[worker] = decodeDescriptor(d)
	}
	return r
}

func decodeRequest(rec requestRecord) *request.Request {
	return &request.Request{
		SourceID:   deref(rec.SourceID),
		Priority:   rec.Priority,
		AssignedTo: deref(rec.AssignedTo),
		Completed:  rec.Completed,
		Created:    rec.Created,
	}
}

func decodeDescriptor(rec descriptorRecord) task.Descriptor {
	d := task.Descriptor{
		Kind:      task.Kind(rec.Kind),
		Range:     rec.Range,
		State:     task.State(rec.State),
		Objective: rec.Objective,
		Source:    rec.Source,
		Started:   rec.Started,
	}
	if p := rec.Target.Pos; p != nil {
		d.Target = task.PositionTarget(world.Position{Region: p.Region, X: p.X, Y: p.Y})
	} else {
		d.Target = task.EntityTarget(deref(rec.Target.ID))
	}
	return d
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
