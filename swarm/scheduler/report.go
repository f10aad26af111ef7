package scheduler

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/swarmflow/swarm/objective"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/supervisor"
)

// TaskReport counts task steps by result.
type TaskReport struct {
	InProgress int
	Done       int
	Failed     int
	// Dropped counts assignments that could not be decoded or whose worker
	// was gone.
	Dropped int
}

func (t *TaskReport) add(o TaskReport) {
	t.InProgress += o.InProgress
	t.Done += o.Done
	t.Failed += o.Failed
	t.Dropped += o.Dropped
}

// RegionReport is what one cycle did to one region.
type RegionReport struct {
	Region     string
	Objectives objective.EvaluateReport
	Planned    int
	Spawn      supervisor.Report
	Tasks      TaskReport
	// Purged counts removed requests, capacity requests included.
	Purged int
	// Open counts requests still waiting for a worker or a facility.
	Open int
}

func (r *RegionReport) add(o RegionReport) {
	r.Objectives.Created += o.Objectives.Created
	r.Objectives.Gone += o.Objectives.Gone
	r.Objectives.Retired += o.Objectives.Retired
	r.Objectives.Claimed += o.Objectives.Claimed
	r.Objectives.Unmatched += o.Objectives.Unmatched
	r.Planned += o.Planned
	r.Spawn.Attempts += o.Spawn.Attempts
	r.Spawn.Created += o.Spawn.Created
	r.Spawn.Busy += o.Spawn.Busy
	r.Spawn.Insufficient += o.Spawn.Insufficient
	r.Spawn.Dropped += o.Spawn.Dropped
	r.Spawn.Waiting += o.Spawn.Waiting
	r.Tasks.add(o.Tasks)
	r.Purged += o.Purged
	r.Open += o.Open
}

// Report is what one cycle did.
type Report struct {
	RunID     string
	Cycle     int
	Sanitized snapshot.SanitizeReport
	Regions   []RegionReport
	Duration  time.Duration
}

// Total sums the region reports.
func (r Report) Total() RegionReport {
	var t RegionReport
	for _, rr := range r.Regions {
		t.add(rr)
	}
	return t
}

// Stats flattens the report into named statistics.
func (r Report) Stats() map[string]float64 {
	t := r.Total()
	return map[string]float64{
		"cycle":               float64(r.Cycle),
		"regions":             float64(len(r.Regions)),
		"sanitized":           float64(r.Sanitized.Total()),
		"requests.created":    float64(t.Objectives.Created),
		"requests.gone":       float64(t.Objectives.Gone),
		"requests.retired":    float64(t.Objectives.Retired),
		"requests.claimed":    float64(t.Objectives.Claimed),
		"requests.unmatched":  float64(t.Objectives.Unmatched),
		"requests.purged":     float64(t.Purged),
		"requests.open":       float64(t.Open),
		"spawn.planned":       float64(t.Planned),
		"spawn.attempts":      float64(t.Spawn.Attempts),
		"spawn.created":       float64(t.Spawn.Created),
		"spawn.busy":          float64(t.Spawn.Busy),
		"spawn.insufficient":  float64(t.Spawn.Insufficient),
		"spawn.dropped":       float64(t.Spawn.Dropped),
		"tasks.in_progress":   float64(t.Tasks.InProgress),
		"tasks.done":          float64(t.Tasks.Done),
		"tasks.failed":        float64(t.Tasks.Failed),
		"tasks.dropped":       float64(t.Tasks.Dropped),
		"cycle.duration_secs": r.Duration.Seconds(),
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	t := r.Total()
	enc.AddString("run_id", r.RunID)
	enc.AddInt("cycle", r.Cycle)
	enc.AddInt("regions", len(r.Regions))
	enc.AddInt("claimed", t.Objectives.Claimed)
	enc.AddInt("unmatched", t.Objectives.Unmatched)
	enc.AddInt("spawned", t.Spawn.Created)
	enc.AddInt("tasks_done", t.Tasks.Done)
	enc.AddInt("tasks_failed", t.Tasks.Failed)
	enc.AddInt("purged", t.Purged)
	enc.AddInt("open", t.Open)
	enc.AddDuration("duration", r.Duration)
	return nil
}

var _ zapcore.ObjectMarshaler = Report{}

func reportField(r Report) zap.Field {
	return zap.Object("report", r)
}
