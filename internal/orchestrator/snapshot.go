package orchestrator

import (
	"sort"
	"time"
)

// JobStatus is a point-in-time copy of one job's runtime record.
type JobStatus struct {
	Name          string
	Spec          string
	Running       bool
	LastStarted   time.Time
	LastCompleted time.Time
	LastOutcome   Outcome
	LastError     string
	Next          time.Time
	Prev          time.Time
}

// Snapshot is a point-in-time copy of the orchestrator state.
type Snapshot struct {
	Phase        Phase
	FailureCount int
	MaxFailures  int
	Restarts     uint64
	LastRestart  time.Time
	RunningJobs  []string
	Jobs         []JobStatus
}

// Status returns a snapshot of the orchestrator and per-job state. It copies
// under the mutex and never blocks on job execution.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		Phase:        o.phase,
		FailureCount: o.failureCount,
		MaxFailures:  o.cfg.MaxFailures,
		Restarts:     o.restarts,
		LastRestart:  o.lastRestart,
		RunningJobs:  make([]string, 0, len(o.running)),
		Jobs:         make([]JobStatus, 0, len(o.order)),
	}
	for name := range o.running {
		s.RunningJobs = append(s.RunningJobs, name)
	}
	sort.Strings(s.RunningJobs)

	for _, name := range o.order {
		d := o.defs[name]
		st := o.states[name]
		js := JobStatus{
			Name:          d.name,
			Spec:          d.spec,
			Running:       st.running,
			LastStarted:   st.lastStarted,
			LastCompleted: st.lastCompleted,
			LastOutcome:   st.lastOutcome,
			LastError:     st.lastError,
		}
		if o.c != nil && d.entryID != 0 {
			e := o.c.Entry(d.entryID)
			js.Next = e.Next
			js.Prev = e.Prev
		}
		s.Jobs = append(s.Jobs, js)
	}
	return s
}
