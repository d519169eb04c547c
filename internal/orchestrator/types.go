package orchestrator

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Handler is the unit of work a job runs on every tick. Any returned error
// (or panic) is caught at the guard boundary and converted into a counted
// failure; it never escapes the orchestrator.
type Handler func(ctx context.Context) error

// Pinger is a reachability probe for an external collaborator. All pingers
// must succeed before Start() brings up any trigger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Phase is the orchestrator lifecycle state.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Outcome classifies a single execution attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeSkipped means a tick landed while a previous run of the same job
	// was still in flight. The tick is dropped, never queued.
	OutcomeSkipped Outcome = "skipped"
)

// Config controls trigger and failure-handling behavior.
type Config struct {
	// Timezone is an IANA zone name for cron evaluation. Empty means UTC.
	Timezone string

	// MaxFailures is the process-wide failure count that triggers a restart
	// cycle. Default 10.
	MaxFailures int

	// Cooldown is how long the restart controller waits between stopping the
	// triggers and bringing them back up. Default 5s.
	Cooldown time.Duration

	// HeartbeatEvery is the status emission interval. Zero means the default
	// (5 minutes); negative disables the heartbeat.
	HeartbeatEvery time.Duration

	// HistorySize caps the in-memory execution history ring. Default 200.
	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 10
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Second
	}
	if c.HeartbeatEvery == 0 {
		c.HeartbeatEvery = 5 * time.Minute
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

// jobDef is an immutable job definition; created at registration, never
// mutated afterwards (entryID aside, which tracks the current cron entry).
type jobDef struct {
	name    string
	spec    string
	handler Handler
	entryID cron.EntryID
}

// jobState is the per-job runtime record, owned by the guard and mutated only
// under the orchestrator mutex.
type jobState struct {
	running       bool
	lastStarted   time.Time
	lastCompleted time.Time
	lastOutcome   Outcome
	lastError     string
}

// HistoryItem records one settled execution attempt.
type HistoryItem struct {
	ID       string
	Name     string
	Trigger  string // "cron" or "manual"
	Started  time.Time
	Duration time.Duration
	Outcome  Outcome
	Error    string
}
