package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"forumpulse/pkg/logx"
)

// Orchestrator owns a fixed set of cron-triggered jobs and guarantees
// at-most-one concurrent execution per job. It accumulates a process-wide
// failure counter across all jobs and restarts its own triggers when the
// counter crosses the configured threshold.
//
// All mutable state (running set, failure counter, phase) is serialized by a
// single mutex so the guard's check-then-add is atomic.
type Orchestrator struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	defs   map[string]*jobDef
	order  []string
	states map[string]*jobState

	// running is exactly the set of names whose jobState.running is true.
	running map[string]struct{}

	phase        Phase
	failureCount int
	restarts     uint64
	lastRestart  time.Time

	// hbStop is the single owned heartbeat handle; non-nil while the
	// heartbeat goroutine is alive.
	hbStop chan struct{}

	pingers []Pinger

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds a stopped orchestrator. Jobs are added with Register before
// Start; pingers are probed during Start's pre-flight check.
func New(cfg Config, log logx.Logger, pingers ...Pinger) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		log: log,
		cfg: cfg,
		// Five-field specs plus descriptors ("@daily", "@every 15m").
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:    map[string]*jobDef{},
		states:  map[string]*jobState{},
		running: map[string]struct{}{},
		pingers: pingers,
	}
	o.loc = loadLocation(cfg.Timezone, log)
	return o
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		return time.UTC
	}
	return loc
}

// Start probes all collaborators, registers the cron triggers and launches
// the heartbeat. It propagates only ErrAlreadyStarted and ErrConnectivity;
// everything that can fail later is validated at Register time.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseStopped {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.phase = PhaseStarting
	pingers := o.pingers
	o.mu.Unlock()

	for _, p := range pingers {
		if err := p.Ping(ctx); err != nil {
			o.mu.Lock()
			o.phase = PhaseStopped
			o.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.startTriggersLocked()
	o.startHeartbeatLocked()
	o.phase = PhaseRunning
	o.log.Info("orchestrator started",
		logx.Int("jobs", len(o.order)),
		logx.String("tz", o.loc.String()),
		logx.Int("max_failures", o.cfg.MaxFailures))
	return nil
}

// Stop clears the heartbeat and stops all triggers. In-flight executions are
// never cancelled; they are awaited only as long as the caller's context
// allows, purely so shutdown logs land after the last job where possible.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	if o.phase == PhaseStopped {
		o.mu.Unlock()
		return
	}
	c := o.c
	o.c = nil
	o.stopHeartbeatLocked()
	o.phase = PhaseStopped
	o.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	o.log.Info("orchestrator stopped")
}

// RunJob invokes the named job through the same guard scheduled ticks use, so
// manual and scheduled runs share identical overlap semantics. The handler's
// error is returned for operator visibility; it has already been logged and
// counted by the time RunJob returns.
func (o *Orchestrator) RunJob(ctx context.Context, name string) (Outcome, error) {
	o.mu.Lock()
	d, ok := o.defs[name]
	o.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return o.execute(ctx, d, "manual")
}

// startTriggersLocked builds a fresh cron and registers every definition.
// Specs were validated at Register time, so entry registration cannot fail.
// Call with mu held.
func (o *Orchestrator) startTriggersLocked() {
	o.c = cron.New(cron.WithParser(o.parser), cron.WithLocation(o.loc))
	for _, name := range o.order {
		o.addEntryLocked(o.defs[name])
	}
	o.c.Start()
}

// addEntryLocked wires one definition into the running cron. Call with mu held.
func (o *Orchestrator) addEntryLocked(d *jobDef) {
	eid, err := o.c.AddFunc(d.spec, func() {
		// Scheduled runs deliberately get a background context: Stop() must
		// not cancel in-flight work (handlers own their timeouts).
		_, _ = o.execute(context.Background(), d, "cron")
	})
	if err != nil {
		// Unreachable for specs that passed Register; keep the log so a
		// parser behavior change cannot silently drop a job.
		o.log.Error("trigger register failed", logx.String("job", d.name), logx.String("spec", d.spec), logx.Err(err))
		return
	}
	d.entryID = eid
}
