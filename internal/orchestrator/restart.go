package orchestrator

import (
	"time"

	"forumpulse/pkg/logx"
)

// restart runs one stop → cool-down → reset → start cycle. It executes in the
// goroutine of whichever job execution pushed the counter over the threshold;
// the caller has already moved the phase to PhaseRestarting under the mutex,
// which is what makes the cycle fire at most once per crossing.
func (o *Orchestrator) restart() {
	o.mu.Lock()
	c := o.c
	o.c = nil
	o.stopHeartbeatLocked()
	cooldown := o.cfg.Cooldown
	failures := o.failureCount
	o.restarts++
	o.lastRestart = time.Now()
	o.mu.Unlock()

	o.log.Warn("failure threshold reached; restarting triggers",
		logx.Int("failures", failures),
		logx.Int("max_failures", o.cfg.MaxFailures),
		logx.Duration("cooldown", cooldown))

	if c != nil {
		// Deliberately not awaited: this path runs inside a job execution, and
		// cron's stop context only completes once every running job returns.
		// In-flight jobs simply finish on their own (they are never cancelled).
		c.Stop()
	}

	time.Sleep(cooldown)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhaseRestarting {
		// Stop() won the race during the cool-down; stay down.
		o.log.Warn("restart aborted; orchestrator was stopped during cool-down")
		return
	}
	o.failureCount = 0
	o.startTriggersLocked()
	o.startHeartbeatLocked()
	o.phase = PhaseRunning
	o.log.Info("orchestrator restarted",
		logx.Int("jobs", len(o.order)),
		logx.Uint64("restarts", o.restarts))
}
