package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"forumpulse/pkg/logx"
)

// execute is the overlap guard around every job invocation, scheduled or
// manual. At most one run per job name is in flight; a tick that lands while
// the previous run is still going resolves as Skipped without touching the
// handler. Jobs share the data store and the external APIs, so two overlapping
// runs of the same job are never safe.
func (o *Orchestrator) execute(ctx context.Context, d *jobDef, trigger string) (Outcome, error) {
	start := time.Now()
	runID := uuid.NewString()

	o.mu.Lock()
	if _, busy := o.running[d.name]; busy {
		o.mu.Unlock()
		o.log.Debug("job skipped; previous run still in flight",
			logx.String("job", d.name), logx.String("trigger", trigger))
		o.appendHistory(HistoryItem{
			ID: runID, Name: d.name, Trigger: trigger,
			Started: start, Outcome: OutcomeSkipped,
		})
		return OutcomeSkipped, nil
	}
	st := o.states[d.name]
	o.running[d.name] = struct{}{}
	st.running = true
	st.lastStarted = start
	o.mu.Unlock()

	err := o.runHandler(ctx, d, runID)
	dur := time.Since(start)

	o.mu.Lock()
	delete(o.running, d.name)
	st.running = false
	st.lastCompleted = time.Now()
	restart := false
	if err != nil {
		st.lastOutcome = OutcomeFailure
		st.lastError = err.Error()
		o.failureCount++
		// Exactly one restart per threshold crossing: the phase flip below is
		// the guard against restart storms while the counter sits at max.
		if o.failureCount >= o.cfg.MaxFailures && o.phase == PhaseRunning {
			o.phase = PhaseRestarting
			restart = true
		}
	} else {
		st.lastOutcome = OutcomeSuccess
		st.lastError = ""
		// Decay: one success forgives one failure, so isolated errors amid
		// steady successes never accumulate into a restart.
		if o.failureCount > 0 {
			o.failureCount--
		}
	}
	failures := o.failureCount
	o.mu.Unlock()

	item := HistoryItem{ID: runID, Name: d.name, Trigger: trigger, Started: start, Duration: dur}
	if err != nil {
		item.Outcome = OutcomeFailure
		item.Error = err.Error()
		o.log.Warn("job failed",
			logx.String("job", d.name),
			logx.String("run_id", runID),
			logx.Duration("dur", dur),
			logx.Int("failures", failures),
			logx.Err(err))
	} else {
		item.Outcome = OutcomeSuccess
		o.log.Info("job completed",
			logx.String("job", d.name),
			logx.String("run_id", runID),
			logx.Duration("dur", dur))
	}
	o.appendHistory(item)

	if restart {
		o.restart()
	}
	return item.Outcome, err
}

// runHandler invokes the handler and converts panics into ordinary failures;
// a throwing handler must never take the process down.
func (o *Orchestrator) runHandler(ctx context.Context, d *jobDef, runID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			o.log.Error("panic in job handler",
				logx.String("job", d.name),
				logx.String("run_id", runID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	return d.handler(ctx)
}

func (o *Orchestrator) appendHistory(item HistoryItem) {
	o.hmu.Lock()
	defer o.hmu.Unlock()
	o.history = append(o.history, item)
	if len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}
}

// History returns a copy of the execution history, oldest first.
func (o *Orchestrator) History() []HistoryItem {
	o.hmu.Lock()
	defer o.hmu.Unlock()
	out := make([]HistoryItem, len(o.history))
	copy(out, o.history)
	return out
}
