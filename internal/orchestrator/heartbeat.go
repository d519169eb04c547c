package orchestrator

import (
	"strings"
	"time"

	"forumpulse/pkg/logx"
)

// startHeartbeatLocked launches the heartbeat goroutine. The stop channel is
// the single owned handle; if one is already alive this is a no-op, so each
// Running phase gets exactly one emitter. Call with mu held.
func (o *Orchestrator) startHeartbeatLocked() {
	if o.cfg.HeartbeatEvery < 0 {
		return
	}
	if o.hbStop != nil {
		return
	}
	stop := make(chan struct{})
	o.hbStop = stop
	go o.heartbeatLoop(stop)
}

// stopHeartbeatLocked releases the heartbeat handle. Call with mu held.
func (o *Orchestrator) stopHeartbeatLocked() {
	if o.hbStop != nil {
		close(o.hbStop)
		o.hbStop = nil
	}
}

// heartbeatLoop emits a periodic status line. Purely observational: it reads
// a snapshot and never mutates orchestrator state.
func (o *Orchestrator) heartbeatLoop(stop <-chan struct{}) {
	t := time.NewTicker(o.cfg.HeartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s := o.Status()
			o.log.Info("heartbeat",
				logx.String("phase", s.Phase.String()),
				logx.String("running", strings.Join(s.RunningJobs, ",")),
				logx.Int("failures", s.FailureCount),
				logx.Int("max_failures", s.MaxFailures))
		}
	}
}
