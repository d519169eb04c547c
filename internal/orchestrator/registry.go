package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"forumpulse/pkg/logx"
)

// Register adds a named job with a cron-style schedule. Names must be unique
// and non-empty; schedules are parsed here so an invalid spec fails loudly at
// configuration time instead of silently never firing.
//
// Registration only stores the definition. Triggers are armed by Start (or
// immediately, when a job is added to an already-running orchestrator).
func (o *Orchestrator) Register(name, spec string, handler Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("job name required")
	}
	if handler == nil {
		return errors.New("job handler required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, dup := o.defs[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	if _, err := o.parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	d := &jobDef{name: name, spec: spec, handler: handler}
	o.defs[name] = d
	o.order = append(o.order, name)
	o.states[name] = &jobState{}

	if o.c != nil {
		o.addEntryLocked(d)
	}
	o.log.Debug("job registered", logx.String("job", name), logx.String("spec", spec))
	return nil
}

// Jobs returns the registered job names in registration order.
func (o *Orchestrator) Jobs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}
