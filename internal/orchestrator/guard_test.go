package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"forumpulse/pkg/logx"
)

func newTestOrch(t *testing.T, cfg Config, pingers ...Pinger) *Orchestrator {
	t.Helper()
	if cfg.HeartbeatEvery == 0 {
		cfg.HeartbeatEvery = -1 // keep test output quiet
	}
	return New(cfg, logx.Nop(), pingers...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestGuardSkipsOverlappingRun(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	release := make(chan struct{})
	var calls atomic.Int32
	err := o.Register("ingest", "@daily", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	first := make(chan Outcome, 1)
	go func() {
		out, _ := o.RunJob(context.Background(), "ingest")
		first <- out
	}()
	waitFor(t, time.Second, func() bool {
		s := o.Status()
		return len(s.RunningJobs) == 1 && s.RunningJobs[0] == "ingest"
	})

	// Second invocation while the first is in flight resolves as Skipped
	// without touching the handler.
	out, err := o.RunJob(context.Background(), "ingest")
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if out != OutcomeSkipped {
		t.Fatalf("outcome = %s, want %s", out, OutcomeSkipped)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}

	close(release)
	if out := <-first; out != OutcomeSuccess {
		t.Fatalf("first outcome = %s, want %s", out, OutcomeSuccess)
	}
	if s := o.Status(); len(s.RunningJobs) != 0 {
		t.Fatalf("running set not cleared: %v", s.RunningJobs)
	}
}

func TestGuardAllowsDistinctJobsConcurrently(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	blockA := make(chan struct{})
	if err := o.Register("a", "@daily", func(ctx context.Context) error {
		<-blockA
		return nil
	}); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := o.Register("b", "@daily", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("Register b: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.RunJob(context.Background(), "a")
	}()
	waitFor(t, time.Second, func() bool {
		return len(o.Status().RunningJobs) == 1
	})

	// "b" completes while "a" is still pending; no cross-job blocking.
	bDone := make(chan Outcome, 1)
	go func() {
		out, _ := o.RunJob(context.Background(), "b")
		bDone <- out
	}()

	// During the window both names may appear in the running set.
	waitFor(t, time.Second, func() bool {
		select {
		case out := <-bDone:
			if out != OutcomeSuccess {
				t.Fatalf("b outcome = %s, want %s", out, OutcomeSuccess)
			}
			return true
		default:
			return false
		}
	})

	s := o.Status()
	if len(s.RunningJobs) != 1 || s.RunningJobs[0] != "a" {
		t.Fatalf("running set = %v, want [a]", s.RunningJobs)
	}

	close(blockA)
	<-done
}

func TestFailureCountDecaysOnSuccess(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	fail := errors.New("boom")
	shouldFail := true
	if err := o.Register("flaky", "@daily", func(ctx context.Context) error {
		if shouldFail {
			return fail
		}
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 3; i++ {
		out, err := o.RunJob(context.Background(), "flaky")
		if out != OutcomeFailure || !errors.Is(err, fail) {
			t.Fatalf("run %d: outcome=%s err=%v", i, out, err)
		}
	}
	if fc := o.Status().FailureCount; fc != 3 {
		t.Fatalf("failureCount = %d, want 3", fc)
	}

	shouldFail = false
	if out, err := o.RunJob(context.Background(), "flaky"); out != OutcomeSuccess || err != nil {
		t.Fatalf("success run: outcome=%s err=%v", out, err)
	}
	if fc := o.Status().FailureCount; fc != 2 {
		t.Fatalf("failureCount after success = %d, want 2", fc)
	}

	// Floored at zero.
	for i := 0; i < 5; i++ {
		_, _ = o.RunJob(context.Background(), "flaky")
	}
	if fc := o.Status().FailureCount; fc != 0 {
		t.Fatalf("failureCount floor = %d, want 0", fc)
	}
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	if err := o.Register("explosive", "@daily", func(ctx context.Context) error {
		panic("kaboom")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	out, err := o.RunJob(context.Background(), "explosive")
	if out != OutcomeFailure {
		t.Fatalf("outcome = %s, want %s", out, OutcomeFailure)
	}
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v, want panic message", err)
	}

	// The orchestrator stays usable afterwards.
	s := o.Status()
	if s.FailureCount != 1 {
		t.Fatalf("failureCount = %d, want 1", s.FailureCount)
	}
	if len(s.RunningJobs) != 0 {
		t.Fatalf("running set not cleared after panic: %v", s.RunningJobs)
	}
}

func TestHistoryRecordsOutcomes(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{HistorySize: 2})

	if err := o.Register("j", "@daily", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = o.RunJob(context.Background(), "j")
	}

	hist := o.History()
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want capped at 2", len(hist))
	}
	for _, it := range hist {
		if it.Name != "j" || it.Outcome != OutcomeSuccess || it.Trigger != "manual" || it.ID == "" {
			t.Fatalf("unexpected history item: %+v", it)
		}
	}
}
