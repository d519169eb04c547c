package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	noop := func(ctx context.Context) error { return nil }

	tests := []struct {
		name    string
		jobName string
		spec    string
		handler Handler
		wantErr error
	}{
		{name: "empty name", jobName: "  ", spec: "@daily", handler: noop},
		{name: "nil handler", jobName: "j", spec: "@daily", handler: nil},
		{name: "bad spec", jobName: "j", spec: "not a cron line", handler: noop, wantErr: ErrInvalidSchedule},
		{name: "six fields rejected", jobName: "j", spec: "* * * * * *", handler: noop, wantErr: ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.Register(tt.jobName, tt.spec, tt.handler)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := o.Register("j", "0 8 * * *", noop); err != nil {
		t.Fatalf("valid register failed: %v", err)
	}
	if err := o.Register("j", "@hourly", noop); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateJob", err)
	}

	if _, err := o.RunJob(context.Background(), "ghost"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("unknown job err = %v, want ErrUnknownJob", err)
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(ctx)

	if err := o.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestStartFailsFastOnConnectivity(t *testing.T) {
	t.Parallel()
	down := errors.New("database unreachable")
	o := newTestOrch(t, Config{}, pingerFunc(func(ctx context.Context) error { return down }))

	err := o.Start(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("err = %v, want ErrConnectivity", err)
	}
	if p := o.Status().Phase; p != PhaseStopped {
		t.Fatalf("phase = %s, want stopped", p)
	}

	// Start is retryable once the collaborator comes back.
	o2 := newTestOrch(t, Config{}, pingerFunc(func(ctx context.Context) error { return nil }))
	if err := o2.Start(context.Background()); err != nil {
		t.Fatalf("Start with healthy pinger: %v", err)
	}
	o2.Stop(context.Background())
}

func TestRestartAfterFailureThreshold(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{MaxFailures: 10, Cooldown: 20 * time.Millisecond})

	boom := errors.New("always fails")
	if err := o.Register("daily", "@daily", func(ctx context.Context) error { return boom }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(context.Background())

	// Nine failures: counter grows, no restart yet.
	for i := 0; i < 9; i++ {
		if out, _ := o.RunJob(context.Background(), "daily"); out != OutcomeFailure {
			t.Fatalf("run %d outcome = %s, want failure", i, out)
		}
	}
	s := o.Status()
	if s.FailureCount != 9 || s.Restarts != 0 {
		t.Fatalf("before threshold: failures=%d restarts=%d", s.FailureCount, s.Restarts)
	}

	// The tenth failure crosses the threshold; the restart cycle runs in this
	// call (stop triggers, cool-down, reset, re-arm) before RunJob returns.
	if out, _ := o.RunJob(context.Background(), "daily"); out != OutcomeFailure {
		t.Fatalf("threshold run outcome = %s, want failure", out)
	}

	s = o.Status()
	if s.Restarts != 1 {
		t.Fatalf("restarts = %d, want exactly 1", s.Restarts)
	}
	if s.FailureCount != 0 {
		t.Fatalf("failureCount after restart = %d, want 0", s.FailureCount)
	}
	if s.Phase != PhaseRunning {
		t.Fatalf("phase after restart = %s, want running", s.Phase)
	}

	// All jobs are triggerable again after the cycle.
	if out, _ := o.RunJob(context.Background(), "daily"); out != OutcomeFailure {
		t.Fatal("job not triggerable after restart")
	}
	if s := o.Status(); s.Restarts != 1 {
		t.Fatalf("restart fired again below threshold: restarts=%d", s.Restarts)
	}
}

func TestStopDoesNotCancelInFlightJobs(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	release := make(chan struct{})
	finished := make(chan struct{})
	if err := o.Register("slow", "@daily", func(ctx context.Context) error {
		<-release
		close(finished)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() { _, _ = o.RunJob(context.Background(), "slow") }()
	waitFor(t, time.Second, func() bool { return len(o.Status().RunningJobs) == 1 })

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	o.Stop(stopCtx)

	s := o.Status()
	if s.Phase != PhaseStopped {
		t.Fatalf("phase = %s, want stopped", s.Phase)
	}
	// The in-flight job was neither cancelled nor awaited.
	select {
	case <-finished:
		t.Fatal("job finished before release; it should still be in flight")
	default:
	}
	if len(s.RunningJobs) != 1 {
		t.Fatalf("running set = %v, want the in-flight job", s.RunningJobs)
	}

	close(release)
	waitFor(t, time.Second, func() bool { return len(o.Status().RunningJobs) == 0 })
}

func TestStatusExposesTriggerTimes(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{})

	if err := o.Register("nightly", "0 3 * * *", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Before Start there is no cron entry, so no next fire time.
	if s := o.Status(); !s.Jobs[0].Next.IsZero() {
		t.Fatal("next fire time set before Start")
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(context.Background())

	s := o.Status()
	if len(s.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(s.Jobs))
	}
	js := s.Jobs[0]
	if js.Name != "nightly" || js.Spec != "0 3 * * *" {
		t.Fatalf("unexpected job status: %+v", js)
	}
	if js.Next.IsZero() {
		t.Fatal("next fire time not populated after Start")
	}
}

func TestHeartbeatLifecycle(t *testing.T) {
	t.Parallel()
	o := newTestOrch(t, Config{HeartbeatEvery: 5 * time.Millisecond})

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	o.Stop(context.Background())

	// Stopping twice (and stopping with a live heartbeat) must be safe.
	o.Stop(context.Background())
}
