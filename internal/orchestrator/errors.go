package orchestrator

import "errors"

var (
	// ErrDuplicateJob is returned by Register for an already-taken job name.
	ErrDuplicateJob = errors.New("duplicate job name")
	// ErrInvalidSchedule is returned by Register for a cron spec that does not
	// parse. Schedules are validated at registration, never at tick time.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrUnknownJob is returned by RunJob for an unregistered name.
	ErrUnknownJob = errors.New("unknown job")
	// ErrAlreadyStarted is returned by Start when the orchestrator is not
	// stopped. Calling Start twice is a caller bug.
	ErrAlreadyStarted = errors.New("orchestrator already started")
	// ErrConnectivity wraps a failed pre-flight collaborator check. It is the
	// only error Start propagates once registration has succeeded.
	ErrConnectivity = errors.New("connectivity check failed")
)
