// Package orchestrator schedules forumpulse's recurring jobs: the periodic
// fetch-and-classify cycle and the report dispatch jobs.
//
// It is intentionally not a general-purpose job queue. It runs a fixed, small
// set of jobs inside one process, keeps no job state across restarts, and
// coordinates nothing beyond the process boundary. What it does guarantee:
//
//   - at most one in-flight execution per job name (overlapping ticks of the
//     same job are dropped, not queued)
//   - distinct jobs run concurrently and independently
//   - handler errors and panics are always converted into logged, counted
//     failures; they never crash the process
//   - when the process-wide failure counter reaches the threshold, the
//     triggers are stopped, a cool-down passes, the counter resets and the
//     triggers come back (exactly one cycle per crossing)
//
// Handlers get no imposed timeout. A hung handler keeps its job name busy
// until process restart; handlers are expected to bound their own work.
package orchestrator
