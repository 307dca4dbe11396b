// Package fleet owns the slot registry, the per-slot lifecycle state machine,
// and the scale reconciliation. It is structured into small files by concern:
//
//   - orchestrator.go: core Orchestrator type, registry, snapshots, persistence.
//   - config.go: Config and package defaults; New applies defaults.
//   - status.go: the closed Status set and its predicates.
//   - slot.go: the slot entity and its snapshot projection.
//   - start.go / stop.go: single-slot primitives (spawn, drain, force).
//   - scale.go: ScaleTo planning and best-effort execution.
//   - poll.go: liveness ingestion (ready/idle/occupied/crashed/unknown).
//   - poller.go: the periodic probe loop feeding poll.go.
//   - restore.go: registry rebuild from the persisted records.
//   - launcher.go / launcher_exec.go: the process-launch collaborator.
//   - events.go: state-change events and the publisher contract.
//   - errors.go: error types and helpers (IsSlotNotFound, IsLaunchFailed, ...).
//
// External packages should treat this package as the orchestration layer and
// use public methods only. Internal types are subject to change.
package fleet
