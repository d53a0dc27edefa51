// Package sweep runs the zone-by-zone risk pipeline. Orchestrator visits every
// target zone in order behind a per-zone failure boundary. Runner wraps it
// with the single-sweep guard, persistence, archiving and event publishing.
package sweep
