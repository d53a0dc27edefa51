// Package progress carries sweep lifecycle events from the orchestrator to
// pluggable sinks. The Hub batches events on a background goroutine so that
// slow sinks never hold up a sweep.
package progress
