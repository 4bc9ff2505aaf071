// Package probe implements the probe endpoint set an orchestrator polls to
// manage a process: liveness, readiness and a metrics scrape.
//
// All three queries read immutable snapshots published through atomic
// pointers, so they never block on each other, on writers, or on the
// dependencies whose status they report. Dependency checkers push results
// into Readiness on their own schedule; metric producers are registered in
// a Registry and sampled only when a scrape asks for them.
package probe
