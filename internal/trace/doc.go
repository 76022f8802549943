// Package trace records what the resolved-type engine does while it answers
// queries.
//
// Tracing is enabled from the command line:
//
//	hostmeta query --trace=- --trace-level=detail universe.toml queries.toml
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last N events for a dump after a model error
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Each event carries a Scope. The Level decides which scopes are emitted:
//
//   - LevelError: nothing is streamed; the ring is dumped on failure
//   - LevelQuery: driver and per-query spans
//   - LevelDetail: adds cache population inside the universe
//   - LevelDebug: adds every provider round trip
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeQuery, "leaf", 0)
//	defer span.End("")
package trace
