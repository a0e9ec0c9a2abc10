// Package trace records structured events for widgetwrap sessions.
//
// Events are grouped by scope:
//
//   - ScopeSession: process lifetime (an LSP session or a CLI invocation)
//   - ScopeCommand: one wrap/unwrap/outline request
//   - ScopeScan:    locator strategies and outline scans
//   - ScopeNode:    per-node detail, debug only
//
// The tracer travels through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeScan, "outline", 0)
//	defer span.End("")
package trace
