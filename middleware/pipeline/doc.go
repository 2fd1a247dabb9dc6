// Package pipeline provides the HTTP (net/http) stages of the gateway's
// cross-cutting request pipeline.
//
// Overview (layers):
//
//   - domain: pipeline contracts and types (no net/http dependency)
//   - application: use cases (admission, authentication) without net/http
//   - infra: concrete implementations (Redis token bucket, config provider)
//   - pipeline (this package): HTTP stages + wiring + translation to
//     status codes, headers and the JSON error envelope
//
// Flow for every request:
//
//  1. Boundary establishes the trace id and catches every inner failure
//  2. RateLimit performs atomic admission for (route, client IP)
//  3. Auth verifies the X-Token credential unless the path is allow-listed
//  4. Access times the request and writes the trace/process-time headers
//  5. The route handler dispatches to an inference backend
//
// Stages are composed by Chain at startup; the first listed stage runs
// outermost, so the ordering is auditable in one place.
package pipeline
