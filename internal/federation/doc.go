// Package federation implements the federated query engine of solarnet: it
// asks every community hub in a registry for its resource catalog, tolerates
// any subset of hubs being slow, unreachable or malformed, and produces a
// deterministic, hub-grouped result together with a per-hub outcome report.
//
// # Overview
//
// There is no discovery service, no consensus and no shared infrastructure
// between hubs. The caller supplies an ordered list of HubDescriptor values
// and the engine contacts each one exactly once per search:
//
//	          ┌──────────────┐
//	          │  Aggregator  │  Search(ctx, hubs, filter, timeout)
//	          └──────┬───────┘
//	                 │ one goroutine per hub (errgroup)
//	     ┌───────────┼───────────┐
//	     ▼           ▼           ▼
//	┌─────────┐ ┌─────────┐ ┌─────────┐
//	│ Client  │ │ Client  │ │ Client  │  QueryHub -> HubOutcome
//	└────┬────┘ └────┬────┘ └────┬────┘
//	     ▼           ▼           ▼
//	  hub A        hub B        hub C     GET {url}/api/resources
//
// # Outcomes
//
// Per-hub failures are values, not errors. QueryHub always returns one
// HubOutcome:
//
//   - OutcomeSuccess: 200 with a parseable {"resources": [...]} body; Records
//     holds the filtered catalog (possibly empty)
//   - OutcomeTimeout: the per-hub timeout fired before the exchange finished
//   - OutcomeConnectionFailure: DNS failure, refused or reset connection
//   - OutcomeHTTPError: any status other than 200; the body is not parsed
//   - OutcomeProtocolError: 200 with a body that is not a record collection
//
// The only errors Search returns are configuration errors (ErrEmptyRegistry,
// ErrInvalidHub, ErrDuplicateHub, resource.ErrInvalidType), detected before
// any hub is contacted.
//
// # Concurrency Model
//
// Each hub query runs in its own goroutine with its own deadline. The
// aggregator preallocates one outcome slot per hub; a task writes only its
// slot, and the slots are merged in registry order after the join. No task
// can delay, cancel or alter another. The overall search therefore completes
// in roughly one per-hub timeout regardless of the number of hubs.
//
// # Health Monitoring
//
// HealthMonitor probes {url}/api/health on an interval and tracks consecutive
// failures per hub. It is used by the gateway to report liveness; it never
// removes hubs from a search.
//
// # Observability
//
// Client and Aggregator log through zap, record Prometheus metrics on the
// Metrics registry and open OpenTelemetry spans (no-op unless a tracer
// provider is installed).
package federation
