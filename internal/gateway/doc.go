// Package gateway is the long-running HTTP front end of the federation. It
// holds one registry, loaded at startup, and runs a federated search per
// request.
//
//	GET /api/search?type=tool&query=saw&timeout=5s   FederatedResult JSON
//	GET /hubs                                         registry with health
//	GET /health                                       gateway liveness
//	GET /metrics                                      Prometheus metrics
//
// A bad type or timeout is answered with 400 before any hub is contacted.
// Unreachable hubs never fail a request; they show up as that hub's outcome.
package gateway
