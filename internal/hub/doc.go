// Package hub serves one community hub's catalog over HTTP and provides a
// small client for its management endpoints.
//
// Routes:
//
//	GET  /                     API description
//	GET  /api/health           {"status","timestamp","resources_count"}
//	GET  /api/resources        ValueFlows envelope, filters: type, available=true, classification
//	POST /api/resources        add a record (id, name and type required)
//	GET  /api/resources/{id}   one record or 404 {"error":"Resource not found"}
//	GET  /metrics              Prometheus metrics, when enabled
//
// Listing responses wrap records in {"@context", "timestamp", "resources"}.
// Federation clients only rely on the "resources" key.
package hub
