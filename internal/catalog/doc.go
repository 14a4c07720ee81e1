// Package catalog is a hub's local resource inventory: a flat, ordered list
// of resource records that the hub serves to the federation.
//
// # Overview
//
// Every hub owns exactly one catalog. The federation never writes to it; the
// hub's own HTTP API and its operators do. Records are kept in insertion
// order, and that order is what searchers see.
//
// # Implementations
//
// MemoryStore: In-memory list guarded by sync.RWMutex
//   - No persistence
//   - Used by tests and throwaway hubs
//
// FileStore: JSON array on disk
//   - Re-read on every call so hand edits show up without a restart
//   - A missing file is created with ExampleRecord
//   - A file that is not valid JSON is served as an empty catalog and a
//     warning is logged
//   - Writes go through a temp file and rename
//
// # Required Fields
//
// Add rejects records without id, name or type with ErrMissingField. The
// wrapped error names the missing field, which the hub echoes back as
// "Missing required field: <field>".
//
// # Querying
//
// Query mirrors the hub API's query parameters:
//
//	q := catalog.Query{Type: resource.TypeTool, AvailableOnly: true}
//	records, _ := store.List()
//	tools := q.Apply(records)
//
// Classification compares exactly, ignoring case. Federated searches do not
// use Query; they fetch the whole catalog and filter client-side with
// resource.Filter.
package catalog
