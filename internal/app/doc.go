// Package app contains the replication engine: the poller and its backoff
// scheduler, change detection, the navigation controller, and the two halves
// of the companion channel (sender and receiver), plus the lifecycle state
// machine and role composition for the primary and companion processes.
//
// The package depends only on internal/domain and internal/ports; all I/O
// goes through injected port implementations.
package app
