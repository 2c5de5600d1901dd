// Package store provides SQLite-backed durable storage for boot analysis
// runs.
//
// A run is one pass of the extractor and timeline fold over a data root:
//   - Runs: run metadata plus the boot summary JSON
//   - Delta Events: the globally ordered subsystem mutations of the run
//   - Host Events: the cooperative script host log lines
//
// Delta events are keyed by (run_id, position) where position is the
// replay order the reducer produced. Readers always ORDER BY position so a
// stored run re-renders identically to the live fold. All writes use
// ON CONFLICT DO NOTHING so retried saves after a crash never duplicate
// rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
