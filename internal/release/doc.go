// Package release implements the UpdateStableIds release step: it walks every
// Event and PhysicalEntity of the current slice, compares it with the previous
// release, and advances StableIdentifier versions in both the slice and the
// curator database.
//
// ARCHITECTURE:
//
// Three stores take part in a run:
//   - slice: the current release snapshot (mutable; transactions optional)
//   - previous: the previous release snapshot (read-only baseline)
//   - curator: the curators' master database (mutable; transactions required)
//
// Run phases (Updater.Run):
//  1. Start: open the run-scoped transactions
//  2. Loading: fetch all Events and PhysicalEntities from the slice
//  3. Iterating: per instance, compare change counters and increment, then
//     mark releaseStatus = UPDATED when the Detector says so
//  4. Committing: commit the slice, then the curator store
//  5. Done: report counts
//
// The run is single-threaded. The slice and curator commits are independent;
// a failure between them leaves the stores out of step until the next run.
//
// CRITICAL PATTERNS:
//
// Monotonic counters
// A current change counter below the previous release's counter is a data
// integrity violation and aborts the run before anything is committed.
//
// One audit stamp per store per run
// AuditRecorder creates the InstanceEdit lazily and reuses it for every
// mutation that store receives during the run.
//
// Idempotent release status
// MarkUpdated never re-stamps an instance that is already UPDATED.
package release
