// Package store provides the SQLite-backed Instance Store used for every copy
// of the pathway graph: the current slice, the previous slice and the curator
// database.
//
// The store keeps two tables:
//   - instances: one row per record (db_id, class, display_name)
//   - attribute_values: ordered values per (db_id, attribute), typed as
//     string, int or ref
//
// # Critical Patterns
//
// Identity
//   - db_id is the only correlation key between stores. The same db_id in the
//     slice, the previous slice and the curator store names the same logical
//     entity.
//
// Run-scoped transactions
//   - BeginTransaction opens one transaction for the whole release run.
//     Every read and write issued while it is open goes through it, so the
//     single SQLite connection never deadlocks against itself.
//   - A store opened WithTransactions(false) reports SupportsTransactions()
//     false and writes autocommit, like the non-transactional release slice.
//
// Schema validation
//   - StoreInstance and UpdateInstanceAttribute reject classes and attributes
//     that internal/schema does not declare.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Two drivers are registered: "sqlite3" (mattn/go-sqlite3, cgo, default) and
// "sqlite" (modernc.org/sqlite, pure Go).
package store
