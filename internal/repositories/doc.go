// Package repositories implements SQLite persistence for job history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [JobRepository] : Job history with status tracking and per-song results
//
// [JobRepository.Record] satisfies the job controller's history hook, so every finished job lands in the database.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
