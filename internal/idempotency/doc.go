// Package idempotency records the outcome of side-effecting activity calls
// under caller-supplied idempotency keys.
//
// # Contract
//
// For a given (activity, key) pair the store holds at most one Record. A
// call to RecordOrFetch with:
//
//   - a matching fingerprint returns the recorded result without running compute
//   - a different fingerprint fails with a ticket.KindIdempotencyMismatch error
//   - no prior record runs compute exactly once and records what it returned
//
// A compute that fails with a *ticket.OperationError is recorded like a
// success: later calls with the same key replay the same failure. Any other
// error (including context cancellation) is returned without recording, so a
// retry under the same key runs the effect again. The store never retries on
// its own; callers wanting a fresh attempt mint a new key.
//
// # Backends
//
// Gate implements Store over a pluggable Backend:
//
//   - MemoryBackend: process-local map, used by tests and single-node setups
//   - SQLiteBackend: embedded file database (WAL mode)
//   - PostgresBackend: shared database via pgx
//   - RedisBackend: shared key-value store via go-redis
//
// Gate serializes concurrent callers for the same key inside one process.
// Across processes the backend's insert-if-absent decides the winner and the
// losers replay the winner's record.
package idempotency
