// Package activities is the contract layer between routing decisions and
// external effects.
//
// Each operation takes a typed input carrying an idempotency key, consults
// the idempotency store, and only on a miss calls its effect provider. The
// five operations fall into three failure classes:
//
//   - Advisory (Classify, SearchKnowledge, GenerateText): provider failures
//     are replaced by a safe default which is recorded like a real result.
//   - Mandatory (UpdateStatus): failures propagate as UpdateError.
//   - Best-effort (Notify): failures come back as NotificationError for the
//     caller to log; they never change control flow.
//
// Context cancellation is never absorbed into a fallback, so a cancelled
// call leaves nothing recorded and can be retried under the same key.
//
// The exported methods have the func(context.Context, Input) (Output, error)
// shape expected by Temporal and can be registered on a worker directly.
package activities
